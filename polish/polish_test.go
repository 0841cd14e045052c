// elAsm: a high-performance tool for de novo assembly of long sequencing reads.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elasm/blob/master/LICENSE.txt>.

package polish

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/exascience/elasm/fasta"
)

func randomBases(r *rand.Rand, n int) string {
	var builder strings.Builder
	for i := 0; i < n; i++ {
		builder.WriteByte("ACGT"[r.Intn(4)])
	}
	return builder.String()
}

func flipBase(base byte) byte {
	switch base {
	case 'A':
		return 'C'
	default:
		return 'A'
	}
}

func TestPolishCorrectsSubstitutions(t *testing.T) {
	r := rand.New(rand.NewSource(31))
	genome := randomBases(r, 4000)

	corrupted := []byte(genome)
	for _, pos := range []int{700, 1900, 3100} {
		corrupted[pos] = flipBase(corrupted[pos])
	}
	unitigs := []*fasta.Sequence{{ID: 0, Name: "Utg0", Data: string(corrupted)}}

	var reads []*fasta.Sequence
	for i := 0; i < 5; i++ {
		reads = append(reads, &fasta.Sequence{
			ID:   uint32(i),
			Name: "read" + string(rune('a'+i)),
			Data: genome,
		})
	}

	engine := New(3, -5, -4)
	polished := engine.Polish(unitigs, reads)
	if len(polished) != 1 {
		t.Fatalf("polishing produced %v sequences", len(polished))
	}
	if !strings.Contains(polished[0].Name, " XC:f:") {
		t.Fatalf("polished unitig %v lacks the coverage tag", polished[0].Name)
	}
	for _, pos := range []int{700, 1900, 3100} {
		if polished[0].Data[pos] != genome[pos] {
			t.Errorf("substitution at %v not corrected", pos)
		}
	}
}

func TestPolishReverseStrandReads(t *testing.T) {
	r := rand.New(rand.NewSource(33))
	genome := randomBases(r, 4000)

	corrupted := []byte(genome)
	corrupted[2000] = flipBase(corrupted[2000])
	unitigs := []*fasta.Sequence{{ID: 0, Name: "Utg0", Data: string(corrupted)}}

	var reads []*fasta.Sequence
	for i := 0; i < 5; i++ {
		read := &fasta.Sequence{ID: uint32(i), Name: "r", Data: genome}
		read.ReverseComplement()
		reads = append(reads, read)
	}

	engine := New(3, -5, -4)
	polished := engine.Polish(unitigs, reads)
	if polished[0].Data[2000] != genome[2000] {
		t.Error("substitution not corrected from reverse-strand reads")
	}
}

func TestPolishLeavesUnmappedUnitigsAlone(t *testing.T) {
	r := rand.New(rand.NewSource(35))
	unitigs := []*fasta.Sequence{{ID: 0, Name: "Utg0", Data: randomBases(r, 3000)}}
	reads := []*fasta.Sequence{{ID: 0, Name: "r", Data: randomBases(r, 3000)}}

	engine := New(3, -5, -4)
	polished := engine.Polish(unitigs, reads)
	if polished[0].Name != "Utg0" {
		t.Errorf("unmapped unitig renamed to %v", polished[0].Name)
	}
	if polished[0].Data != unitigs[0].Data {
		t.Error("unmapped unitig rewritten")
	}
}
