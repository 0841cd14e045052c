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

package minimizer

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

func TestMapFindsForwardOverlap(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	genome := randomBases(r, 12000)

	reads := []*fasta.Sequence{
		{ID: 0, Name: "a", Data: genome[:8000]},
		{ID: 1, Name: "b", Data: genome[4000:]},
	}

	engine := New(15, 5)
	engine.Minimize(reads)

	overlaps := engine.Map(reads[1], true, false)
	if len(overlaps) == 0 {
		t.Fatal("overlap between overlapping reads not found")
	}
	o := overlaps[0]
	if o.RhsID != 0 || !o.Strand {
		t.Fatalf("unexpected overlap target %v strand %v", o.RhsID, o.Strand)
	}
	// read 1 starts at genome position 4000, so its prefix matches
	// read 0's suffix
	if o.LhsBegin > 500 || o.RhsBegin < 3500 || o.RhsEnd < 7500 {
		t.Errorf("overlap coordinates lhs [%v, %v) rhs [%v, %v)",
			o.LhsBegin, o.LhsEnd, o.RhsBegin, o.RhsEnd)
	}
}

func TestMapFindsReverseStrandOverlap(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	genome := randomBases(r, 10000)

	flipped := &fasta.Sequence{ID: 1, Name: "b", Data: genome[3000:]}
	flipped.ReverseComplement()

	reads := []*fasta.Sequence{
		{ID: 0, Name: "a", Data: genome[:7000]},
		flipped,
	}

	engine := New(15, 5)
	engine.Minimize(reads)

	overlaps := engine.Map(reads[1], true, false)
	if len(overlaps) == 0 {
		t.Fatal("reverse-strand overlap not found")
	}
	if overlaps[0].Strand {
		t.Error("overlap not flagged as opposite strand")
	}
}

func TestMapFlags(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	data := randomBases(r, 5000)
	reads := []*fasta.Sequence{
		{ID: 0, Name: "a", Data: data},
		{ID: 1, Name: "b", Data: data},
	}
	engine := New(15, 5)
	engine.Minimize(reads)

	if overlaps := engine.Map(reads[0], false, false); len(overlaps) < 2 {
		t.Error("self hit missing without avoidEqual")
	}
	for _, o := range engine.Map(reads[0], true, false) {
		if o.RhsID == 0 {
			t.Error("avoidEqual kept a self hit")
		}
	}
	if overlaps := engine.Map(reads[1], true, true); len(overlaps) != 0 {
		t.Error("avoidSymmetric kept a smaller target id")
	}
	found := false
	for _, o := range engine.Map(reads[0], true, true) {
		if o.RhsID == 1 {
			found = true
		}
	}
	if !found {
		t.Error("avoidSymmetric dropped a larger target id")
	}
}

func TestFilterDiscardsFrequentMinimizers(t *testing.T) {
	repeat := strings.Repeat("ACGTGCA", 2000)
	reads := []*fasta.Sequence{{ID: 0, Name: "r", Data: repeat}}
	engine := New(15, 5)
	engine.Minimize(reads)
	engine.Filter(0.5)
	if engine.maxOccurrence == 0 {
		t.Error("filter threshold not set")
	}
}

func TestMapPair(t *testing.T) {
	r := rand.New(rand.NewSource(19))
	data := randomBases(r, 6000)
	lhs := &fasta.Sequence{ID: 5, Name: "l", Data: data}
	rhs := &fasta.Sequence{ID: 9, Name: "r", Data: data}
	engine := New(15, 5)
	overlaps := engine.MapPair(lhs, rhs)
	if len(overlaps) == 0 {
		t.Fatal("identical pair not mapped")
	}
	if overlaps[0].Score < 3000 {
		t.Errorf("identical pair scored only %v matched bases", overlaps[0].Score)
	}
}

func TestMinimizeSkipsAmbiguousBases(t *testing.T) {
	engine := New(15, 5)
	seq := &fasta.Sequence{ID: 0, Name: "n", Data: strings.Repeat("N", 1000)}
	if hits := engine.minimize(seq); len(hits) != 0 {
		t.Error("minimizers found in an all-N read")
	}
}
