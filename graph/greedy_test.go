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

package graph

import (
	"math/rand"
	"testing"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/overlap"
)

func TestSequenceOverlapType(t *testing.T) {
	sequences := []*fasta.Sequence{
		{ID: 0, Data: string(make([]byte, 8000))},
		{ID: 1, Data: string(make([]byte, 8000))},
	}
	dovetail := overlap.Overlap{
		LhsID: 0, LhsBegin: 4000, LhsEnd: 8000,
		RhsID: 1, RhsBegin: 0, RhsEnd: 4000,
		Strand: true,
	}
	if kind := sequenceOverlapType(sequences, dovetail); kind != overlap.KindLhsToRhs {
		t.Errorf("dovetail classified as %v", kind)
	}
	contained := overlap.Overlap{
		LhsID: 0, LhsBegin: 0, LhsEnd: 8000,
		RhsID: 1, RhsBegin: 0, RhsEnd: 8000,
		Strand: true,
	}
	if kind := sequenceOverlapType(sequences, contained); kind != overlap.KindLhsContained {
		t.Errorf("containment classified as %v", kind)
	}
}

func TestOverlapSidesCap(t *testing.T) {
	unitig := &fasta.Sequence{ID: 0, Data: string(make([]byte, 20000))}
	var sides overlapSides
	for i := 0; i < 2*maxGreedyOvlp; i++ {
		sides.add(unitig, overlap.Overlap{
			LhsID: 0, LhsBegin: 0, LhsEnd: uint32(1000 + i*100),
			RhsID: uint32(i + 1), RhsBegin: 0, RhsEnd: uint32(1000 + i*100),
			Strand: true,
		})
	}
	if len(sides.left) != maxGreedyOvlp {
		t.Errorf("left side holds %v overlaps", len(sides.left))
	}
	for i := 1; i < len(sides.left); i++ {
		if overlap.Length(sides.left[i-1]) < overlap.Length(sides.left[i]) {
			t.Fatal("side overlaps not ordered longest first")
		}
	}
}

func TestGreedyConstructAndAssemble(t *testing.T) {
	inTempDir(t)

	r := rand.New(rand.NewSource(41))
	genome := randomBases(r, 30000)

	// one unitig covering the left half, fillers extending to the right
	unitigs := []*fasta.Sequence{{Name: "Utg0", Data: genome[:15000]}}
	var fillers []*fasta.Sequence
	for offset := 11000; offset+6000 <= len(genome); offset += 2000 {
		fillers = append(fillers, &fasta.Sequence{
			Name: "nc" + formatUint(uint32(len(fillers))),
			Data: genome[offset : offset+6000],
		})
	}

	g := New(false)
	expected := g.GreedyConstruct(fasta.NormalizeIDs(unitigs), fasta.NormalizeIDs(fillers))
	if expected != 1 {
		t.Fatalf("greedy construction reported %v unitig seeds", expected)
	}
	numNodes := 0
	for _, node := range g.nodes {
		if node != nil {
			numNodes++
		}
	}
	if numNodes < 4 {
		t.Fatalf("greedy construction stored only %v nodes", numNodes)
	}
	checkPairInvariants(t, g)

	g.GreedyAssemble(expected)
	checkPairInvariants(t, g)
}
