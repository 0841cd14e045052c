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
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/exascience/elasm/fasta"
)

func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

// tilingReads cuts a random genome into staircase reads of the given
// length and step.
func tilingReads(r *rand.Rand, genomeLen, readLen, step int) (string, []*fasta.Sequence) {
	genome := randomBases(r, genomeLen)
	var reads []*fasta.Sequence
	for offset := 0; offset+readLen <= len(genome); offset += step {
		reads = append(reads, &fasta.Sequence{
			Name: "read" + formatUint(uint32(len(reads))),
			Data: genome[offset : offset+readLen],
		})
	}
	return genome, fasta.NormalizeIDs(reads)
}

func TestConstructPipeline(t *testing.T) {
	inTempDir(t)

	r := rand.New(rand.NewSource(21))
	_, reads := tilingReads(r, 20000, 5000, 500)

	g := New(false)
	g.Construct(reads)
	if g.Stage() != -3 {
		t.Fatalf("construction left stage at %v", g.Stage())
	}

	numValid := 0
	for _, p := range g.Piles() {
		if !p.Invalid() {
			numValid++
			if p.Length() < 1000 {
				t.Errorf("valid pile %v has region of %v bases", p.ID(), p.Length())
			}
		}
	}
	if numValid < 25 {
		t.Errorf("only %v piles survived", numValid)
	}

	numNodes, numEdges := 0, 0
	for _, node := range g.nodes {
		if node != nil {
			numNodes++
		}
	}
	for _, edge := range g.edges {
		if edge != nil {
			numEdges++
		}
	}
	if numNodes < 2*25 || numEdges == 0 {
		t.Fatalf("graph has %v nodes and %v edges", numNodes, numEdges)
	}
	checkPairInvariants(t, g)

	if _, err := os.Stat(FillerSeqsPath); err != nil {
		t.Error("filler sequences not stored:", err)
	}
}

func TestAssembleToSingleUnitig(t *testing.T) {
	inTempDir(t)

	r := rand.New(rand.NewSource(23))
	_, reads := tilingReads(r, 20000, 5000, 500)

	g := New(false)
	g.Construct(reads)
	g.Assemble()
	if g.Stage() != 0 {
		t.Fatalf("assembly left stage at %v", g.Stage())
	}
	checkPairInvariants(t, g)

	// no triangle may survive transitive reduction
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		direct := make(map[uint32]*Edge)
		for _, e := range node.Outedges {
			direct[e.Head.ID] = e
		}
		for _, e := range node.Outedges {
			for _, f := range e.Head.Outedges {
				if shortcut, ok := direct[f.Head.ID]; ok {
					total := float64(e.Length) + float64(f.Length)
					length := float64(shortcut.Length)
					if total >= length*0.88 && total <= length*1.12 {
						t.Fatalf("transitive triangle via %v survives", node.ID)
					}
				}
			}
		}
	}

	unitigs := g.GetUnitigs(false)
	if len(unitigs) != 1 {
		t.Fatalf("assembly produced %v unitigs", len(unitigs))
	}
	if n := len(unitigs[0].Data); n < 15000 || n > 21000 {
		t.Errorf("unitig length %v", n)
	}
	if !strings.Contains(unitigs[0].Name, "RC:i:") {
		t.Errorf("unitig name %v lacks annotations", unitigs[0].Name)
	}
}

func TestResumeReproducesResults(t *testing.T) {
	inTempDir(t)

	r := rand.New(rand.NewSource(25))
	_, reads := tilingReads(r, 20000, 5000, 500)

	g := New(false)
	g.Construct(reads)

	// a second graph takes over from the stored stage -3 checkpoint
	resumed := New(false)
	if err := resumed.Load(); err != nil {
		t.Fatal(err)
	}
	if resumed.Stage() != -3 {
		t.Fatalf("resumed at stage %v", resumed.Stage())
	}

	g.Assemble()
	g.PrintGFA("run.gfa")
	resumed.Assemble()
	resumed.PrintGFA("resumed.gfa")

	run, err := ioutil.ReadFile("run.gfa")
	if err != nil {
		t.Fatal(err)
	}
	res, err := ioutil.ReadFile("resumed.gfa")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(run, res) {
		t.Error("resumed run produced a different graph")
	}
}

func TestConstructSkipsCompletedStages(t *testing.T) {
	inTempDir(t)

	g := New(false)
	g.stage = -2
	g.Construct([]*fasta.Sequence{{Name: "a", Data: "ACGT"}})
	if g.stage != -2 || len(g.piles) != 0 {
		t.Error("construction ran although its stages were complete")
	}
}
