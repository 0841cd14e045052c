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

package pile

import (
	"testing"

	"github.com/exascience/elasm/overlap"
)

func coveringOverlaps(id, begin, end uint32, layers int) (overlaps []overlap.Overlap) {
	for i := 0; i < layers; i++ {
		overlaps = append(overlaps, overlap.Overlap{
			LhsID:    id,
			LhsBegin: begin,
			LhsEnd:   end,
			RhsID:    id + 1,
			Strand:   true,
		})
	}
	return overlaps
}

func TestFindValidRegion(t *testing.T) {
	pile := New(0, 5000)
	pile.AddLayers(coveringOverlaps(0, 500, 4500, 5))
	pile.FindValidRegion(4)
	if pile.Invalid() {
		t.Fatal("well-covered pile marked invalid")
	}
	if pile.Begin() != 500 || pile.End() != 4500 {
		t.Errorf("valid region [%v, %v)", pile.Begin(), pile.End())
	}

	short := New(1, 5000)
	short.AddLayers(coveringOverlaps(1, 100, 600, 5))
	short.FindValidRegion(4)
	if !short.Invalid() {
		t.Error("short valid region did not invalidate the pile")
	}

	uncovered := New(2, 5000)
	uncovered.FindValidRegion(4)
	if !uncovered.Invalid() {
		t.Error("uncovered pile did not invalidate")
	}
}

func TestFindMedian(t *testing.T) {
	pile := New(0, 3000)
	pile.AddLayers(coveringOverlaps(0, 0, 3000, 4))
	pile.AddLayers(coveringOverlaps(0, 0, 1000, 4))
	pile.FindValidRegion(4)
	pile.FindMedian()
	if pile.Median() != 4 {
		t.Errorf("median %v", pile.Median())
	}
}

func TestChimericRegions(t *testing.T) {
	pile := New(0, 6000)
	pile.AddLayers(coveringOverlaps(0, 0, 2800, 10))
	pile.AddLayers(coveringOverlaps(0, 3200, 6000, 10))
	pile.AddLayers(coveringOverlaps(0, 2800, 3200, 4))
	pile.FindValidRegion(4)
	pile.FindMedian()
	pile.FindChimericRegions()
	if !pile.MaybeChimeric() {
		t.Fatal("coverage pit not detected")
	}

	// The pit depth of 4 is far below a component median of 30, so
	// the pile is split, keeping the longer side.
	pile.ClearChimericRegions(30)
	if pile.Invalid() {
		t.Fatal("split pile invalidated")
	}
	if pile.Length() >= 3300 {
		t.Errorf("valid region not shrunk, length %v", pile.Length())
	}
	if pile.MaybeChimeric() {
		t.Error("chimeric annotation not cleared")
	}
}

func TestChimericRegionsRetained(t *testing.T) {
	pile := New(0, 6000)
	pile.AddLayers(coveringOverlaps(0, 0, 2800, 10))
	pile.AddLayers(coveringOverlaps(0, 3200, 6000, 10))
	pile.AddLayers(coveringOverlaps(0, 2800, 3200, 4))
	pile.FindValidRegion(4)
	pile.FindMedian()
	pile.FindChimericRegions()

	// At a component median of 6 the pit is credible coverage, so the
	// full region stays.
	pile.ClearChimericRegions(6)
	if pile.Begin() != 0 || pile.End() != 6000 {
		t.Errorf("valid region [%v, %v)", pile.Begin(), pile.End())
	}
}

func TestRepetitiveRegions(t *testing.T) {
	pile := New(0, 6000)
	pile.AddLayers(coveringOverlaps(0, 0, 6000, 10))
	pile.AddLayers(coveringOverlaps(0, 2000, 4000, 20))
	pile.FindValidRegion(4)
	pile.FindRepetitiveRegions(10)
	if len(pile.repetitiveRegions) == 0 {
		t.Fatal("repetitive region not detected")
	}

	ending := overlap.Overlap{LhsID: 0, LhsBegin: 500, LhsEnd: 3000, RhsID: 1, Strand: true}
	if !pile.CheckRepetitiveRegions(ending) {
		t.Error("overlap ending inside unbridged repeat not flagged")
	}

	spanning := overlap.Overlap{LhsID: 0, LhsBegin: 500, LhsEnd: 5500, RhsID: 1, Strand: true}
	pile.UpdateRepetitiveRegions(spanning)
	if pile.CheckRepetitiveRegions(ending) {
		t.Error("overlap flagged although the repeat is bridged")
	}

	pile.ClearRepetitiveRegions()
	if len(pile.repetitiveRegions) != 0 {
		t.Error("repeat annotation not cleared")
	}
}

func TestStateTransitionsAreMonotonic(t *testing.T) {
	pile := New(0, 2000)
	pile.SetContained()
	pile.SetInvalid()
	if !pile.Contained() || !pile.Invalid() {
		t.Error("state transitions lost")
	}
}

func TestPileGobRoundTrip(t *testing.T) {
	pile := New(7, 3000)
	pile.AddLayers(coveringOverlaps(7, 100, 2900, 5))
	pile.FindValidRegion(4)
	pile.FindMedian()
	pile.FindRepetitiveRegions(2)

	encoded, err := pile.GobEncode()
	if err != nil {
		t.Fatal(err)
	}
	restored := new(Pile)
	if err := restored.GobDecode(encoded); err != nil {
		t.Fatal(err)
	}
	if restored.ID() != 7 || restored.Begin() != pile.Begin() ||
		restored.End() != pile.End() || restored.Median() != pile.Median() {
		t.Error("pile round trip lost state")
	}
	if len(restored.data) != len(pile.data) {
		t.Error("pile round trip lost coverage data")
	}
}
