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

// Package pile implements per-read coverage piles. A pile accumulates
// the overlap layers that cover its read and derives the annotations
// that drive read trimming, contained-read elimination, chimera
// detection, and repeat detection.
package pile

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/exascience/elasm/intervals"
	"github.com/exascience/elasm/overlap"
	"gonum.org/v1/gonum/stat"
)

const (
	// MinSequenceLen is the minimum length of a usable read region.
	// Reads whose valid region falls below this are dropped from
	// assembly.
	MinSequenceLen = 1000

	// repeatCoverageRatio scales a component median into the coverage
	// level above which a region counts as repetitive.
	repeatCoverageRatio = 1.42

	// repeatFuzz is the margin by which an overlap must extend past a
	// repetitive region on both sides to count as bridging it.
	repeatFuzz = 420
)

// A Pile is the coverage profile of a single read, together with the
// annotations derived from it. Piles are owned by the assembly graph;
// each pile is mutated by at most one goroutine per annotation phase.
type Pile struct {
	id                uint32
	data              []uint32
	begin, end        uint32
	median            uint32
	chimericRegions   []intervals.Interval
	repetitiveRegions []intervals.Interval
	repetitiveBridged []bool
	isContained       bool
	isInvalid         bool
}

// New creates a pile for a read of the given length. The valid region
// initially spans the whole read.
func New(id, length uint32) *Pile {
	return &Pile{
		id:   id,
		data: make([]uint32, length),
		end:  length,
	}
}

// ID returns the read this pile covers.
func (pile *Pile) ID() uint32 { return pile.id }

// Begin returns the start of the valid region.
func (pile *Pile) Begin() uint32 { return pile.begin }

// End returns the end of the valid region.
func (pile *Pile) End() uint32 { return pile.end }

// Length returns the length of the valid region.
func (pile *Pile) Length() uint32 { return pile.end - pile.begin }

// Median returns the median coverage of the valid region, as computed
// by the most recent FindMedian call.
func (pile *Pile) Median() uint32 { return pile.median }

// Contained tells whether the read is fully covered by another read.
func (pile *Pile) Contained() bool { return pile.isContained }

// Invalid tells whether the read is excluded from assembly.
func (pile *Pile) Invalid() bool { return pile.isInvalid }

// MaybeChimeric tells whether the coverage profile contains pits that
// suggest a mis-join.
func (pile *Pile) MaybeChimeric() bool { return len(pile.chimericRegions) > 0 }

// SetContained marks the read as contained. The transition is
// monotonic.
func (pile *Pile) SetContained() { pile.isContained = true }

// SetInvalid excludes the read from assembly. The transition is
// monotonic; overlap updates against an invalid pile fail from then
// on.
func (pile *Pile) SetInvalid() { pile.isInvalid = true }

// AddLayers increments the coverage counters under the intervals with
// which the given overlaps touch this pile's read. Overlaps that do
// not name the read are skipped.
func (pile *Pile) AddLayers(overlaps []overlap.Overlap) {
	for _, o := range overlaps {
		begin, end, ok := pile.overlapInterval(o)
		if !ok {
			continue
		}
		if end > uint32(len(pile.data)) {
			end = uint32(len(pile.data))
		}
		for i := begin; i < end; i++ {
			pile.data[i]++
		}
	}
}

// FindValidRegion locates the longest contiguous region with coverage
// of at least minCoverage. If no such region of at least
// MinSequenceLen bases exists, the pile becomes invalid.
func (pile *Pile) FindValidRegion(minCoverage uint32) {
	var bestBegin, bestEnd uint32
	var runBegin uint32
	inRun := false
	for i := uint32(0); i <= uint32(len(pile.data)); i++ {
		if i < uint32(len(pile.data)) && pile.data[i] >= minCoverage {
			if !inRun {
				runBegin = i
				inRun = true
			}
			continue
		}
		if inRun {
			if i-runBegin > bestEnd-bestBegin {
				bestBegin, bestEnd = runBegin, i
			}
			inRun = false
		}
	}
	if bestEnd-bestBegin < MinSequenceLen {
		pile.SetInvalid()
		return
	}
	pile.begin, pile.end = bestBegin, bestEnd
}

// FindMedian computes the median coverage across the valid region.
func (pile *Pile) FindMedian() {
	if pile.end <= pile.begin {
		pile.median = 0
		return
	}
	coverage := make([]float64, 0, pile.end-pile.begin)
	for _, c := range pile.data[pile.begin:pile.end] {
		coverage = append(coverage, float64(c))
	}
	sort.Float64s(coverage)
	pile.median = uint32(stat.Quantile(0.5, stat.Empirical, coverage, nil))
}

// FindChimericRegions marks coverage pits inside the valid region
// that are conspicuously under-covered relative to the region median.
// Pits touching the region borders are trimming artifacts, not
// chimera candidates, and are ignored.
func (pile *Pile) FindChimericRegions() {
	pile.chimericRegions = pile.chimericRegions[:0]
	threshold := pile.median / 2
	if threshold < 2 {
		threshold = 2
	}
	var runBegin uint32
	inRun := false
	for i := pile.begin; i <= pile.end; i++ {
		if i < pile.end && pile.data[i] < threshold {
			if !inRun {
				runBegin = i
				inRun = true
			}
			continue
		}
		if inRun {
			if runBegin > pile.begin && i < pile.end {
				pile.chimericRegions = append(pile.chimericRegions,
					intervals.Interval{Start: runBegin, End: i})
			}
			inRun = false
		}
	}
}

// ClearChimericRegions resolves the chimera candidates against a
// component-wide median. Pits whose depth is credible at component
// scale are dismissed; a genuine pit splits the valid region, keeping
// the longer side. The pile becomes invalid when the surviving region
// is too short.
func (pile *Pile) ClearChimericRegions(componentMedian uint32) {
	for _, region := range pile.chimericRegions {
		if region.Start < pile.begin || region.End > pile.end {
			continue
		}
		var depth uint32
		for _, c := range pile.data[region.Start:region.End] {
			if c > depth {
				depth = c
			}
		}
		if depth*2 >= componentMedian {
			continue
		}
		if region.Start-pile.begin >= pile.end-region.End {
			pile.end = region.Start
		} else {
			pile.begin = region.End
		}
	}
	pile.chimericRegions = pile.chimericRegions[:0]
	if pile.end-pile.begin < MinSequenceLen {
		pile.SetInvalid()
	}
}

// ClearValidRegion resets the coverage counters inside the valid
// region, so a new mapping pass can accumulate fresh layers.
func (pile *Pile) ClearValidRegion() {
	for i := pile.begin; i < pile.end; i++ {
		pile.data[i] = 0
	}
}

// ClearInvalidRegion resets the coverage counters outside the valid
// region.
func (pile *Pile) ClearInvalidRegion() {
	for i := uint32(0); i < pile.begin; i++ {
		pile.data[i] = 0
	}
	for i := pile.end; i < uint32(len(pile.data)); i++ {
		pile.data[i] = 0
	}
}

// FindRepetitiveRegions marks regions whose coverage exceeds the
// component median by the repeat ratio. Freshly found regions are
// unbridged until UpdateRepetitiveRegions observes spanning overlaps.
func (pile *Pile) FindRepetitiveRegions(componentMedian uint32) {
	pile.repetitiveRegions = pile.repetitiveRegions[:0]
	threshold := uint32(float64(componentMedian) * repeatCoverageRatio)
	if threshold == 0 {
		threshold = 1
	}
	var runBegin uint32
	inRun := false
	for i := pile.begin; i <= pile.end; i++ {
		if i < pile.end && pile.data[i] >= threshold {
			if !inRun {
				runBegin = i
				inRun = true
			}
			continue
		}
		if inRun {
			pile.repetitiveRegions = append(pile.repetitiveRegions,
				intervals.Interval{Start: runBegin, End: i})
			inRun = false
		}
	}
	pile.repetitiveRegions = intervals.Flatten(pile.repetitiveRegions)
	pile.repetitiveBridged = make([]bool, len(pile.repetitiveRegions))
}

// overlapInterval projects an overlap onto this pile's read.
func (pile *Pile) overlapInterval(o overlap.Overlap) (begin, end uint32, ok bool) {
	switch pile.id {
	case o.LhsID:
		return o.LhsBegin, o.LhsEnd, true
	case o.RhsID:
		return o.RhsBegin, o.RhsEnd, true
	}
	return 0, 0, false
}

// UpdateRepetitiveRegions marks repetitive regions as bridged when
// the given overlap spans them with margin on both sides. Bridged
// repeats are resolvable and do not invalidate overlaps.
func (pile *Pile) UpdateRepetitiveRegions(o overlap.Overlap) {
	begin, end, ok := pile.overlapInterval(o)
	if !ok {
		return
	}
	for i, region := range pile.repetitiveRegions {
		if begin+repeatFuzz <= region.Start && region.End+repeatFuzz <= end {
			pile.repetitiveBridged[i] = true
		}
	}
}

// CheckRepetitiveRegions reports whether the overlap terminates
// inside an unbridged repetitive region, which makes it a candidate
// repeat-induced false overlap.
func (pile *Pile) CheckRepetitiveRegions(o overlap.Overlap) bool {
	begin, end, ok := pile.overlapInterval(o)
	if !ok {
		return false
	}
	for i, region := range pile.repetitiveRegions {
		if pile.repetitiveBridged[i] {
			continue
		}
		if begin > region.Start && begin < region.End {
			return true
		}
		if end > region.Start && end < region.End {
			return true
		}
	}
	return false
}

// ClearRepetitiveRegions resets the repeat annotation between
// fixpoint rounds.
func (pile *Pile) ClearRepetitiveRegions() {
	pile.repetitiveRegions = pile.repetitiveRegions[:0]
	pile.repetitiveBridged = pile.repetitiveBridged[:0]
}

type pileArchive struct {
	ID                uint32
	Data              []uint32
	Begin, End        uint32
	Median            uint32
	ChimericRegions   []intervals.Interval
	RepetitiveRegions []intervals.Interval
	RepetitiveBridged []bool
	IsContained       bool
	IsInvalid         bool
}

// GobEncode implements gob.GobEncoder, so piles can be stored in
// checkpoint archives.
func (pile *Pile) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(pileArchive{
		ID:                pile.id,
		Data:              pile.data,
		Begin:             pile.begin,
		End:               pile.end,
		Median:            pile.median,
		ChimericRegions:   pile.chimericRegions,
		RepetitiveRegions: pile.repetitiveRegions,
		RepetitiveBridged: pile.repetitiveBridged,
		IsContained:       pile.isContained,
		IsInvalid:         pile.isInvalid,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (pile *Pile) GobDecode(data []byte) error {
	var archive pileArchive
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&archive); err != nil {
		return err
	}
	pile.id = archive.ID
	pile.data = archive.Data
	pile.begin = archive.Begin
	pile.end = archive.End
	pile.median = archive.Median
	pile.chimericRegions = archive.ChimericRegions
	pile.repetitiveRegions = archive.RepetitiveRegions
	pile.repetitiveBridged = archive.RepetitiveBridged
	pile.isContained = archive.IsContained
	pile.isInvalid = archive.IsInvalid
	return nil
}
