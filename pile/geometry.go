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

import "github.com/exascience/elasm/overlap"

// minOverlapLen is the minimum informative overlap length on either
// side after clipping.
const minOverlapLen = 84

// Update clips the overlap to both piles' valid regions, preserving
// the geometric consistency between strands. It fails when either
// pile is invalid, when clipping empties either side, or when a
// clipped side falls below the minimum informative length. On success
// the overlap's coordinates are rewritten in place.
func Update(piles []*Pile, o *overlap.Overlap) bool {
	lhs, rhs := piles[o.LhsID], piles[o.RhsID]
	if lhs.Invalid() || rhs.Invalid() {
		return false
	}
	if o.LhsBegin >= lhs.End() || o.LhsEnd <= lhs.Begin() ||
		o.RhsBegin >= rhs.End() || o.RhsEnd <= rhs.Begin() {
		return false
	}

	// Clipping one side shifts the other side's coordinates by the
	// same amount; which end moves depends on the relative strand.
	var lhsBegin, lhsEnd, rhsBegin, rhsEnd uint32
	if o.Strand {
		lhsBegin = o.LhsBegin
		if o.RhsBegin < rhs.Begin() {
			lhsBegin += rhs.Begin() - o.RhsBegin
		}
		lhsEnd = o.LhsEnd
		if o.RhsEnd > rhs.End() {
			lhsEnd -= o.RhsEnd - rhs.End()
		}
		rhsBegin = o.RhsBegin
		if o.LhsBegin < lhs.Begin() {
			rhsBegin += lhs.Begin() - o.LhsBegin
		}
		rhsEnd = o.RhsEnd
		if o.LhsEnd > lhs.End() {
			rhsEnd -= o.LhsEnd - lhs.End()
		}
	} else {
		lhsBegin = o.LhsBegin
		if o.RhsEnd > rhs.End() {
			lhsBegin += o.RhsEnd - rhs.End()
		}
		lhsEnd = o.LhsEnd
		if o.RhsBegin < rhs.Begin() {
			lhsEnd -= rhs.Begin() - o.RhsBegin
		}
		rhsBegin = o.RhsBegin
		if o.LhsEnd > lhs.End() {
			rhsBegin += o.LhsEnd - lhs.End()
		}
		rhsEnd = o.RhsEnd
		if o.LhsBegin < lhs.Begin() {
			rhsEnd -= lhs.Begin() - o.LhsBegin
		}
	}

	if lhsBegin >= lhs.End() || lhsEnd <= lhs.Begin() ||
		rhsBegin >= rhs.End() || rhsEnd <= rhs.Begin() {
		return false
	}

	if lhsBegin < lhs.Begin() {
		lhsBegin = lhs.Begin()
	}
	if lhsEnd > lhs.End() {
		lhsEnd = lhs.End()
	}
	if rhsBegin < rhs.Begin() {
		rhsBegin = rhs.Begin()
	}
	if rhsEnd > rhs.End() {
		rhsEnd = rhs.End()
	}

	if lhsBegin >= lhsEnd || lhsEnd-lhsBegin < minOverlapLen ||
		rhsBegin >= rhsEnd || rhsEnd-rhsBegin < minOverlapLen {
		return false
	}

	o.LhsBegin = lhsBegin
	o.LhsEnd = lhsEnd
	o.RhsBegin = rhsBegin
	o.RhsEnd = rhsEnd
	return true
}

// Type classifies a clipped overlap by its overhang geometry:
// internal, lhs/rhs contained, or a proper dovetail in either
// direction. The overlap must have been clipped with Update first.
func Type(piles []*Pile, o overlap.Overlap) uint32 {
	lhs, rhs := piles[o.LhsID], piles[o.RhsID]

	lhsLength := lhs.End() - lhs.Begin()
	lhsBegin := o.LhsBegin - lhs.Begin()
	lhsEnd := o.LhsEnd - lhs.Begin()

	rhsLength := rhs.End() - rhs.Begin()
	var rhsBegin, rhsEnd uint32
	if o.Strand {
		rhsBegin = o.RhsBegin - rhs.Begin()
		rhsEnd = o.RhsEnd - rhs.Begin()
	} else {
		rhsBegin = rhsLength - (o.RhsEnd - rhs.Begin())
		rhsEnd = rhsLength - (o.RhsBegin - rhs.Begin())
	}

	overhang := min(lhsBegin, rhsBegin) + min(lhsLength-lhsEnd, rhsLength-rhsEnd)

	if float64(lhsEnd-lhsBegin) < float64(lhsEnd-lhsBegin+overhang)*0.875 ||
		float64(rhsEnd-rhsBegin) < float64(rhsEnd-rhsBegin+overhang)*0.875 {
		return overlap.KindInternal
	}
	if lhsBegin <= rhsBegin && lhsLength-lhsEnd <= rhsLength-rhsEnd {
		return overlap.KindLhsContained
	}
	if rhsBegin <= lhsBegin && rhsLength-rhsEnd <= lhsLength-lhsEnd {
		return overlap.KindRhsContained
	}
	if lhsBegin > rhsBegin {
		return overlap.KindLhsToRhs
	}
	return overlap.KindRhsToLhs
}

// Finalize prepares an overlap for graph construction: the score is
// replaced by the overlap kind, non-dovetail overlaps are rejected,
// coordinates are rebased onto the valid regions, and reverse-strand
// right-hand coordinates are flipped into the canonical orientation.
func Finalize(piles []*Pile, o *overlap.Overlap) bool {
	o.Score = Type(piles, *o)
	if o.Score < overlap.KindLhsToRhs {
		return false
	}

	lhs, rhs := piles[o.LhsID], piles[o.RhsID]
	o.LhsBegin -= lhs.Begin()
	o.LhsEnd -= lhs.Begin()
	o.RhsBegin -= rhs.Begin()
	o.RhsEnd -= rhs.Begin()
	if !o.Strand {
		rhsBegin := o.RhsBegin
		o.RhsBegin = rhs.Length() - o.RhsEnd
		o.RhsEnd = rhs.Length() - rhsBegin
	}
	return true
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
