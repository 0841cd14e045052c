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

// Package overlap implements the bidirected overlap records produced
// by the minimizer index and consumed by coverage piles and the
// assembly graph.
package overlap

// An Overlap declares an approximate alignment between two reads.
// Coordinates are half-open intervals on the respective reads; Strand
// tells whether the reads agree in orientation. The Score field
// carries the number of matched bases when the overlap comes out of
// the minimizer index, and is repurposed as the overlap kind when the
// overlap is finalized for graph construction (see pile.Finalize).
type Overlap struct {
	LhsID, RhsID     uint32
	LhsBegin, LhsEnd uint32
	RhsBegin, RhsEnd uint32
	Score            uint32
	Strand           bool
}

// Overlap kinds assigned by pile.Type and stored into Score by
// pile.Finalize.
const (
	KindInternal     = 0
	KindLhsContained = 1
	KindRhsContained = 2
	KindLhsToRhs     = 3
	KindRhsToLhs     = 4
)

// Reverse returns the same overlap declared from the right-hand
// read's point of view.
func Reverse(o Overlap) Overlap {
	return Overlap{
		LhsID:    o.RhsID,
		LhsBegin: o.RhsBegin,
		LhsEnd:   o.RhsEnd,
		RhsID:    o.LhsID,
		RhsBegin: o.LhsBegin,
		RhsEnd:   o.LhsEnd,
		Score:    o.Score,
		Strand:   o.Strand,
	}
}

// Length returns the longer of the two interval lengths.
func Length(o Overlap) uint32 {
	lhs := o.LhsEnd - o.LhsBegin
	rhs := o.RhsEnd - o.RhsBegin
	if lhs > rhs {
		return lhs
	}
	return rhs
}
