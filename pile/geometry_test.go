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

func pileWithRegion(id, length, begin, end uint32) *Pile {
	p := New(id, length)
	p.begin, p.end = begin, end
	return p
}

func TestUpdateClipsToValidRegions(t *testing.T) {
	piles := []*Pile{
		pileWithRegion(0, 10000, 1000, 9000),
		pileWithRegion(1, 8000, 0, 8000),
	}
	o := overlap.Overlap{
		LhsID: 0, LhsBegin: 500, LhsEnd: 4500,
		RhsID: 1, RhsBegin: 3500, RhsEnd: 7500,
		Strand: true,
	}
	if !Update(piles, &o) {
		t.Fatal("well-formed overlap rejected")
	}
	if o.LhsBegin != 1000 || o.LhsEnd != 4500 {
		t.Errorf("lhs clipped to [%v, %v)", o.LhsBegin, o.LhsEnd)
	}
	if o.RhsBegin != 4000 || o.RhsEnd != 7500 {
		t.Errorf("rhs shifted to [%v, %v)", o.RhsBegin, o.RhsEnd)
	}
	if o.LhsBegin < piles[0].Begin() || o.LhsEnd > piles[0].End() ||
		o.RhsBegin < piles[1].Begin() || o.RhsEnd > piles[1].End() {
		t.Error("clipped overlap escapes the valid regions")
	}
}

func TestUpdateFailures(t *testing.T) {
	piles := []*Pile{
		pileWithRegion(0, 10000, 1000, 9000),
		pileWithRegion(1, 8000, 0, 8000),
	}

	invalid := overlap.Overlap{
		LhsID: 0, LhsBegin: 2000, LhsEnd: 4000,
		RhsID: 1, RhsBegin: 2000, RhsEnd: 4000,
		Strand: true,
	}
	piles[1].SetInvalid()
	if Update(piles, &invalid) {
		t.Error("overlap against an invalid pile accepted")
	}
	piles[1] = pileWithRegion(1, 8000, 0, 8000)

	outside := overlap.Overlap{
		LhsID: 0, LhsBegin: 100, LhsEnd: 900,
		RhsID: 1, RhsBegin: 2000, RhsEnd: 2800,
		Strand: true,
	}
	if Update(piles, &outside) {
		t.Error("overlap outside the lhs valid region accepted")
	}

	tiny := overlap.Overlap{
		LhsID: 0, LhsBegin: 980, LhsEnd: 1050,
		RhsID: 1, RhsBegin: 0, RhsEnd: 70,
		Strand: true,
	}
	if Update(piles, &tiny) {
		t.Error("overlap below the minimum informative length accepted")
	}
}

func TestTypeClassification(t *testing.T) {
	piles := []*Pile{
		pileWithRegion(0, 8000, 0, 8000),
		pileWithRegion(1, 8000, 0, 8000),
	}

	contained := overlap.Overlap{
		LhsID: 0, LhsBegin: 0, LhsEnd: 8000,
		RhsID: 1, RhsBegin: 0, RhsEnd: 8000,
		Strand: true,
	}
	if kind := Type(piles, contained); kind != overlap.KindLhsContained {
		t.Errorf("identical overlap classified as %v", kind)
	}

	dovetail := overlap.Overlap{
		LhsID: 0, LhsBegin: 4000, LhsEnd: 8000,
		RhsID: 1, RhsBegin: 0, RhsEnd: 4000,
		Strand: true,
	}
	if kind := Type(piles, dovetail); kind != overlap.KindLhsToRhs {
		t.Errorf("left-to-right dovetail classified as %v", kind)
	}

	reversed := overlap.Overlap{
		LhsID: 0, LhsBegin: 0, LhsEnd: 4000,
		RhsID: 1, RhsBegin: 4000, RhsEnd: 8000,
		Strand: true,
	}
	if kind := Type(piles, reversed); kind != overlap.KindRhsToLhs {
		t.Errorf("right-to-left dovetail classified as %v", kind)
	}

	internal := overlap.Overlap{
		LhsID: 0, LhsBegin: 3000, LhsEnd: 5000,
		RhsID: 1, RhsBegin: 3000, RhsEnd: 5000,
		Strand: true,
	}
	if kind := Type(piles, internal); kind != overlap.KindInternal {
		t.Errorf("internal overlap classified as %v", kind)
	}
}

func TestFinalize(t *testing.T) {
	piles := []*Pile{
		pileWithRegion(0, 10000, 1000, 9000),
		pileWithRegion(1, 8000, 0, 8000),
	}

	o := overlap.Overlap{
		LhsID: 0, LhsBegin: 5000, LhsEnd: 9000,
		RhsID: 1, RhsBegin: 0, RhsEnd: 4000,
		Strand: true,
	}
	if !Finalize(piles, &o) {
		t.Fatal("dovetail overlap rejected")
	}
	if o.Score != overlap.KindLhsToRhs {
		t.Errorf("score %v", o.Score)
	}
	if o.LhsBegin != 4000 || o.LhsEnd != 8000 {
		t.Errorf("lhs rebased to [%v, %v)", o.LhsBegin, o.LhsEnd)
	}

	flipped := overlap.Overlap{
		LhsID: 0, LhsBegin: 5000, LhsEnd: 9000,
		RhsID: 1, RhsBegin: 4000, RhsEnd: 8000,
		Strand: false,
	}
	if !Finalize(piles, &flipped) {
		t.Fatal("reverse-strand dovetail rejected")
	}
	if flipped.RhsBegin != 0 || flipped.RhsEnd != 4000 {
		t.Errorf("rhs flipped to [%v, %v)", flipped.RhsBegin, flipped.RhsEnd)
	}

	internal := overlap.Overlap{
		LhsID: 0, LhsBegin: 4000, LhsEnd: 6000,
		RhsID: 1, RhsBegin: 3000, RhsEnd: 5000,
		Strand: true,
	}
	if Finalize(piles, &internal) {
		t.Error("internal overlap finalized")
	}
}
