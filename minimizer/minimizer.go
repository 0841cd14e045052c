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

// Package minimizer implements a bulk-indexable minimizer table for
// approximate all-vs-all overlap search. Sequences are indexed in
// batches with Minimize, over-represented minimizers are discarded
// with Filter, and Map chains colinear minimizer hits into candidate
// overlaps.
package minimizer

import (
	"sort"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/internal"
	"github.com/exascience/elasm/overlap"
	"github.com/exascience/pargo/parallel"
)

// Presets for the two sensitivity settings of the overlap search.
const (
	// DiscardFreqHard is the minimizer discard frequency for regular
	// overlap detection.
	DiscardFreqHard = 0.001

	// DiscardFreqSoft is the minimizer discard frequency for the
	// sensitive pass that maps unusable reads onto usable ones for
	// repeat annotation.
	DiscardFreqSoft = 0.00001
)

// minChainHits is the minimum number of chained minimizer hits for a
// candidate overlap.
const minChainHits = 4

var baseCodes = [256]uint64{
	'A': 0, 'C': 1, 'G': 2, 'T': 3,
}

// packed index entry: sequence id in the high 32 bits, position in
// bits 1..31, canonical strand in bit 0.
type location uint64

func packLocation(id, pos uint32, strand bool) location {
	l := location(id)<<32 | location(pos)<<1
	if strand {
		l |= 1
	}
	return l
}

func (l location) id() uint32   { return uint32(l >> 32) }
func (l location) pos() uint32  { return uint32(l>>1) & 0x7fffffff }
func (l location) strand() bool { return l&1 != 0 }

type minimizerHit struct {
	hash   uint64
	pos    uint32
	strand bool
}

// An Engine indexes minimizers of a sequence batch and maps query
// sequences against the frozen index. Minimize and Filter must run
// from a single goroutine; Map may run concurrently once the index is
// built.
type Engine struct {
	k, w          uint32
	mask          uint64
	index         map[uint64][]location
	maxOccurrence uint32
}

// New creates an engine for (k, w) minimizers, k <= 31.
func New(k, w uint32) *Engine {
	return &Engine{
		k:    k,
		w:    w,
		mask: (uint64(1) << (2 * k)) - 1,
	}
}

// K returns the k-mer length of the engine.
func (e *Engine) K() uint32 { return e.k }

// minimize collects the (w,k)-minimizers of a single sequence, with
// positions in the forward frame and a flag telling which strand the
// canonical k-mer came from.
func (e *Engine) minimize(seq *fasta.Sequence) (hits []minimizerHit) {
	if uint32(len(seq.Data)) < e.k {
		return nil
	}
	shift := 2 * (e.k - 1)
	var fwd, rev uint64
	var filled uint32
	window := make([]minimizerHit, 0, e.w)
	var lastPos uint32
	havePrev := false
	for i := 0; i < len(seq.Data); i++ {
		base := seq.Data[i]
		if base != 'A' && base != 'C' && base != 'G' && base != 'T' {
			filled = 0
			window = window[:0]
			continue
		}
		code := baseCodes[base]
		fwd = ((fwd << 2) | code) & e.mask
		rev = (rev >> 2) | ((code ^ 3) << shift)
		if filled++; filled < e.k {
			continue
		}
		pos := uint32(i) - e.k + 1
		hash, strand := internal.Hash64(fwd, e.mask), true
		if rev < fwd {
			hash, strand = internal.Hash64(rev, e.mask), false
		}
		if uint32(len(window)) == e.w {
			window = window[1:]
		}
		window = append(window, minimizerHit{hash: hash, pos: pos, strand: strand})
		if uint32(len(window)) < e.w && uint32(i+1) != uint32(len(seq.Data)) {
			continue
		}
		best := window[0]
		for _, hit := range window[1:] {
			if hit.hash < best.hash {
				best = hit
			}
		}
		if !havePrev || best.pos != lastPos {
			hits = append(hits, best)
			lastPos = best.pos
			havePrev = true
		}
	}
	return hits
}

// Minimize replaces the index contents with the minimizers of the
// given batch. Any previous Filter threshold is reset.
func (e *Engine) Minimize(sequences []*fasta.Sequence) {
	e.index = make(map[uint64][]location)
	e.maxOccurrence = 0

	batches := make([][]minimizerHit, len(sequences))
	parallel.Range(0, len(sequences), 0, func(low, high int) {
		for i := low; i < high; i++ {
			batches[i] = e.minimize(sequences[i])
		}
	})
	for i, hits := range batches {
		id := sequences[i].ID
		for _, hit := range hits {
			e.index[hit.hash] = append(e.index[hit.hash],
				packLocation(id, hit.pos, hit.strand))
		}
	}
}

// Filter discards the most frequent fraction of indexed minimizers
// from consideration by Map.
func (e *Engine) Filter(frequency float64) {
	if len(e.index) == 0 {
		e.maxOccurrence = 0
		return
	}
	counts := make([]int, 0, len(e.index))
	for _, locations := range e.index {
		counts = append(counts, len(locations))
	}
	sort.Ints(counts)
	cut := int(float64(len(counts)) * (1.0 - frequency))
	if cut >= len(counts) {
		cut = len(counts) - 1
	}
	e.maxOccurrence = uint32(counts[cut])
}

type anchor struct {
	qpos, tpos uint32
}

type candidateKey struct {
	target uint32
	strand bool
}

// Map searches the frozen index for targets sharing colinear
// minimizers with the query and returns the chained candidate
// overlaps. With avoidEqual, hits on the query itself are skipped;
// with avoidSymmetric, hits on targets with a smaller id are skipped,
// so each pair is reported once per batch while queries from earlier
// batches still reach the freshly indexed targets.
func (e *Engine) Map(query *fasta.Sequence, avoidEqual, avoidSymmetric bool) []overlap.Overlap {
	hits := e.minimize(query)
	candidates := make(map[candidateKey][]anchor)
	for _, hit := range hits {
		locations := e.index[hit.hash]
		if len(locations) == 0 {
			continue
		}
		if e.maxOccurrence > 0 && uint32(len(locations)) > e.maxOccurrence {
			continue
		}
		for _, l := range locations {
			if avoidEqual && l.id() == query.ID {
				continue
			}
			if avoidSymmetric && l.id() < query.ID {
				continue
			}
			key := candidateKey{target: l.id(), strand: hit.strand == l.strand()}
			candidates[key] = append(candidates[key], anchor{qpos: hit.pos, tpos: l.pos()})
		}
	}

	var overlaps []overlap.Overlap
	for key, anchors := range candidates {
		chain := chainAnchors(anchors, key.strand)
		if uint32(len(chain)) < minChainHits {
			continue
		}
		o := overlap.Overlap{
			LhsID:    query.ID,
			RhsID:    key.target,
			LhsBegin: chain[0].qpos,
			LhsEnd:   chain[len(chain)-1].qpos + e.k,
			Score:    uint32(len(chain)) * e.k,
			Strand:   key.strand,
		}
		tBegin, tEnd := chain[0].tpos, chain[len(chain)-1].tpos
		if !key.strand {
			tBegin, tEnd = tEnd, tBegin
		}
		o.RhsBegin = tBegin
		o.RhsEnd = tEnd + e.k
		overlaps = append(overlaps, o)
	}
	sort.Slice(overlaps, func(i, j int) bool {
		if overlaps[i].RhsID != overlaps[j].RhsID {
			return overlaps[i].RhsID < overlaps[j].RhsID
		}
		return overlaps[i].Strand && !overlaps[j].Strand
	})
	return overlaps
}

// MapPair maps lhs against rhs alone, with the engine's (k, w)
// parameters but no frequency filtering. Used for validating bubble
// arm similarity.
func (e *Engine) MapPair(lhs, rhs *fasta.Sequence) []overlap.Overlap {
	scratch := New(e.k, e.w)
	target := &fasta.Sequence{ID: 1, Name: rhs.Name, Data: rhs.Data}
	scratch.Minimize([]*fasta.Sequence{target})
	query := &fasta.Sequence{ID: 0, Name: lhs.Name, Data: lhs.Data}
	return scratch.Map(query, false, false)
}

// chainAnchors extracts the longest colinear chain from the anchor
// set: query positions strictly increase, and target positions
// strictly increase (same strand) or decrease (opposite strand).
func chainAnchors(anchors []anchor, strand bool) []anchor {
	if strand {
		sort.Slice(anchors, func(i, j int) bool {
			if anchors[i].qpos != anchors[j].qpos {
				return anchors[i].qpos < anchors[j].qpos
			}
			return anchors[i].tpos > anchors[j].tpos
		})
	} else {
		sort.Slice(anchors, func(i, j int) bool {
			if anchors[i].qpos != anchors[j].qpos {
				return anchors[i].qpos < anchors[j].qpos
			}
			return anchors[i].tpos < anchors[j].tpos
		})
	}

	less := func(a, b uint32) bool { return a < b }
	if !strand {
		less = func(a, b uint32) bool { return a > b }
	}

	// patience longest-increasing-subsequence over target positions
	tails := make([]int, 0, len(anchors))
	parents := make([]int, len(anchors))
	for i := range anchors {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if less(anchors[tails[mid]].tpos, anchors[i].tpos) {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			parents[i] = tails[lo-1]
		} else {
			parents[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	if len(tails) == 0 {
		return nil
	}
	chain := make([]anchor, len(tails))
	for i, j := len(tails)-1, tails[len(tails)-1]; j >= 0; i, j = i-1, parents[j] {
		chain[i] = anchors[j]
	}
	return chain
}
