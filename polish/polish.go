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

// Package polish implements the consensus engine invoked after graph
// simplification. Reads are mapped back onto the unitigs with a
// minimizer index, window-aligned with a scored global alignment, and
// each unitig position takes the plurality base of its aligned read
// bases.
package polish

import (
	"strconv"
	"strings"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/minimizer"
	"github.com/exascience/elasm/overlap"
	"github.com/exascience/pargo/parallel"
)

// windowLen is the alignment window length; read segments are aligned
// against unitig windows of this size.
const windowLen = 500

// An Engine polishes unitigs with the read set they were assembled
// from. It satisfies the Polisher interface of the graph package.
type Engine struct {
	match, mismatch, gap int
	k, w                 uint32
}

// New creates a polishing engine with the given alignment scores;
// mismatch and gap are expected to be negative.
func New(match, mismatch, gap int) *Engine {
	return &Engine{
		match:    match,
		mismatch: mismatch,
		gap:      gap,
		k:        15,
		w:        5,
	}
}

type alignment struct {
	unitig uint32
	read   uint32
	o      overlap.Overlap
}

// Polish maps the reads onto the unitigs and rewrites every
// covered unitig base to the plurality vote of its
// aligned read bases. Polished unitigs carry an appended
// " XC:f:<fraction>" name tag with the fraction of covered bases;
// unmapped unitigs are returned unchanged.
func (e *Engine) Polish(unitigs, reads []*fasta.Sequence) []*fasta.Sequence {
	index := minimizer.New(e.k, e.w)
	index.Minimize(unitigs)
	index.Filter(minimizer.DiscardFreqHard)

	alignments := parallel.RangeReduce(0, len(reads), 0, func(low, high int) interface{} {
		var acc []alignment
		for r := low; r < high; r++ {
			for _, o := range index.Map(reads[r], false, false) {
				acc = append(acc, alignment{unitig: o.RhsID, read: uint32(r), o: o})
			}
		}
		return acc
	}, func(x, y interface{}) interface{} {
		return append(x.([]alignment), y.([]alignment)...)
	}).([]alignment)

	perUnitig := make([][]alignment, len(unitigs))
	for _, a := range alignments {
		perUnitig[a.unitig] = append(perUnitig[a.unitig], a)
	}

	polished := make([]*fasta.Sequence, len(unitigs))
	parallel.Range(0, len(unitigs), 0, func(low, high int) {
		for u := low; u < high; u++ {
			polished[u] = e.polishUnitig(unitigs[u], reads, perUnitig[u])
		}
	})
	return polished
}

var baseRanks = [256]int{'A': 0, 'C': 1, 'G': 2, 'T': 3}

func (e *Engine) polishUnitig(unitig *fasta.Sequence, reads []*fasta.Sequence, alignments []alignment) *fasta.Sequence {
	if len(alignments) == 0 {
		return &fasta.Sequence{ID: unitig.ID, Name: unitig.Name, Data: unitig.Data}
	}

	votes := make([][4]uint32, len(unitig.Data))
	for _, a := range alignments {
		e.voteAlignment(votes, unitig, reads[a.read], a.o)
	}

	data := []byte(unitig.Data)
	covered := 0
	for i := range data {
		total := votes[i][0] + votes[i][1] + votes[i][2] + votes[i][3]
		if total == 0 {
			continue
		}
		covered++
		best := baseRanks[data[i]]
		for b := 0; b < 4; b++ {
			if votes[i][b] > votes[i][best] {
				best = b
			}
		}
		data[i] = "ACGT"[best]
	}

	fraction := float64(covered) / float64(len(data))
	name := unitig.Name + " XC:f:" + strconv.FormatFloat(fraction, 'f', 3, 64)
	return &fasta.Sequence{ID: unitig.ID, Name: name, Data: string(data)}
}

// voteAlignment aligns the read interval of the overlap against the
// unitig interval window by window and records the aligned bases.
func (e *Engine) voteAlignment(votes [][4]uint32, unitig, read *fasta.Sequence, o overlap.Overlap) {
	readData := read.Data
	qBegin, qEnd := o.LhsBegin, o.LhsEnd
	if !o.Strand {
		readData = fasta.ReverseComplement(readData)
		qBegin = uint32(len(readData)) - o.LhsEnd
		qEnd = uint32(len(readData)) - o.LhsBegin
	}
	tBegin, tEnd := o.RhsBegin, o.RhsEnd
	if tEnd > uint32(len(unitig.Data)) {
		tEnd = uint32(len(unitig.Data))
	}
	if tBegin >= tEnd || qBegin >= qEnd {
		return
	}

	tLen, qLen := float64(tEnd-tBegin), float64(qEnd-qBegin)
	for wb := tBegin; wb < tEnd; wb += windowLen {
		we := wb + windowLen
		if we > tEnd {
			we = tEnd
		}
		// project the window onto the read proportionally
		rb := qBegin + uint32(float64(wb-tBegin)/tLen*qLen)
		re := qBegin + uint32(float64(we-tBegin)/tLen*qLen)
		if re > uint32(len(readData)) {
			re = uint32(len(readData))
		}
		if rb >= re {
			continue
		}
		e.voteWindow(votes[wb:we], unitig.Data[wb:we], readData[rb:re])
	}
}

// voteWindow globally aligns a read segment against a unitig window
// and votes the read base at every aligned position.
func (e *Engine) voteWindow(votes [][4]uint32, window, segment string) {
	n, m := len(window), len(segment)

	// Needleman-Wunsch with full traceback
	score := make([][]int, n+1)
	for i := range score {
		score[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		score[i][0] = i * e.gap
	}
	for j := 1; j <= m; j++ {
		score[0][j] = j * e.gap
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			diag := score[i-1][j-1] + e.mismatch
			if window[i-1] == segment[j-1] {
				diag = score[i-1][j-1] + e.match
			}
			best := diag
			if up := score[i-1][j] + e.gap; up > best {
				best = up
			}
			if left := score[i][j-1] + e.gap; left > best {
				best = left
			}
			score[i][j] = best
		}
	}

	for i, j := n, m; i > 0 && j > 0; {
		diag := score[i-1][j-1] + e.mismatch
		if window[i-1] == segment[j-1] {
			diag = score[i-1][j-1] + e.match
		}
		switch score[i][j] {
		case diag:
			base := segment[j-1]
			if strings.IndexByte("ACGT", base) >= 0 {
				votes[i-1][baseRanks[base]]++
			}
			i--
			j--
		case score[i-1][j] + e.gap:
			i--
		default:
			j--
		}
	}
}
