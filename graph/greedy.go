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
	"log"
	"sort"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/overlap"
)

const (
	// maxGreedyOvlp caps the overlaps kept per unitig side in the
	// greedy second-run construction.
	maxGreedyOvlp = 8

	// unitigMarginFrac and unitigMarginLim bound the unitig end
	// margins inside which a filler overlap counts as extending.
	unitigMarginFrac = 0.005
	unitigMarginLim  = 5000
)

// sequenceOverlapType classifies an overlap by overhang geometry on
// the plain sequences, without pile clipping.
func sequenceOverlapType(sequences []*fasta.Sequence, o overlap.Overlap) uint32 {
	lhsLen := uint32(len(sequences[o.LhsID].Data))
	lhsBegin, lhsEnd := o.LhsBegin, o.LhsEnd

	rhsLen := uint32(len(sequences[o.RhsID].Data))
	rhsBegin, rhsEnd := o.RhsBegin, o.RhsEnd
	if !o.Strand {
		rhsBegin, rhsEnd = rhsLen-o.RhsEnd, rhsLen-o.RhsBegin
	}

	overhang := min(lhsBegin, rhsBegin) + min(lhsLen-lhsEnd, rhsLen-rhsEnd)

	if float64(lhsEnd-lhsBegin) < float64(lhsEnd-lhsBegin+overhang)*0.875 ||
		float64(rhsEnd-rhsBegin) < float64(rhsEnd-rhsBegin+overhang)*0.875 {
		return overlap.KindInternal
	}
	if lhsBegin <= rhsBegin && lhsLen-lhsEnd <= rhsLen-rhsEnd {
		return overlap.KindLhsContained
	}
	if rhsBegin <= lhsBegin && rhsLen-rhsEnd <= lhsLen-lhsEnd {
		return overlap.KindRhsContained
	}
	if lhsBegin > rhsBegin {
		return overlap.KindLhsToRhs
	}
	return overlap.KindRhsToLhs
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// overlapSides keeps the longest few overlaps touching each end of a
// unitig, ordered longest first.
type overlapSides struct {
	left, right []overlap.Overlap
}

func (s *overlapSides) add(unitig *fasta.Sequence, o overlap.Overlap) {
	side := &s.right
	if o.LhsBegin < uint32(len(unitig.Data))/2 {
		side = &s.left
	}
	pos := sort.Search(len(*side), func(i int) bool {
		return overlap.Length((*side)[i]) < overlap.Length(o)
	})
	*side = append(*side, overlap.Overlap{})
	copy((*side)[pos+1:], (*side)[pos:])
	(*side)[pos] = o
	if len(*side) > maxGreedyOvlp {
		*side = (*side)[:maxGreedyOvlp]
	}
}

func (s *overlapSides) merged() []overlap.Overlap {
	return append(append([]overlap.Overlap(nil), s.left...), s.right...)
}

type overlapCategory int

const (
	categoryIrrelevant overlapCategory = iota
	categoryLeft
	categoryRight
)

// overlapCategoryOf tells whether a filler overlap reaches into one
// of the unitig's end margins, which makes it a candidate extension.
// Unitigs always carry the lower sequence id.
func overlapCategoryOf(sequences []*fasta.Sequence, o *overlap.Overlap) overlapCategory {
	o.Score = sequenceOverlapType(sequences, *o)
	if o.Score <= overlap.KindRhsContained {
		return categoryIrrelevant
	}

	unitigID := min(o.LhsID, o.RhsID)
	unitigLen := uint32(len(sequences[unitigID].Data))

	leftDelim := uint32(float64(unitigLen) * unitigMarginFrac)
	if leftDelim > unitigMarginLim {
		leftDelim = unitigMarginLim
	}
	rightDelim := uint32(float64(unitigLen) * (1 - unitigMarginFrac))
	if unitigLen-rightDelim > unitigMarginLim {
		rightDelim = unitigLen - unitigMarginLim
	}

	begin, end := o.LhsBegin, o.LhsEnd
	if o.RhsID == unitigID {
		begin, end = o.RhsBegin, o.RhsEnd
	}

	if begin <= leftDelim {
		return categoryLeft
	}
	if end >= rightDelim {
		return categoryRight
	}
	return categoryIrrelevant
}

// GreedyConstruct seeds a fresh graph from the first run's unitigs,
// selects the filler regions whose overlaps can extend a unitig end,
// and grows the graph breadth-first from the unitig-incident
// overlaps. Returns the number of unitig seeds.
func (g *Graph) GreedyConstruct(unitigs, fillers []*fasta.Sequence) int {
	numUnitigs := len(unitigs)
	sequences := fasta.NormalizeIDs(fasta.MergeSequences(unitigs, fillers))

	g.engine.Minimize(sequences[:numUnitigs])

	// find the fillers whose overlaps touch a unitig end
	relevant := make(map[uint32]bool)
	var queryBytes uint64
	for k, l := numUnitigs, numUnitigs; k < len(sequences); k++ {
		queryBytes += uint64(len(sequences[k].Data))
		if k != len(sequences)-1 && queryBytes < ovlpBatchLim {
			continue
		}
		queryBytes = 0
		for _, o := range g.mapRange(sequences, l, k+1, true, false) {
			if overlapCategoryOf(sequences, &o) != categoryIrrelevant {
				relevant[o.LhsID] = true
			}
		}
		l = k + 1
	}

	filtered := sequences[:numUnitigs]
	for _, seq := range sequences[numUnitigs:] {
		if relevant[seq.ID] {
			filtered = append(filtered, seq)
		}
	}
	sequences = fasta.NormalizeIDs(filtered)
	log.Println("kept", len(sequences)-numUnitigs, "relevant filler sequences")

	// map unitigs and the surviving fillers against each other
	overlaps := make([][]overlap.Overlap, len(sequences))
	unitigOverlaps := make([]overlapSides, numUnitigs)

	var batchBytes uint64
	for i, j := 0, 0; i < len(sequences); i++ {
		batchBytes += uint64(len(sequences[i].Data))
		if i != len(sequences)-1 && batchBytes < seqsBatchLim {
			continue
		}
		batchBytes = 0

		g.engine.Minimize(sequences[j : i+1])
		log.Println("minimized sequences", j, "-", i+1, "/", len(sequences))

		if i >= numUnitigs {
			var queryBytes uint64
			for k, l := j, j; k < i+1; k++ {
				queryBytes += uint64(len(sequences[k].Data))
				if k != i && queryBytes < ovlpBatchLim {
					continue
				}
				queryBytes = 0
				for _, o := range g.mapRange(sequences, l, k+1, true, true) {
					o.Score = sequenceOverlapType(sequences, o)
					if o.Score <= overlap.KindRhsContained {
						continue
					}
					switch {
					case int(o.LhsID) < numUnitigs:
						unitigOverlaps[o.LhsID].add(sequences[o.LhsID], o)
					case int(o.RhsID) < numUnitigs:
						reversed := overlap.Reverse(o)
						unitigOverlaps[o.RhsID].add(sequences[o.RhsID], reversed)
					default:
						overlaps[o.LhsID] = append(overlaps[o.LhsID], o)
						overlaps[o.RhsID] = append(overlaps[o.RhsID], o)
					}
				}
				l = k + 1
			}
		}
		j = i + 1
	}

	for i := 0; i < numUnitigs; i++ {
		overlaps[i] = unitigOverlaps[i].merged()
	}

	// grow the graph outward from the unitig nodes
	nodeOf := make([]*Node, len(sequences))
	type overlapKey struct {
		lhs, rhs           uint32
		lhsBegin, rhsBegin uint32
		strand             bool
	}
	forged := make(map[overlapKey]bool)

	ensureNode := func(id uint32) *Node {
		if nodeOf[id] == nil {
			nodeOf[id] = g.addNodePair(sequences[id])
		}
		return nodeOf[id]
	}

	forgeEdge := func(o overlap.Overlap) {
		key := overlapKey{
			lhs: o.LhsID, rhs: o.RhsID,
			lhsBegin: o.LhsBegin, rhsBegin: o.RhsBegin,
			strand: o.Strand,
		}
		if forged[key] {
			return
		}
		forged[key] = true

		tail := ensureNode(o.LhsID)
		head := ensureNode(o.RhsID)
		if !o.Strand {
			head = head.Pair
		}

		lhsLen := uint32(len(sequences[o.LhsID].Data))
		rhsLen := uint32(len(sequences[o.RhsID].Data))
		length := o.LhsBegin - o.RhsBegin
		lengthPair := (rhsLen - o.RhsEnd) - (lhsLen - o.LhsEnd)
		if o.Score == overlap.KindRhsToLhs {
			tail, head = head, tail
			length = -length
			lengthPair = -lengthPair
		}
		g.addEdgePair(tail, head, length, lengthPair)
	}

	var segments []uint32
	step := func(o overlap.Overlap) {
		other := o.RhsID
		if nodeOf[other] == nil {
			segments = append(segments, other)
		}
		forgeEdge(o)
	}

	for i := 0; i < numUnitigs; i++ {
		ensureNode(uint32(i))
		for _, o := range overlaps[i] {
			step(o)
		}
	}
	for len(segments) > 0 {
		id := segments[0]
		segments = segments[1:]
		for _, o := range overlaps[id] {
			step(o)
		}
	}

	log.Println("stored", len(g.nodes), "nodes and", len(g.edges), "edges")
	return numUnitigs
}

// GreedyAssemble keeps, for each unitig seed, a single greedily
// chosen extension path per direction and prunes the edges not on it.
// At every junction, edges with the longer overhang (Length) are
// tried first.
func (g *Graph) GreedyAssemble(numExpected int) {
	validNodes := make(map[uint32]bool)
	marked := make(map[uint32]struct{})

	sortEdges := func(edges []*Edge) {
		sort.SliceStable(edges, func(x, y int) bool {
			return edges[x].Length > edges[y].Length
		})
	}
	for _, node := range g.nodes {
		if node != nil {
			sortEdges(node.Inedges)
			sortEdges(node.Outedges)
		}
	}

	greedyExpand := func(start *Node, left bool) bool {
		visited := make(map[uint32]bool)

		notVisited := func(node *Node) bool {
			return !validNodes[node.ID] && !visited[node.ID]
		}
		markEdgesExcept := func(edges []*Edge, keep *Edge) {
			for _, e := range edges {
				if e.ID != keep.ID {
					marked[e.ID] = struct{}{}
					marked[e.Pair.ID] = struct{}{}
				}
			}
		}

		var expand func(node *Node) bool
		expand = func(node *Node) bool {
			visited[node.ID] = true
			edges := node.Outedges
			if left {
				edges = node.Inedges
			}
			for _, e := range edges {
				next := e.Head
				siblings := node.Outedges
				if left {
					next = e.Tail
					siblings = node.Inedges
				}
				if next.ID == start.ID || (notVisited(next) && expand(next)) {
					validNodes[next.ID] = true
					markEdgesExcept(siblings, e)
					return true
				}
			}
			return false
		}

		if expand(start) {
			validNodes[start.ID] = true
			return true
		}
		return false
	}

	for i := 0; i < numExpected*2; i += 2 {
		node := g.nodes[i]
		if node == nil {
			continue
		}
		if greedyExpand(node, true) || greedyExpand(node, false) {
			g.RemoveEdges(marked, false)
			marked = make(map[uint32]struct{})
		}
	}
	log.Println("pruned non-selected junction edges")
}
