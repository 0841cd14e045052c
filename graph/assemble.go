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

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/elasm/fasta"
)

const (
	// maxTipReads is the largest read count a dead-end chain may
	// collapse before it stops counting as a tip.
	maxTipReads = 5

	// maxBubbleHops bounds the breadth-first bubble search.
	maxBubbleHops = 3400

	// longEdgeRounds is the number of layout/removal rounds in the
	// long-edge phase.
	longEdgeRounds = 16
)

// Assemble runs the simplification passes over the constructed graph:
// transitive reduction (stage -3), tip and bubble removal (stage -2),
// and layout-guided long-edge removal (stage -1), with a checkpoint
// after each stage.
func (g *Graph) Assemble() {
	if g.stage < -3 || g.stage > -1 {
		return
	}

	if g.stage == -3 { // remove transitive edges
		num := g.RemoveTransitiveEdges()
		log.Println("removed", num, "transitive edges")

		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}

	if g.stage == -2 { // remove tips and bubbles
		for {
			numChanges := g.RemoveTips()
			numChanges += g.RemoveBubbles()
			if numChanges == 0 {
				break
			}
		}
		log.Println("removed tips and bubbles")

		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}

	if g.stage == -1 { // remove long edges
		num := g.RemoveLongEdges(longEdgeRounds)
		log.Println("removed", num, "long edges")

		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}

	for {
		numChanges := g.RemoveTips()
		numChanges += g.RemoveBubbles()
		if numChanges == 0 {
			break
		}
	}
}

// RemoveTransitiveEdges removes every edge whose span is explained by
// a two-hop path of comparable total length. The endpoints of removed
// edges stay recorded as transitive siblings, which keeps them
// attracting each other in the force-directed layout.
func (g *Graph) RemoveTransitiveEdges() uint32 {
	isComparable := func(a, b float64) bool {
		const eps = 0.12
		return (a >= b*(1-eps) && a <= b*(1+eps)) ||
			(b >= a*(1-eps) && b <= a*(1+eps))
	}

	candidate := make([]*Edge, len(g.nodes))
	marked := make(map[uint32]struct{})
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		for _, jt := range node.Outedges {
			candidate[jt.Head.ID] = jt
		}
		for _, jt := range node.Outedges {
			for _, kt := range jt.Head.Outedges {
				if direct := candidate[kt.Head.ID]; direct != nil &&
					isComparable(float64(jt.Length)+float64(kt.Length), float64(direct.Length)) {
					marked[direct.ID] = struct{}{}
					marked[direct.Pair.ID] = struct{}{}
				}
			}
		}
		for _, jt := range node.Outedges {
			candidate[jt.Head.ID] = nil
		}
	}

	for id := range marked { // keep the removed spans for the layout
		if id&1 != 0 {
			lhs := g.edges[id].Tail.ID &^ 1
			rhs := g.edges[id].Head.ID &^ 1
			g.nodes[lhs].Transitive[rhs] = struct{}{}
			g.nodes[rhs].Transitive[lhs] = struct{}{}
		}
	}

	g.RemoveEdges(marked, false)
	return uint32(len(marked) / 2)
}

// RemoveTips excises short dead-end chains hanging off junctions.
// A chain counts as a tip when it collapses at most maxTipReads
// source reads and rejoins the graph at a junction that stays
// reachable through another in-edge.
func (g *Graph) RemoveTips() uint32 {
	numTips := uint32(0)
	visited := bitset.New(uint(len(g.nodes)))

	for _, node := range g.nodes {
		if node == nil || visited.Test(uint(node.ID)) || !node.IsTip() {
			continue
		}
		isCircular := false
		numReads := uint32(0)

		end := node
		for !end.IsJunction() {
			numReads += end.Count
			visited.Set(uint(end.ID))
			visited.Set(uint(end.Pair.ID))
			if end.Outdegree() == 0 || end.Outedges[0].Head.IsJunction() {
				break
			}
			end = end.Outedges[0].Head
			if end == node {
				isCircular = true
				break
			}
		}

		if isCircular || end.Outdegree() == 0 || numReads > maxTipReads {
			continue
		}

		marked := make(map[uint32]struct{})
		for _, jt := range end.Outedges {
			if jt.Head.Indegree() > 1 {
				marked[jt.ID] = struct{}{}
				marked[jt.Pair.ID] = struct{}{}
			}
		}
		if len(marked)/2 == end.Outdegree() { // detach the whole chain
			begin := node
			for begin != end {
				marked[begin.Outedges[0].ID] = struct{}{}
				marked[begin.Outedges[0].Pair.ID] = struct{}{}
				begin = begin.Outedges[0].Head
			}
			numTips++
		}
		g.RemoveEdges(marked, true)
	}

	return numTips
}

// RemoveBubbles finds pairs of paths sharing only their endpoints and
// removes the arm carrying fewer source reads. Both arms must either
// be branch-free, or reconstruct into sequences of similar length
// sharing at least half of their bases.
func (g *Graph) RemoveBubbles() uint32 {
	hops := make([]uint32, len(g.nodes))
	predecessor := make([]*Node, len(g.nodes))

	pathExtract := func(begin, end *Node) []*Node {
		var dst []*Node
		for end != begin {
			dst = append(dst, end)
			end = predecessor[end.ID]
		}
		dst = append(dst, begin)
		for i, j := 0, len(dst)-1; i < j; i, j = i+1, j-1 {
			dst[i], dst[j] = dst[j], dst[i]
		}
		return dst
	}

	branchFree := func(path []*Node) bool {
		if len(path) == 0 {
			return false
		}
		for i := 1; i < len(path)-1; i++ {
			if path[i].IsJunction() {
				return false
			}
		}
		return true
	}

	pathData := func(path []*Node) string {
		var data []byte
		for i := 0; i < len(path)-1; i++ {
			for _, e := range path[i].Outedges {
				if e.Head == path[i+1] {
					data = append(data, e.Label()...)
					break
				}
			}
		}
		return string(append(data, path[len(path)-1].Data...))
	}

	isBubble := func(lhs, rhs []*Node) bool {
		if len(lhs) == 0 || len(rhs) == 0 {
			return false
		}
		distinct := make(map[*Node]struct{})
		for _, n := range lhs {
			distinct[n] = struct{}{}
		}
		for _, n := range rhs {
			distinct[n] = struct{}{}
		}
		if len(lhs)+len(rhs)-2 != len(distinct) { // must share endpoints only
			return false
		}
		for _, n := range lhs {
			if _, ok := distinct[n.Pair]; ok {
				return false
			}
		}
		if branchFree(lhs) && branchFree(rhs) {
			return true
		}

		lhsData, rhsData := pathData(lhs), pathData(rhs)
		shorter, longer := len(lhsData), len(rhsData)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if float64(shorter) < float64(longer)*0.8 {
			return false
		}

		matches := uint32(0)
		lhsSeq := &fasta.Sequence{Name: "l", Data: lhsData}
		rhsSeq := &fasta.Sequence{Name: "r", Data: rhsData}
		for _, o := range g.engine.MapPair(lhsSeq, rhsSeq) {
			if o.Score > matches {
				matches = o.Score
			}
		}
		return float64(matches) > 0.5*float64(shorter)
	}

	numBubbles := uint32(0)
	for _, node := range g.nodes {
		if node == nil || node.Outdegree() < 2 {
			continue
		}

		// breadth-first search until two branches meet
		begin := node
		var end, otherEnd *Node
		queue := []*Node{begin}
		visited := []*Node{begin}
	search:
		for len(queue) > 0 {
			jt := queue[0]
			queue = queue[1:]

			for _, kt := range jt.Outedges {
				if kt.Head == begin { // cycle
					continue
				}
				if hops[jt.ID] > maxBubbleHops { // out of reach
					continue
				}
				hops[kt.Head.ID] = hops[jt.ID] + 1
				visited = append(visited, kt.Head)
				queue = append(queue, kt.Head)

				if predecessor[kt.Head.ID] != nil { // second arrival
					end = kt.Head
					otherEnd = jt
					break search
				}
				predecessor[kt.Head.ID] = jt
			}
		}

		marked := make(map[uint32]struct{})
		if end != nil {
			lhs := pathExtract(begin, end)
			rhs := append(pathExtract(begin, otherEnd), end)

			if isBubble(lhs, rhs) {
				lhsCount, rhsCount := uint32(0), uint32(0)
				for _, n := range lhs {
					lhsCount += n.Count
				}
				for _, n := range rhs {
					rhsCount += n.Count
				}
				lighter, heavier := lhs, rhs
				if lhsCount > rhsCount {
					lighter, heavier = rhs, lhs
				}
				marked = g.FindRemovableEdges(lighter)
				if len(marked) == 0 {
					marked = g.FindRemovableEdges(heavier)
				}
			}
		}

		for _, jt := range visited {
			hops[jt.ID] = 0
			predecessor[jt.ID] = nil
		}

		g.RemoveEdges(marked, true)
		if len(marked) > 0 {
			numBubbles++
		}
	}

	return numBubbles
}

// RemoveLongEdges repeatedly lays the graph out in the plane and
// removes junction out-edges stretched to more than twice the length
// of a sibling, cleaning up with unitig creation and tip removal
// between rounds.
func (g *Graph) RemoveLongEdges(numRounds uint32) uint32 {
	numLongEdges := uint32(0)

	for i := uint32(0); i < numRounds; i++ {
		g.CreateUnitigs(42) // collapse chains so the layout stays small
		g.createForceDirectedLayout()

		marked := make(map[uint32]struct{})
		for _, node := range g.nodes {
			if node == nil || node.Outdegree() < 2 {
				continue
			}
			for _, jt := range node.Outedges {
				for _, kt := range node.Outedges {
					if jt != kt && jt.Weight*2.0 < kt.Weight {
						marked[kt.ID] = struct{}{}
						marked[kt.Pair.ID] = struct{}{}
					}
				}
			}
		}
		g.RemoveEdges(marked, false)
		numLongEdges += uint32(len(marked) / 2)

		g.RemoveTips()
	}

	return numLongEdges
}
