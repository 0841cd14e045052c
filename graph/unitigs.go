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
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/elasm/fasta"
)

// addUnitigPair collapses the chain from begin to end into a fresh
// unitig node pair. The chain is walked along the first out-edges;
// for a circular chain (begin == end) the terminal node's data is
// already contributed by the closing edge label.
func (g *Graph) addUnitigPair(begin, end *Node) *Node {
	unitig := &Node{
		ID:         uint32(len(g.nodes)),
		IsCircular: begin == end,
		IsUnitig:   true,
		Transitive: make(map[uint32]struct{}),
	}

	var data strings.Builder
	it := begin
	for {
		data.WriteString(it.Outedges[0].Label())
		unitig.Count += it.Count
		if it = it.Outedges[0].Head; it == end {
			break
		}
	}
	if begin != end {
		data.WriteString(end.Data)
		unitig.Count += end.Count
	}
	unitig.Data = data.String()
	unitig.Name = unitigName(unitig.IsCircular, unitig.ID)

	pair := &Node{
		ID:         unitig.ID + 1,
		Name:       unitig.Name,
		Data:       fasta.ReverseComplement(unitig.Data),
		Count:      unitig.Count,
		IsCircular: unitig.IsCircular,
		IsUnitig:   true,
		Transitive: make(map[uint32]struct{}),
	}
	unitig.Pair, pair.Pair = pair, unitig
	g.nodes = append(g.nodes, unitig, pair)
	return unitig
}

// CreateUnitigs merges every maximal non-branching chain into a
// unitig node pair, reconnecting it to the flanking junctions.
// Non-circular chains must span at least 2*epsilon + 2 nodes and are
// trimmed by epsilon nodes on both ends first, which keeps the
// junction neighborhoods at original resolution. Returns the number
// of unitigs created.
func (g *Graph) CreateUnitigs(epsilon uint32) uint32 {
	marked := make(map[uint32]struct{})
	nodeUpdates := make([]uint32, len(g.nodes))
	visited := bitset.New(uint(len(g.nodes)))
	numUnitigs := uint32(0)

	numNodes := len(g.nodes)
	for idx := 0; idx < numNodes; idx++ {
		node := g.nodes[idx]
		if node == nil || visited.Test(uint(node.ID)) || node.IsJunction() {
			continue
		}

		extension := uint32(1)
		isCircular := false

		begin := node
		for !begin.IsJunction() { // extend left
			visited.Set(uint(begin.ID))
			visited.Set(uint(begin.Pair.ID))
			if begin.Indegree() == 0 || begin.Inedges[0].Tail.IsJunction() {
				break
			}
			begin = begin.Inedges[0].Tail
			extension++
			if begin == node {
				isCircular = true
				break
			}
		}

		end := node
		for !end.IsJunction() { // extend right
			visited.Set(uint(end.ID))
			visited.Set(uint(end.Pair.ID))
			if end.Outdegree() == 0 || end.Outedges[0].Head.IsJunction() {
				break
			}
			end = end.Outedges[0].Head
			extension++
			if end == node {
				isCircular = true
				break
			}
		}

		if !isCircular && begin == end {
			continue
		}
		if !isCircular && extension < 2*epsilon+2 {
			continue
		}

		if begin != end { // step away from the junction neighborhoods
			for i := uint32(0); i < epsilon; i++ {
				begin = begin.Outedges[0].Head
			}
			for i := uint32(0); i < epsilon; i++ {
				end = end.Inedges[0].Tail
			}
		}

		unitig := g.addUnitigPair(begin, end)
		numUnitigs++

		if begin != end { // connect the unitig to the flanking junctions
			if begin.Indegree() > 0 {
				e := begin.Inedges[0]
				marked[e.ID] = struct{}{}
				marked[e.Pair.ID] = struct{}{}
				g.addEdgePair(e.Tail, unitig, e.Length,
					e.Pair.Length+uint32(len(unitig.Pair.Data))-uint32(len(begin.Pair.Data)))
			}
			if end.Outdegree() > 0 {
				e := end.Outedges[0]
				marked[e.ID] = struct{}{}
				marked[e.Pair.ID] = struct{}{}
				g.addEdgePair(unitig, e.Head,
					e.Length+uint32(len(unitig.Data))-uint32(len(end.Data)),
					e.Pair.Length)
			}
		}

		jt := begin
		for {
			e := jt.Outedges[0]
			marked[e.ID] = struct{}{}
			marked[e.Pair.ID] = struct{}{}

			base := jt.ID &^ 1
			nodeUpdates[base] = unitig.ID
			for t := range g.nodes[base].Transitive {
				unitig.Transitive[t] = struct{}{}
			}

			if jt = e.Head; jt == end {
				break
			}
		}
	}

	g.RemoveEdges(marked, true)

	for _, node := range g.nodes { // remap transitive sibling sets
		if node == nil {
			continue
		}
		updated := make(map[uint32]struct{}, len(node.Transitive))
		for t := range node.Transitive {
			if t < uint32(len(nodeUpdates)) && nodeUpdates[t] != 0 {
				updated[nodeUpdates[t]] = struct{}{}
			} else {
				updated[t] = struct{}{}
			}
		}
		node.Transitive = updated
	}

	return numUnitigs
}

// GetUnitigs extracts the canonical unitig sequences, annotated with
// their length, collapsed read count, and circularity. With
// dropUnpolished, unitigs the polisher never touched are omitted.
func (g *Graph) GetUnitigs(dropUnpolished bool) []*fasta.Sequence {
	g.CreateUnitigs(0)

	var dst []*fasta.Sequence
	for _, node := range g.nodes {
		if node == nil || node.IsRC() || !node.IsUnitig {
			continue
		}
		if dropUnpolished && !node.IsPolished {
			continue
		}
		circular := 0
		if node.IsCircular {
			circular = 1
		}
		name := node.Name +
			" LN:i:" + formatUint(uint32(len(node.Data))) +
			" RC:i:" + formatUint(node.Count) +
			" XO:i:" + formatUint(uint32(circular))
		dst = append(dst, &fasta.Sequence{Name: name, Data: node.Data})
	}
	return fasta.NormalizeIDs(dst)
}
