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

// Package graph implements the bidirected assembly string graph: its
// construction from read overlaps, the topology-driven simplification
// passes that reduce it to unitigs, and the checkpointing protocol
// that allows resuming an assembly between stages.
package graph

import (
	"log"
	"strconv"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/minimizer"
	"github.com/exascience/elasm/pile"
)

// A Node is one orientation of a read or unitig. Nodes are allocated
// in pairs holding a sequence and its reverse complement, so the
// partner of node id is always id^1.
type Node struct {
	ID         uint32
	Name       string
	Data       string
	Count      uint32
	IsCircular bool
	IsPolished bool
	IsUnitig   bool
	Transitive map[uint32]struct{}
	Inedges    []*Edge
	Outedges   []*Edge
	Pair       *Node
}

// Indegree returns the number of incoming edges.
func (n *Node) Indegree() int { return len(n.Inedges) }

// Outdegree returns the number of outgoing edges.
func (n *Node) Outdegree() int { return len(n.Outedges) }

// IsRC tells whether the node is the reverse-complement member of its
// pair.
func (n *Node) IsRC() bool { return n.ID&1 != 0 }

// IsJunction tells whether the node has more than one edge on either
// side.
func (n *Node) IsJunction() bool { return n.Indegree() > 1 || n.Outdegree() > 1 }

// IsTip tells whether the node starts a dead-end chain.
func (n *Node) IsTip() bool {
	return n.Indegree() == 0 && n.Outdegree() > 0 && !n.IsUnitig
}

// An Edge connects two nodes that overlap. Length is the overhang on
// the tail side, i.e. the number of tail bases not covered by the
// overlap. Every edge has a twin Pair connecting the partners of its
// endpoints in the opposite direction.
type Edge struct {
	ID     uint32
	Length uint32
	Weight float64
	Tail   *Node
	Head   *Node
	Pair   *Edge
}

// Label returns the tail bases the edge contributes when its tail and
// head are concatenated into a unitig.
func (e *Edge) Label() string {
	if e.Length > uint32(len(e.Tail.Data)) {
		log.Panicf("edge %v length %v exceeds tail length %v", e.ID, e.Length, len(e.Tail.Data))
	}
	return e.Tail.Data[:e.Length]
}

// A Graph is a bidirected assembly string graph together with the
// coverage piles of its source reads and the checkpoint stage
// counter. Removed nodes and edges leave nil holes so that ids remain
// stable across mutations.
type Graph struct {
	engine *minimizer.Engine
	stage  int32
	piles  []*pile.Pile
	nodes  []*Node
	edges  []*Edge
}

// New creates an empty graph at the initial stage. With weaken, the
// overlap search uses larger (k, w) minimizers suited to highly
// accurate reads.
func New(weaken bool) *Graph {
	k, w := uint32(15), uint32(5)
	if weaken {
		k, w = 29, 9
	}
	return &Graph{
		engine: minimizer.New(k, w),
		stage:  -5,
	}
}

// Stage returns the current checkpoint stage.
func (g *Graph) Stage() int32 { return g.stage }

// Piles returns the coverage piles, indexed by read id.
func (g *Graph) Piles() []*pile.Pile { return g.piles }

// Clear resets the graph to a fresh pre-assembly state.
func (g *Graph) Clear() {
	g.piles = nil
	g.nodes = nil
	g.edges = nil
	g.stage = -5
}

// addNodePair allocates a node pair for a sequence and its reverse
// complement and returns the forward member.
func (g *Graph) addNodePair(seq *fasta.Sequence) *Node {
	node := &Node{
		ID:         uint32(len(g.nodes)),
		Name:       seq.Name,
		Data:       seq.Data,
		Count:      1,
		Transitive: make(map[uint32]struct{}),
	}
	pair := &Node{
		ID:         node.ID + 1,
		Name:       seq.Name,
		Data:       fasta.ReverseComplement(seq.Data),
		Count:      1,
		Transitive: make(map[uint32]struct{}),
	}
	node.Pair, pair.Pair = pair, node
	g.nodes = append(g.nodes, node, pair)
	return node
}

// addEdgePair allocates an edge and its twin, hooking both into their
// endpoints' adjacency lists.
func (g *Graph) addEdgePair(tail, head *Node, length, lengthPair uint32) *Edge {
	edge := &Edge{
		ID:     uint32(len(g.edges)),
		Length: length,
		Tail:   tail,
		Head:   head,
	}
	pair := &Edge{
		ID:     edge.ID + 1,
		Length: lengthPair,
		Tail:   head.Pair,
		Head:   tail.Pair,
	}
	edge.Pair, pair.Pair = pair, edge
	tail.Outedges = append(tail.Outedges, edge)
	head.Inedges = append(head.Inedges, edge)
	pair.Tail.Outedges = append(pair.Tail.Outedges, pair)
	pair.Head.Inedges = append(pair.Head.Inedges, pair)
	g.edges = append(g.edges, edge, pair)
	return edge
}

func detachEdge(edges []*Edge, edge *Edge) []*Edge {
	k := 0
	for _, e := range edges {
		if e != edge {
			edges[k] = e
			k++
		}
	}
	return edges[:k]
}

// RemoveEdges detaches the given edges from their endpoints' adjacency
// lists. With removeNodes, nodes left without any edge are dropped as
// well.
func (g *Graph) RemoveEdges(ids map[uint32]struct{}, removeNodes bool) {
	nodeIDs := make(map[uint32]struct{})
	for id := range ids {
		edge := g.edges[id]
		if edge == nil {
			continue
		}
		if removeNodes {
			nodeIDs[edge.Tail.ID] = struct{}{}
			nodeIDs[edge.Head.ID] = struct{}{}
		}
		edge.Tail.Outedges = detachEdge(edge.Tail.Outedges, edge)
		edge.Head.Inedges = detachEdge(edge.Head.Inedges, edge)
	}
	if removeNodes {
		for id := range nodeIDs {
			if node := g.nodes[id]; node != nil &&
				node.Indegree() == 0 && node.Outdegree() == 0 {
				g.nodes[id] = nil
			}
		}
	}
	for id := range ids {
		g.edges[id] = nil
	}
}

// FindRemovableEdges computes the edge subset of a path that can be
// removed without cutting off other paths through its junctions: only
// edges before the first multi-indegree node and after the last
// multi-outdegree node qualify. An empty result means the path is too
// entangled to remove.
func (g *Graph) FindRemovableEdges(path []*Node) map[uint32]struct{} {
	dst := make(map[uint32]struct{})
	if len(path) == 0 {
		return dst
	}

	findEdge := func(tail, head *Node) *Edge {
		for _, e := range tail.Outedges {
			if e.Head == head {
				return e
			}
		}
		return nil
	}

	markEdge := func(tail, head *Node) {
		e := findEdge(tail, head)
		dst[e.ID] = struct{}{}
		dst[e.Pair.ID] = struct{}{}
	}

	pref, suff := -1, -1
	for i := 1; i < len(path)-1; i++ {
		if path[i].Indegree() > 1 && pref == -1 {
			pref = i
		}
		if path[i].Outdegree() > 1 {
			suff = i
		}
	}

	if pref == -1 && suff == -1 { // remove the whole path
		for i := 0; i < len(path)-1; i++ {
			markEdge(path[i], path[i+1])
		}
		return dst
	}
	if pref != -1 && path[pref].Outdegree() > 1 {
		return dst
	}
	if suff != -1 && path[suff].Indegree() > 1 {
		return dst
	}

	if pref == -1 { // keep everything up to the last branching exit
		for i := suff; i < len(path)-1; i++ {
			markEdge(path[i], path[i+1])
		}
	} else if suff == -1 { // keep everything after the first branching entry
		for i := 0; i < pref; i++ {
			markEdge(path[i], path[i+1])
		}
	} else if suff < pref {
		for i := suff; i < pref; i++ {
			markEdge(path[i], path[i+1])
		}
	}
	return dst
}

func unitigName(isCircular bool, id uint32) string {
	if isCircular {
		return "Ctg" + strconv.FormatUint(uint64(id), 10)
	}
	return "Utg" + strconv.FormatUint(uint64(id), 10)
}
