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
	"encoding/gob"
	"log"
	"os"
	"sort"

	"github.com/exascience/elasm/internal"
	"github.com/exascience/elasm/pile"
	"github.com/google/uuid"
)

// ArchivePath is where checkpoints are stored between stages.
const ArchivePath = "elasm.archive"

type nodeArchive struct {
	ID         uint32
	Name       string
	Data       string
	Count      uint32
	IsCircular bool
	IsPolished bool
	IsUnitig   bool
	Transitive []uint32
}

type edgeArchive struct {
	ID     uint32
	Length uint32
	Weight float64
	Tail   uint32
	Head   uint32
}

// The archive flattens the node and edge pairs into id references.
// Ids double as high-water marks for the allocators, so a restored
// graph keeps allocating where the stored one left off.
type graphArchive struct {
	Stage    int32
	Piles    []*pile.Pile
	NumNodes uint32
	NumEdges uint32
	Nodes    []nodeArchive
	Edges    []edgeArchive
}

// Store writes the graph to the checkpoint archive. The archive is
// written to a unique temporary file first and moved into place, so a
// crash mid-write never clobbers the previous checkpoint.
func (g *Graph) Store() {
	archive := graphArchive{
		Stage:    g.stage,
		Piles:    g.piles,
		NumNodes: uint32(len(g.nodes)),
		NumEdges: uint32(len(g.edges)),
	}
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		transitive := make([]uint32, 0, len(node.Transitive))
		for t := range node.Transitive {
			transitive = append(transitive, t)
		}
		sort.Slice(transitive, func(x, y int) bool { return transitive[x] < transitive[y] })
		archive.Nodes = append(archive.Nodes, nodeArchive{
			ID:         node.ID,
			Name:       node.Name,
			Data:       node.Data,
			Count:      node.Count,
			IsCircular: node.IsCircular,
			IsPolished: node.IsPolished,
			IsUnitig:   node.IsUnitig,
			Transitive: transitive,
		})
	}
	for _, edge := range g.edges {
		if edge == nil {
			continue
		}
		archive.Edges = append(archive.Edges, edgeArchive{
			ID:     edge.ID,
			Length: edge.Length,
			Weight: edge.Weight,
			Tail:   edge.Tail.ID,
			Head:   edge.Head.ID,
		})
	}

	tmpPath := ArchivePath + "." + uuid.New().String()
	file := internal.FileCreate(tmpPath)
	if err := gob.NewEncoder(file).Encode(archive); err != nil {
		log.Panic("unable to store archive: ", err)
	}
	internal.Close(file)
	if err := os.Rename(tmpPath, ArchivePath); err != nil {
		log.Panic(err)
	}
}

// Load replaces the graph contents with the stored checkpoint. Unlike
// a failing Store, a failing Load is reported to the caller, which
// may fall back to a full run.
func (g *Graph) Load() (err error) {
	file, err := os.Open(ArchivePath)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()

	var archive graphArchive
	if err := gob.NewDecoder(file).Decode(&archive); err != nil {
		return err
	}

	g.stage = archive.Stage
	g.piles = archive.Piles
	g.nodes = make([]*Node, archive.NumNodes)
	g.edges = make([]*Edge, archive.NumEdges)

	for _, na := range archive.Nodes {
		transitive := make(map[uint32]struct{}, len(na.Transitive))
		for _, t := range na.Transitive {
			transitive[t] = struct{}{}
		}
		g.nodes[na.ID] = &Node{
			ID:         na.ID,
			Name:       na.Name,
			Data:       na.Data,
			Count:      na.Count,
			IsCircular: na.IsCircular,
			IsPolished: na.IsPolished,
			IsUnitig:   na.IsUnitig,
			Transitive: transitive,
		}
	}
	for _, node := range g.nodes {
		if node != nil {
			node.Pair = g.nodes[node.ID^1]
			if node.Pair == nil {
				log.Panicf("archive lost the partner of node %v", node.ID)
			}
		}
	}

	// archive order is ascending edge id, which reproduces the
	// adjacency list order of the stored graph
	for _, ea := range archive.Edges {
		edge := &Edge{
			ID:     ea.ID,
			Length: ea.Length,
			Weight: ea.Weight,
			Tail:   g.nodes[ea.Tail],
			Head:   g.nodes[ea.Head],
		}
		g.edges[ea.ID] = edge
		edge.Tail.Outedges = append(edge.Tail.Outedges, edge)
		edge.Head.Inedges = append(edge.Head.Inedges, edge)
	}
	for _, edge := range g.edges {
		if edge != nil {
			edge.Pair = g.edges[edge.ID^1]
			if edge.Pair == nil {
				log.Panicf("archive lost the twin of edge %v", edge.ID)
			}
		}
	}

	return nil
}
