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
	"bufio"
	"fmt"
	"log"

	"github.com/exascience/elasm/internal"
)

func strandSign(node *Node) byte {
	if node.IsRC() {
		return '-'
	}
	return '+'
}

// PrintGFA writes the surviving graph in graphical fragment assembly
// format: S records for the canonical nodes (isolated single-read
// nodes are skipped), a self-link for circular ones, and L records
// with the overlap match length for every edge.
func (g *Graph) PrintGFA(path string) {
	if path == "" {
		return
	}
	file := internal.FileCreate(path)
	defer internal.Close(file)
	buf := bufio.NewWriter(file)

	for _, node := range g.nodes {
		if node == nil || node.IsRC() ||
			(node.Count == 1 && node.Outdegree() == 0 && node.Indegree() == 0) {
			continue
		}
		fmt.Fprintf(buf, "S\t%s\t%s\tLN:i:%d\tRC:i:%d\n",
			node.Name, node.Data, len(node.Data), node.Count)
		if node.IsCircular {
			fmt.Fprintf(buf, "L\t%s\t+\t%s\t+\t0M\n", node.Name, node.Name)
		}
	}
	for _, edge := range g.edges {
		if edge == nil {
			continue
		}
		fmt.Fprintf(buf, "L\t%s\t%c\t%s\t%c\t%dM\n",
			edge.Tail.Name, strandSign(edge.Tail),
			edge.Head.Name, strandSign(edge.Head),
			uint32(len(edge.Tail.Data))-edge.Length)
	}

	if err := buf.Flush(); err != nil {
		log.Panic(err)
	}
}

// PrintCSV dumps the nodes, edges, and circular self-links in a
// spreadsheet-friendly format, mainly for inspecting the layout
// weights.
func (g *Graph) PrintCSV(path string) {
	if path == "" {
		return
	}
	file := internal.FileCreate(path)
	defer internal.Close(file)
	buf := bufio.NewWriter(file)

	for _, node := range g.nodes {
		if node == nil || node.IsRC() ||
			(node.Count == 1 && node.Outdegree() == 0 && node.Indegree() == 0) {
			continue
		}
		fmt.Fprintf(buf, "%d [%d] LN:i:%d RC:i:%d,%d [%d] LN:i:%d RC:i:%d,0,-\n",
			node.ID, node.ID/2, len(node.Data), node.Count,
			node.Pair.ID, node.Pair.ID/2, len(node.Pair.Data), node.Pair.Count)
	}
	for _, edge := range g.edges {
		if edge == nil {
			continue
		}
		fmt.Fprintf(buf, "%d [%d] LN:i:%d RC:i:%d,%d [%d] LN:i:%d RC:i:%d,1,%d %d %g\n",
			edge.Tail.ID, edge.Tail.ID/2, len(edge.Tail.Data), edge.Tail.Count,
			edge.Head.ID, edge.Head.ID/2, len(edge.Head.Data), edge.Head.Count,
			edge.ID, edge.Length, edge.Weight)
	}
	for _, node := range g.nodes {
		if node == nil || !node.IsCircular {
			continue
		}
		fmt.Fprintf(buf, "%d [%d] LN:i:%d RC:i:%d,%d [%d] LN:i:%d RC:i:%d,1,-\n",
			node.ID, node.ID/2, len(node.Data), node.Count,
			node.ID, node.ID/2, len(node.Data), node.Count)
	}

	if err := buf.Flush(); err != nil {
		log.Panic(err)
	}
}
