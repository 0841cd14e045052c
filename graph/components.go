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

// A union-find structure for clustering reads into overlap-connected
// components during chimera and repeat resolution.

type disjointSet []int

func newDisjointSet(size int) disjointSet {
	set := make(disjointSet, size)
	for i := range set {
		set[i] = i
	}
	return set
}

func (set disjointSet) findRepNode(nodeID int) int {
	representative := nodeID
	for representative != set[representative] {
		representative = set[representative]
	}
	for nodeID != representative {
		next := set[nodeID]
		set[nodeID] = representative
		nodeID = next
	}
	return representative
}

func (set disjointSet) joinNodes(nodeID1, nodeID2 int) {
	repNode1 := set.findRepNode(nodeID1)
	repNode2 := set.findRepNode(nodeID2)
	if repNode1 != repNode2 {
		set[repNode1] = repNode2
	}
}

// cluster groups the member ids by their representative, keeping
// members in ascending order.
func (set disjointSet) cluster(member func(int) bool) [][]uint32 {
	groups := make(map[int][]uint32)
	var order []int
	for i := range set {
		if !member(i) {
			continue
		}
		rep := set.findRepNode(i)
		if _, seen := groups[rep]; !seen {
			order = append(order, rep)
		}
		groups[rep] = append(groups[rep], uint32(i))
	}
	components := make([][]uint32, 0, len(order))
	for _, rep := range order {
		components = append(components, groups[rep])
	}
	return components
}
