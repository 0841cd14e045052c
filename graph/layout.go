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
	"math"
	"sort"

	"github.com/exascience/pargo/parallel"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// Barnes-Hut quadtree over component positions, used to approximate
// the pairwise repulsive forces of the layout.
type quadtree struct {
	nucleus  r2.Vec
	width    float64
	center   r2.Vec
	mass     uint32
	subtrees []quadtree
}

func newQuadtree(nucleus r2.Vec, width float64) quadtree {
	return quadtree{nucleus: nucleus, width: width}
}

func (q *quadtree) add(p r2.Vec) bool {
	if q.nucleus.X-q.width > p.X || p.X > q.nucleus.X+q.width ||
		q.nucleus.Y-q.width > p.Y || p.Y > q.nucleus.Y+q.width {
		return false
	}
	q.mass++
	if q.mass == 1 {
		q.center = p
	} else if len(q.subtrees) == 0 {
		if q.center == p {
			return true
		}
		w := q.width / 2
		q.subtrees = []quadtree{
			newQuadtree(r2.Vec{X: q.nucleus.X + w, Y: q.nucleus.Y + w}, w),
			newQuadtree(r2.Vec{X: q.nucleus.X - w, Y: q.nucleus.Y + w}, w),
			newQuadtree(r2.Vec{X: q.nucleus.X - w, Y: q.nucleus.Y - w}, w),
			newQuadtree(r2.Vec{X: q.nucleus.X + w, Y: q.nucleus.Y - w}, w),
		}
		for i := range q.subtrees {
			if q.subtrees[i].add(q.center) {
				break
			}
		}
	}
	for i := range q.subtrees {
		if q.subtrees[i].add(p) {
			break
		}
	}
	return true
}

func (q *quadtree) centre() {
	if len(q.subtrees) == 0 {
		return
	}
	q.center = r2.Vec{}
	for i := range q.subtrees {
		q.subtrees[i].centre()
		q.center = q.center.Add(q.subtrees[i].center.Scale(float64(q.subtrees[i].mass)))
	}
	q.center = q.center.Scale(1 / float64(q.mass))
}

func (q *quadtree) force(p r2.Vec, k float64) r2.Vec {
	delta := p.Sub(q.center)
	distance := math.Hypot(delta.X, delta.Y)
	if q.width*2/distance < 1 {
		return delta.Scale(float64(q.mass) * (k * k) / (distance * distance))
	}
	delta = r2.Vec{}
	for i := range q.subtrees {
		delta = delta.Add(q.subtrees[i].force(p, k))
	}
	return delta
}

// layoutSeed makes successive layouts start from different but
// reproducible positions.
var layoutSeed uint64 = 21

// createForceDirectedLayout embeds every non-trivial weakly-connected
// component in the unit square and writes the resulting Euclidean
// edge lengths into the edge weights. Attraction acts along edges and
// transitive sibling links, repulsion comes from the Barnes-Hut
// approximation over all component members.
func (g *Graph) createForceDirectedLayout() {
	var components [][]uint32
	componentOf := make([]map[uint32]struct{}, 0)
	{
		visited := make([]bool, len(g.nodes))
		for i, node := range g.nodes {
			if node == nil || visited[i] {
				continue
			}
			members := make(map[uint32]struct{})
			queue := []uint32{uint32(i)}
			for len(queue) > 0 {
				j := queue[0]
				queue = queue[1:]
				if visited[j] {
					continue
				}
				n := g.nodes[j]
				visited[n.ID] = true
				visited[n.Pair.ID] = true
				members[n.ID&^1] = struct{}{}
				for _, e := range n.Inedges {
					queue = append(queue, e.Tail.ID)
				}
				for _, e := range n.Outedges {
					queue = append(queue, e.Head.ID)
				}
			}
			ordered := make([]uint32, 0, len(members))
			for m := range members {
				ordered = append(ordered, m)
			}
			sort.Slice(ordered, func(x, y int) bool { return ordered[x] < ordered[y] })
			components = append(components, ordered)
			componentOf = append(componentOf, members)
		}
	}
	order := make([]int, len(components))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return len(components[order[x]]) > len(components[order[y]])
	})

	layoutSeed <<= 1
	rng := rand.New(rand.NewSource(layoutSeed))

	for _, c := range order {
		component, members := components[c], componentOf[c]
		if len(component) < 6 {
			continue
		}
		hasJunctions := false
		for _, n := range component {
			if g.nodes[n].IsJunction() {
				hasJunctions = true
				break
			}
		}
		if !hasJunctions {
			continue
		}

		for _, n := range component { // restrict sibling links to the component
			valid := make(map[uint32]struct{})
			for m := range g.nodes[n].Transitive {
				if _, ok := members[m]; ok {
					valid[m] = struct{}{}
				}
			}
			g.nodes[n].Transitive = valid
		}

		const numIterations = 100
		k := math.Sqrt(1 / float64(len(component)))
		t := 0.1
		dt := t / float64(numIterations+1)

		points := make([]r2.Vec, len(g.nodes))
		for _, n := range component {
			points[n] = r2.Vec{X: rng.Float64(), Y: rng.Float64()}
		}

		for i := 0; i < numIterations; i++ {
			var xMin, xMax, yMin, yMax float64
			for _, n := range component {
				xMin = math.Min(xMin, points[n].X)
				xMax = math.Max(xMax, points[n].X)
				yMin = math.Min(yMin, points[n].Y)
				yMax = math.Max(yMax, points[n].Y)
			}
			w, h := (xMax-xMin)/2, (yMax-yMin)/2

			tree := newQuadtree(r2.Vec{X: xMin + w, Y: yMin + h}, math.Max(w, h)+0.01)
			for _, n := range component {
				tree.add(points[n])
			}
			tree.centre()

			displacements := make([]r2.Vec, len(g.nodes))
			attract := func(displacement r2.Vec, n, m uint32) r2.Vec {
				delta := points[n].Sub(points[m])
				distance := math.Hypot(delta.X, delta.Y)
				if distance < 0.01 {
					distance = 0.01
				}
				return displacement.Add(delta.Scale(-1 * distance / k))
			}
			parallel.Range(0, len(component), 0, func(low, high int) {
				for x := low; x < high; x++ {
					n := component[x]
					displacement := tree.force(points[n], k)
					for _, e := range g.nodes[n].Inedges {
						displacement = attract(displacement, n, e.Tail.ID&^1)
					}
					for _, e := range g.nodes[n].Outedges {
						displacement = attract(displacement, n, e.Head.ID&^1)
					}
					for m := range g.nodes[n].Transitive {
						displacement = attract(displacement, n, m)
					}
					length := math.Hypot(displacement.X, displacement.Y)
					if length < 0.01 {
						length = 0.1
					}
					displacements[n] = displacement.Scale(t / length)
				}
			})
			for _, n := range component {
				points[n] = points[n].Add(displacements[n])
			}

			t -= dt
		}

		for _, e := range g.edges {
			if e == nil || e.ID&1 != 0 {
				continue
			}
			n, m := e.Tail.ID&^1, e.Head.ID&^1
			if _, ok := members[n]; !ok {
				continue
			}
			if _, ok := members[m]; !ok {
				continue
			}
			delta := points[n].Sub(points[m])
			e.Weight = math.Hypot(delta.X, delta.Y)
			e.Pair.Weight = e.Weight
		}
	}
}
