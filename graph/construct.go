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
	"strconv"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/minimizer"
	"github.com/exascience/elasm/overlap"
	"github.com/exascience/elasm/pile"
	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

const (
	// seqsBatchLim bounds the total base count of a minimizer index
	// batch.
	seqsBatchLim = 1 << 32

	// ovlpBatchLim bounds the total base count of queries mapped
	// between two drain points.
	ovlpBatchLim = 1 << 30

	// maxPileLayers caps the overlaps retained per read for coverage
	// accumulation; only the longest ones matter.
	maxPileLayers = 16

	// FillerSeqsPath stores the non-chimeric valid read regions
	// reused by a second assembly run.
	FillerSeqsPath = "extracted.fasta"
)

// mapRange maps the query sequences with indices [low, high) against
// the engine's frozen index and returns all candidate overlaps in
// query order.
func (g *Graph) mapRange(sequences []*fasta.Sequence, low, high int, avoidEqual, avoidSymmetric bool) []overlap.Overlap {
	return parallel.RangeReduce(low, high, 0, func(low, high int) interface{} {
		var acc []overlap.Overlap
		for q := low; q < high; q++ {
			acc = append(acc, g.engine.Map(sequences[q], avoidEqual, avoidSymmetric)...)
		}
		return acc
	}, func(x, y interface{}) interface{} {
		return append(x.([]overlap.Overlap), y.([]overlap.Overlap)...)
	}).([]overlap.Overlap)
}

// medianOfMedians returns the median of the member piles' medians.
func (g *Graph) medianOfMedians(component []uint32) uint32 {
	medians := make([]float64, 0, len(component))
	for _, id := range component {
		medians = append(medians, float64(g.piles[id].Median()))
	}
	sort.Float64s(medians)
	return uint32(stat.Quantile(0.5, stat.Empirical, medians, nil))
}

// overlapComponents groups reads connected by dovetail overlaps into
// components, skipping invalid piles.
func (g *Graph) overlapComponents(overlaps [][]overlap.Overlap) [][]uint32 {
	set := newDisjointSet(len(g.piles))
	for _, list := range overlaps {
		for _, o := range list {
			if pile.Type(g.piles, o) > overlap.KindRhsContained {
				set.joinNodes(int(o.LhsID), int(o.RhsID))
			}
		}
	}
	return set.cluster(func(i int) bool { return !g.piles[i].Invalid() })
}

// Construct runs the overlap phases of the assembly: build piles from
// all-vs-all overlaps, trim reads and resolve contained and chimeric
// ones (stage -5), then re-map for repeat annotation and build the
// string graph from the surviving dovetail overlaps (stage -4). Each
// stage ends with a checkpoint; stages already completed by a resumed
// archive are skipped.
func (g *Graph) Construct(sequences []*fasta.Sequence) {
	if len(sequences) == 0 || g.stage > -4 {
		return
	}

	overlaps := make([][]overlap.Overlap, len(sequences))

	if g.stage == -5 { // make sure the archive is writable before the heavy lifting
		g.Store()
	}

	if g.stage == -5 { // find overlaps and create piles
		for _, seq := range sequences {
			g.piles = append(g.piles, pile.New(seq.ID, uint32(len(seq.Data))))
		}

		var batchBytes uint64
		for i, j := 0, 0; i < len(sequences); i++ {
			batchBytes += uint64(len(sequences[i].Data))
			if i != len(sequences)-1 && batchBytes < seqsBatchLim {
				continue
			}
			batchBytes = 0

			g.engine.Minimize(sequences[j : i+1])
			g.engine.Filter(minimizer.DiscardFreqHard)
			log.Println("minimized sequences", j, "-", i+1, "/", len(sequences))

			numOverlaps := make([]int, len(overlaps))
			for k := range overlaps {
				numOverlaps[k] = len(overlaps[k])
			}

			var queryBytes uint64
			for k, l := 0, 0; k < i+1; k++ {
				queryBytes += uint64(len(sequences[k].Data))
				if k != i && queryBytes < ovlpBatchLim {
					continue
				}
				queryBytes = 0

				for _, o := range g.mapRange(sequences, l, k+1, true, true) {
					overlaps[o.LhsID] = append(overlaps[o.LhsID], o)
					overlaps[o.RhsID] = append(overlaps[o.RhsID], overlap.Reverse(o))
				}
				l = k + 1

				parallel.Range(0, len(g.piles), 0, func(low, high int) {
					for p := low; p < high; p++ {
						if len(overlaps[p]) == numOverlaps[p] {
							continue
						}
						g.piles[p].AddLayers(overlaps[p][numOverlaps[p]:])
						if len(overlaps[p]) > maxPileLayers {
							sort.SliceStable(overlaps[p], func(x, y int) bool {
								return overlap.Length(overlaps[p][x]) > overlap.Length(overlaps[p][y])
							})
							overlaps[p] = overlaps[p][:maxPileLayers]
						}
						numOverlaps[p] = len(overlaps[p])
					}
				})
			}

			log.Println("mapped sequences", j, "-", i+1, "/", len(sequences))
			j = i + 1
		}
	}

	if g.stage == -5 { // trim and annotate piles
		parallel.Range(0, len(g.piles), 0, func(low, high int) {
			for p := low; p < high; p++ {
				g.piles[p].FindValidRegion(4)
				if g.piles[p].Invalid() {
					overlaps[p] = nil
				} else {
					g.piles[p].FindMedian()
					g.piles[p].FindChimericRegions()
				}
			}
		})
		log.Println("annotated piles")
	}

	if g.stage == -5 { // resolve contained reads
		for i := range overlaps {
			k := 0
			for j := range overlaps[i] {
				if !pile.Update(g.piles, &overlaps[i][j]) {
					continue
				}
				switch pile.Type(g.piles, overlaps[i][j]) {
				case overlap.KindLhsContained:
					if !g.piles[overlaps[i][j].RhsID].MaybeChimeric() {
						g.piles[i].SetContained()
						continue
					}
				case overlap.KindRhsContained:
					if !g.piles[i].MaybeChimeric() {
						g.piles[overlaps[i][j].RhsID].SetContained()
						continue
					}
				}
				overlaps[i][k] = overlaps[i][j]
				k++
			}
			overlaps[i] = overlaps[i][:k]
		}
		for i := range g.piles {
			if g.piles[i].Contained() {
				g.piles[i].SetInvalid()
				overlaps[i] = nil
			}
		}
		log.Println("removed contained sequences")
	}

	if g.stage == -5 { // resolve chimeric sequences
		for {
			for _, component := range g.overlapComponents(overlaps) {
				median := g.medianOfMedians(component)
				members := component
				parallel.Range(0, len(members), 0, func(low, high int) {
					for m := low; m < high; m++ {
						p := members[m]
						g.piles[p].ClearChimericRegions(median)
						if g.piles[p].Invalid() {
							overlaps[p] = nil
						}
					}
				})
			}

			changed := false
			for i := range overlaps {
				k := 0
				for j := range overlaps[i] {
					if pile.Update(g.piles, &overlaps[i][j]) {
						overlaps[i][k] = overlaps[i][j]
						k++
					} else {
						changed = true
					}
				}
				overlaps[i] = overlaps[i][:k]
			}
			if !changed {
				break
			}
		}
		for i := range overlaps {
			for _, o := range overlaps[i] {
				switch pile.Type(g.piles, o) {
				case overlap.KindLhsContained:
					g.piles[o.LhsID].SetContained()
					g.piles[o.LhsID].SetInvalid()
				case overlap.KindRhsContained:
					g.piles[o.RhsID].SetContained()
					g.piles[o.RhsID].SetInvalid()
				}
			}
			overlaps[i] = nil
		}
		log.Println("removed chimeric sequences")
	}

	if g.stage == -5 { // checkpoint
		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}

	var finalOverlaps []overlap.Overlap

	if g.stage == -4 { // clear piles for the sensitive mapping pass
		parallel.Range(0, len(g.piles), 0, func(low, high int) {
			for p := low; p < high; p++ {
				if !g.piles[p].Invalid() {
					g.piles[p].ClearValidRegion()
				}
			}
		})
	}

	if g.stage == -4 { // re-map for repetitive coverage and final overlaps
		ordered := append([]*fasta.Sequence(nil), sequences...)
		sort.SliceStable(ordered, func(x, y int) bool {
			xInvalid := g.piles[ordered[x].ID].Invalid()
			yInvalid := g.piles[ordered[y].ID].Invalid()
			if xInvalid != yInvalid {
				return !xInvalid
			}
			return ordered[x].ID < ordered[y].ID
		})
		numValid := len(ordered)
		for i, seq := range ordered {
			if g.piles[seq.ID].Invalid() {
				numValid = i
				break
			}
		}

		// map invalid reads onto valid ones to pick up repeat coverage
		pending := make([][]overlap.Overlap, len(g.piles))
		var batchBytes uint64
		for i, j := 0, 0; i < numValid; i++ {
			batchBytes += uint64(len(ordered[i].Data))
			if i != numValid-1 && batchBytes < seqsBatchLim {
				continue
			}
			batchBytes = 0

			g.engine.Minimize(ordered[j : i+1])
			g.engine.Filter(minimizer.DiscardFreqSoft)
			log.Println("minimized valid sequences", j, "-", i+1, "/", numValid)

			var queryBytes uint64
			for k, l := numValid, numValid; k < len(ordered); k++ {
				queryBytes += uint64(len(ordered[k].Data))
				if k != len(ordered)-1 && queryBytes < ovlpBatchLim {
					continue
				}
				queryBytes = 0

				for _, o := range g.mapRange(ordered, l, k+1, true, false) {
					pending[o.RhsID] = append(pending[o.RhsID], o)
				}
				l = k + 1

				targets := ordered[j : i+1]
				parallel.Range(0, len(targets), 0, func(low, high int) {
					for t := low; t < high; t++ {
						p := targets[t].ID
						if len(pending[p]) == 0 {
							continue
						}
						g.piles[p].AddLayers(pending[p])
						pending[p] = nil
					}
				})
			}

			log.Println("mapped invalid sequences against", j, "-", i+1)
			j = i + 1
		}

		// map valid reads against each other for the final overlap set
		batchBytes = 0
		for i, j := 0, 0; i < numValid; i++ {
			batchBytes += uint64(len(ordered[i].Data))
			if i != numValid-1 && batchBytes < ovlpBatchLim {
				continue
			}
			batchBytes = 0

			g.engine.Minimize(ordered[j : i+1])
			g.engine.Filter(minimizer.DiscardFreqHard)
			log.Println("minimized valid sequences", j, "-", i+1, "/", numValid)

			for _, o := range g.mapRange(ordered, 0, i+1, true, true) {
				if !pile.Update(g.piles, &o) {
					continue
				}
				switch pile.Type(g.piles, o) {
				case overlap.KindInternal:
				case overlap.KindLhsContained:
					g.piles[o.LhsID].SetContained()
				case overlap.KindRhsContained:
					g.piles[o.RhsID].SetContained()
				default:
					if n := len(finalOverlaps); n > 0 &&
						finalOverlaps[n-1].LhsID == o.LhsID &&
						finalOverlaps[n-1].RhsID == o.RhsID {
						if overlap.Length(finalOverlaps[n-1]) < overlap.Length(o) {
							finalOverlaps[n-1] = o
						}
					} else {
						finalOverlaps = append(finalOverlaps, o)
					}
				}
			}

			log.Println("mapped valid sequences", j, "-", i+1, "/", numValid)
			j = i + 1
		}

		for i := range g.piles {
			if g.piles[i].Contained() {
				g.piles[i].SetInvalid()
			}
		}
		parallel.Range(0, len(g.piles), 0, func(low, high int) {
			for p := low; p < high; p++ {
				if g.piles[p].Invalid() {
					continue
				}
				g.piles[p].ClearInvalidRegion()
				g.piles[p].FindMedian()
			}
		})

		k := 0
		for i := range finalOverlaps {
			if pile.Update(g.piles, &finalOverlaps[i]) {
				finalOverlaps[k] = finalOverlaps[i]
				k++
			}
		}
		finalOverlaps = finalOverlaps[:k]
		log.Println("updated", len(finalOverlaps), "overlaps")
	}

	if g.stage == -4 { // resolve repeat induced overlaps
		for {
			components := g.overlapComponents([][]overlap.Overlap{finalOverlaps})
			for _, component := range components {
				median := g.medianOfMedians(component)
				members := component
				parallel.Range(0, len(members), 0, func(low, high int) {
					for m := low; m < high; m++ {
						g.piles[members[m]].FindRepetitiveRegions(median)
					}
				})
			}

			for _, o := range finalOverlaps {
				g.piles[o.LhsID].UpdateRepetitiveRegions(o)
				g.piles[o.RhsID].UpdateRepetitiveRegions(o)
			}

			changed := false
			k := 0
			for _, o := range finalOverlaps {
				if g.piles[o.LhsID].CheckRepetitiveRegions(o) ||
					g.piles[o.RhsID].CheckRepetitiveRegions(o) {
					changed = true
				} else {
					finalOverlaps[k] = o
					k++
				}
			}
			finalOverlaps = finalOverlaps[:k]

			if !changed {
				break
			}
			for _, component := range components {
				for _, p := range component {
					g.piles[p].ClearRepetitiveRegions()
				}
			}
		}
		log.Println("removed false overlaps,", len(finalOverlaps), "remain")
	}

	if g.stage == -4 { // store valid regions for a potential second run
		g.storeValidRegions(sequences)
	}

	if g.stage == -4 { // construct the assembly graph
		sequenceToNode := make([]*Node, len(g.piles))
		for _, p := range g.piles {
			if p.Invalid() {
				continue
			}
			seq := sequences[p.ID()]
			sequenceToNode[p.ID()] = g.addNodePair(&fasta.Sequence{
				Name: seq.Name,
				Data: seq.Data[p.Begin():p.End()],
			})
		}
		log.Println("stored", len(g.nodes), "nodes")

		for i := range finalOverlaps {
			o := &finalOverlaps[i]
			if !pile.Finalize(g.piles, o) {
				continue
			}

			tail := sequenceToNode[o.LhsID]
			head := sequenceToNode[o.RhsID]
			if !o.Strand {
				head = head.Pair
			}

			length := o.LhsBegin - o.RhsBegin
			lengthPair := (g.piles[o.RhsID].Length() - o.RhsEnd) -
				(g.piles[o.LhsID].Length() - o.LhsEnd)
			if o.Score == overlap.KindRhsToLhs {
				tail, head = head, tail
				length = -length
				lengthPair = -lengthPair
			}

			g.addEdgePair(tail, head, length, lengthPair)
		}
		log.Println("stored", len(g.edges), "edges")
	}

	if g.stage == -4 { // checkpoint
		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}
}

// storeValidRegions saves all sufficiently long valid read regions as
// filler sequences for a second assembly run.
func (g *Graph) storeValidRegions(sequences []*fasta.Sequence) {
	var fillers []*fasta.Sequence
	for _, p := range g.piles {
		if p.Length() < pile.MinSequenceLen {
			continue
		}
		seq := sequences[p.ID()]
		fillers = append(fillers, &fasta.Sequence{
			Name: "nc" + formatUint(p.ID()),
			Data: seq.Data[p.Begin():p.End()],
		})
	}
	fasta.ToFastaFile(FillerSeqsPath, fillers)
	log.Println("saved", len(fillers), "sequence regions")
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
