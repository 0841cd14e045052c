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
	"strings"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/internal"
)

// A Polisher computes consensus sequences for unitigs from the
// original read set. A polished result carries an appended
// " XC:f:<fraction>" name tag with the fraction of covered bases;
// unitigs returned without the tag are treated as untouched.
type Polisher interface {
	Polish(unitigs, reads []*fasta.Sequence) []*fasta.Sequence
}

// polishedFraction extracts the XC tag value, or 0 when the polisher
// left the unitig untouched.
func polishedFraction(name string) float64 {
	i := strings.LastIndex(name, " XC:f:")
	if i < 0 {
		return 0
	}
	return internal.ParseFloat(name[i+len(" XC:f:"):], 64)
}

// unitigNodeID recovers the node id from a Utg/Ctg name.
func unitigNodeID(name string) uint32 {
	digits := name[3:]
	if i := strings.IndexByte(digits, ' '); i >= 0 {
		digits = digits[:i]
	}
	return uint32(internal.ParseUint(digits, 10, 32))
}

// Polish runs the consensus engine over the unitigs for the requested
// number of rounds, feeding each round's output into the next.
// Polished data is written back into the graph nodes and mirrored to
// their reverse-complement partners, with a checkpoint per round.
func (g *Graph) Polish(reads []*fasta.Sequence, polisher Polisher, numRounds int32) {
	if len(reads) == 0 || numRounds == 0 || polisher == nil {
		return
	}

	unitigs := g.GetUnitigs(false)
	if len(unitigs) == 0 {
		return
	}

	for g.stage < numRounds {
		unitigs = polisher.Polish(unitigs, reads)

		for _, unitig := range unitigs {
			if polishedFraction(unitig.Name) <= 0 {
				continue
			}
			node := g.nodes[unitigNodeID(unitig.Name)]
			node.IsPolished = true
			node.Data = unitig.Data
			node.Pair.Data = fasta.ReverseComplement(unitig.Data)
		}

		g.stage++
		g.Store()
		log.Println("reached checkpoint", g.stage)
	}
}
