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

package cmd

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/exascience/elasm/fasta"
	"github.com/exascience/elasm/graph"
	"github.com/exascience/elasm/polish"
)

// AssembleHelp is the help string for the assemble command.
const AssembleHelp = "elasm assemble <sequences.fasta|fastq[.gz]>\n" +
	"[--weaken]\n" +
	"[--polishing-rounds nr]\n" +
	"[-m match-score]\n" +
	"[-n mismatch-score]\n" +
	"[-g gap-penalty]\n" +
	"[--graphical-fragment-assembly file]\n" +
	"[--graph-csv file]\n" +
	"[--second-run]\n" +
	"[--resume]\n" +
	"[--threads nr]\n"

// Assemble implements the elasm assemble command: it drives the
// overlap, layout, and consensus phases over the input reads and
// prints the resulting unitigs to standard output as FASTA records.
func Assemble() error {
	var (
		weaken           bool
		polishingRounds  int
		match, mismatch  int
		gap              int
		gfaPath, csvPath string
		secondRun        bool
		resume           bool
		nrOfThreads      int
	)

	flags := flag.NewFlagSet("assemble", flag.ContinueOnError)
	flags.BoolVar(&weaken, "weaken", false, "use larger minimizers when assembling highly accurate sequences")
	flags.IntVar(&polishingRounds, "polishing-rounds", 2, "number of polishing rounds")
	flags.IntVar(&match, "m", 3, "score for matching bases")
	flags.IntVar(&mismatch, "n", -5, "score for mismatching bases")
	flags.IntVar(&gap, "g", -4, "gap penalty (must be negative)")
	flags.StringVar(&gfaPath, "graphical-fragment-assembly", "", "print the assembly graph in GFA format")
	flags.StringVar(&csvPath, "graph-csv", "", "print the assembly graph in CSV format")
	flags.BoolVar(&secondRun, "second-run", false, "reuse non-chimeric regions in combination with unitigs")
	flags.BoolVar(&resume, "resume", false, "resume a previous run from the last checkpoint")
	flags.IntVar(&nrOfThreads, "threads", 1, "number of worker threads")

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, AssembleHelp)
		os.Exit(1)
	}
	sequencesPath := getFilename(os.Args[2], AssembleHelp)
	parseFlags(*flags, 3, AssembleHelp)

	sanityChecksFailed := false
	if !checkExist("", sequencesPath) {
		sanityChecksFailed = true
	}
	if gfaPath != "" && !checkCreate("--graphical-fragment-assembly", gfaPath) {
		sanityChecksFailed = true
	}
	if csvPath != "" && !checkCreate("--graph-csv", csvPath) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 1 {
		log.Println("Error: Invalid number of threads: ", nrOfThreads)
		sanityChecksFailed = true
	}
	if gap >= 0 {
		log.Println("Error: Gap penalty must be negative: ", gap)
		sanityChecksFailed = true
	}
	if sanityChecksFailed {
		return errors.New("cannot execute assemble command due to invalid parameters")
	}

	runtime.GOMAXPROCS(nrOfThreads)

	g := graph.New(weaken)
	if resume {
		if err := g.Load(); err != nil {
			log.Println("Cannot load the previous run, starting from scratch:", err)
			g.Clear()
		} else {
			log.Println("Resuming previous run from stage", g.Stage())
		}
	}
	if secondRun && g.Stage() < -3 {
		// the filler set is rewritten during construction; a resumed
		// run past that stage must keep the stored one
		if file, err := os.Create(graph.FillerSeqsPath); err == nil {
			_ = file.Close()
		}
	}

	var sequences []*fasta.Sequence
	if g.Stage() < -3 || int32(polishingRounds) > maxInt32(0, g.Stage()) {
		var err error
		sequences, err = fasta.LoadSequences(sequencesPath)
		if err != nil {
			return err
		}
		log.Println("Loaded", len(sequences), "sequences.")
	}

	g.Construct(sequences)
	g.Assemble()
	g.Polish(sequences, polish.New(match, mismatch, gap), int32(polishingRounds))

	if secondRun {
		unitigs := g.GetUnitigs(polishingRounds > 0)
		fillers, err := fasta.LoadSequences(graph.FillerSeqsPath)
		if err != nil {
			return err
		}
		g.Clear()
		expected := g.GreedyConstruct(unitigs, fillers)
		g.GreedyAssemble(expected)

		g.PrintGFA(gfaPath)
		g.PrintCSV(csvPath)
		fasta.WriteFasta(os.Stdout, g.GetUnitigs(false))
	} else {
		g.PrintGFA(gfaPath)
		g.PrintCSV(csvPath)
		fasta.WriteFasta(os.Stdout, g.GetUnitigs(polishingRounds > 0))
	}

	logPeakMemory()
	return nil
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
