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

// Package fasta implements the sequence records the assembler operates
// on, and reading/writing them in FASTA/FASTQ format, optionally
// gzip-compressed.
package fasta

// A Sequence is a single read or contig. IDs are dense and index
// parallel data structures such as coverage piles; NormalizeIDs
// restores density after filtering or merging.
type Sequence struct {
	ID      uint32
	Name    string
	Data    string
	Quality string
}

var complementTable = [256]byte{
	'A': 'T', 'a': 't',
	'C': 'G', 'c': 'g',
	'G': 'C', 'g': 'c',
	'T': 'A', 't': 'a',
	'N': 'N', 'n': 'n',
}

// Complement returns the Watson-Crick complement of a base.
// Ambiguous bases map to N.
func Complement(base byte) byte {
	if c := complementTable[base]; c != 0 {
		return c
	}
	return 'N'
}

// ReverseComplement replaces the sequence contents with its reverse
// complement. The quality string, if any, is reversed alongside.
func (seq *Sequence) ReverseComplement() {
	data := []byte(seq.Data)
	for i, j := 0, len(data)-1; i <= j; i, j = i+1, j-1 {
		data[i], data[j] = Complement(data[j]), Complement(data[i])
	}
	seq.Data = string(data)
	if seq.Quality != "" {
		quality := []byte(seq.Quality)
		for i, j := 0, len(quality)-1; i < j; i, j = i+1, j-1 {
			quality[i], quality[j] = quality[j], quality[i]
		}
		seq.Quality = string(quality)
	}
}

// ReverseComplement returns the reverse complement of a plain base
// string.
func ReverseComplement(data string) string {
	seq := Sequence{Data: data}
	seq.ReverseComplement()
	return seq.Data
}

// NormalizeIDs renumbers the sequences so that IDs again form the
// dense range [0, len(sequences)).
func NormalizeIDs(sequences []*Sequence) []*Sequence {
	for i, seq := range sequences {
		seq.ID = uint32(i)
	}
	return sequences
}

// MergeSequences appends the contents of both slices into a fresh
// slice, leaving IDs untouched.
func MergeSequences(a, b []*Sequence) []*Sequence {
	dst := make([]*Sequence, 0, len(a)+len(b))
	dst = append(dst, a...)
	return append(dst, b...)
}
