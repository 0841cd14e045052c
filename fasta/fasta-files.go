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

package fasta

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/exascience/elasm/internal"
)

type inputFormat int

const (
	formatUnknown inputFormat = iota
	formatFasta
	formatFastq
)

func formatForPath(path string) (format inputFormat, compressed bool) {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, ".gz") {
		compressed = true
		name = strings.TrimSuffix(name, ".gz")
	}
	switch {
	case strings.HasSuffix(name, ".fasta"), strings.HasSuffix(name, ".fa"):
		format = formatFasta
	case strings.HasSuffix(name, ".fastq"), strings.HasSuffix(name, ".fq"):
		format = formatFastq
	}
	return format, compressed
}

const gzipMagic = "\x1f\x8b"

// LoadSequences reads all records from a FASTA/FASTQ file, assigning
// dense IDs in input order. The format is inferred from the filename
// extension; .gz files are decompressed on the fly. An unrecognized
// extension or an empty record set is reported as an error; malformed
// records panic like all other internal failures.
func LoadSequences(path string) ([]*Sequence, error) {
	format, compressed := formatForPath(path)
	if format == formatUnknown {
		return nil, fmt.Errorf("file %v has an unsupported format extension "+
			"(valid extensions: .fasta, .fasta.gz, .fa, .fa.gz, .fastq, .fastq.gz, .fq, .fq.gz)", path)
	}

	file := internal.FileOpen(path)
	defer internal.Close(file)

	var reader io.Reader = file
	if compressed {
		buf := bufio.NewReader(file)
		if magic, err := buf.Peek(2); err != nil || string(magic) != gzipMagic {
			return nil, fmt.Errorf("file %v has a .gz extension but no gzip header", path)
		}
		gz, err := gzip.NewReader(buf)
		if err != nil {
			log.Panic(err)
		}
		defer internal.Close(gz)
		reader = gz
	}

	var sequences []*Sequence
	if format == formatFasta {
		sequences = parseFasta(reader, path)
	} else {
		sequences = parseFastq(reader, path)
	}
	if len(sequences) == 0 {
		return nil, fmt.Errorf("file %v contains no sequences", path)
	}
	return sequences, nil
}

func newScanner(reader io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<26)
	return scanner
}

func nameFromHeader(line string) string {
	name := strings.TrimSpace(line[1:])
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	return name
}

func parseFasta(reader io.Reader, path string) (sequences []*Sequence) {
	scanner := newScanner(reader)
	var name string
	var data strings.Builder
	flush := func() {
		if name == "" {
			return
		}
		if data.Len() == 0 {
			log.Panicf("badly formatted fasta file %v - record %v has no bases", path, name)
		}
		sequences = append(sequences, &Sequence{
			ID:   uint32(len(sequences)),
			Name: name,
			Data: data.String(),
		})
		data.Reset()
	}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line[0] == '>' {
			flush()
			name = nameFromHeader(line)
			if name == "" {
				log.Panicf("badly formatted fasta file %v - empty record name", path)
			}
		} else {
			if name == "" {
				log.Panicf("badly formatted fasta file %v - bases before first header", path)
			}
			data.WriteString(strings.ToUpper(strings.TrimSpace(line)))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}
	flush()
	return sequences
}

func parseFastq(reader io.Reader, path string) (sequences []*Sequence) {
	scanner := newScanner(reader)
	for scanner.Scan() {
		header := scanner.Text()
		if header == "" {
			continue
		}
		if header[0] != '@' {
			log.Panicf("badly formatted fastq file %v - invalid record header %v", path, header)
		}
		name := nameFromHeader(header)
		if !scanner.Scan() {
			log.Panicf("badly formatted fastq file %v - truncated record %v", path, name)
		}
		data := strings.ToUpper(scanner.Text())
		if !scanner.Scan() || len(scanner.Text()) == 0 || scanner.Text()[0] != '+' {
			log.Panicf("badly formatted fastq file %v - missing separator in record %v", path, name)
		}
		if !scanner.Scan() {
			log.Panicf("badly formatted fastq file %v - truncated record %v", path, name)
		}
		quality := scanner.Text()
		if len(quality) != len(data) {
			log.Panicf("badly formatted fastq file %v - quality length mismatch in record %v", path, name)
		}
		sequences = append(sequences, &Sequence{
			ID:      uint32(len(sequences)),
			Name:    name,
			Data:    data,
			Quality: quality,
		})
	}
	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}
	return sequences
}

// WriteFasta writes two-line FASTA records to the given writer.
func WriteFasta(w io.Writer, sequences []*Sequence) {
	buf := bufio.NewWriter(w)
	for _, seq := range sequences {
		internal.WriteString(buf, ">")
		internal.WriteString(buf, seq.Name)
		internal.WriteString(buf, "\n")
		internal.WriteString(buf, seq.Data)
		internal.WriteString(buf, "\n")
	}
	if err := buf.Flush(); err != nil {
		log.Panic(err)
	}
}

// ToFastaFile stores sequences as a two-line FASTA file.
func ToFastaFile(path string, sequences []*Sequence) {
	file := internal.FileCreate(path)
	defer internal.Close(file)
	WriteFasta(file, sequences)
}
