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
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestReverseComplement(t *testing.T) {
	seq := &Sequence{Data: "ACGTN", Quality: "!!#$%"}
	seq.ReverseComplement()
	if seq.Data != "NACGT" {
		t.Errorf("reverse complement produced %v", seq.Data)
	}
	if seq.Quality != "%$#!!" {
		t.Errorf("reverse complement quality produced %v", seq.Quality)
	}
	seq.ReverseComplement()
	if seq.Data != "ACGTN" || seq.Quality != "!!#$%" {
		t.Error("double reverse complement is not the identity")
	}
	if ReverseComplement(ReverseComplement("GATTACA")) != "GATTACA" {
		t.Error("double ReverseComplement is not the identity")
	}
}

func writeTempFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, contents, 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSequencesFasta(t *testing.T) {
	path := writeTempFile(t, "reads.fa", []byte(">read1 extra comment\nACGT\nACGT\n>read2\nggta\n"))
	sequences, err := LoadSequences(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sequences) != 2 {
		t.Fatalf("loaded %v sequences", len(sequences))
	}
	if sequences[0].Name != "read1" || sequences[0].Data != "ACGTACGT" {
		t.Errorf("unexpected first record %v %v", sequences[0].Name, sequences[0].Data)
	}
	if sequences[1].ID != 1 || sequences[1].Data != "GGTA" {
		t.Errorf("unexpected second record %v %v", sequences[1].ID, sequences[1].Data)
	}
}

func TestLoadSequencesFastqGz(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("@read1\nACGTA\n+\n!!!!!\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	path := writeTempFile(t, "reads.fq.gz", buf.Bytes())
	sequences, err := LoadSequences(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sequences) != 1 || sequences[0].Data != "ACGTA" || sequences[0].Quality != "!!!!!" {
		t.Errorf("unexpected record set %v", sequences)
	}
}

func TestLoadSequencesErrors(t *testing.T) {
	if _, err := LoadSequences("reads.bam"); err == nil {
		t.Error("unsupported extension not reported")
	}
	path := writeTempFile(t, "empty.fa", nil)
	if _, err := LoadSequences(path); err == nil {
		t.Error("empty input not reported")
	}
}

func TestFastaRoundTrip(t *testing.T) {
	sequences := []*Sequence{
		{ID: 0, Name: "a", Data: "ACGT"},
		{ID: 1, Name: "b", Data: "GGCC"},
	}
	path := filepath.Join(t.TempDir(), "out.fasta")
	ToFastaFile(path, sequences)
	loaded, err := LoadSequences(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 || loaded[0].Data != "ACGT" || loaded[1].Name != "b" {
		t.Errorf("round trip produced %v", loaded)
	}
	_ = os.Remove(path)
}
