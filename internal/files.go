package internal

import (
	"io"
	"log"
	"os"
)

// FileOpen is os.Open with panics in place of errors
func FileOpen(name string) *os.File {
	file, err := os.Open(name)
	if err != nil {
		log.Panic(err)
	}
	return file
}

// FileCreate is os.Create with panics in place of errors
func FileCreate(name string) *os.File {
	file, err := os.Create(name)
	if err != nil {
		log.Panic(err)
	}
	return file
}

// Close is an io.Closer.Close with panics in place of errors
func Close(file io.Closer) {
	if err := file.Close(); err != nil {
		log.Panic(err)
	}
}

// WriteString is an io.StringWriter.WriteString with panics in place of errors
func WriteString(w io.StringWriter, s string) int {
	n, err := w.WriteString(s)
	if err != nil {
		log.Panic(err)
	}
	return n
}
