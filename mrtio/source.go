// Package mrtio opens the byte source an MRT decoder consumes: a plain
// file, or one transparently wrapped in gzip or bzip2, detected by filename
// suffix. It also provides a length-prefixed flat record store for keeping
// selected raw records around between runs.
package mrtio

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Source is a closable byte stream ready for framing.
type Source struct {
	io.Reader
	closer io.Closer
}

// Close releases the underlying file handle (and, transitively, any
// decompressor wrapping it).
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open opens fname and wraps it in a gzip or bzip2 reader per its suffix
// (case-insensitive ".gz"/".bz2"), or returns it unwrapped otherwise. The
// caller must Close the returned Source.
func Open(fname string) (*Source, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	switch strings.ToLower(filepath.Ext(fname)) {
	case ".bz2":
		return &Source{Reader: bzip2.NewReader(fp), closer: fp}, nil
	case ".gz":
		gz, err := gzip.NewReader(fp)
		if err != nil {
			fp.Close()
			return nil, errors.Wrap(err, "gzip")
		}
		return &Source{Reader: gz, closer: multiCloser{gz, fp}}, nil
	default:
		return &Source{Reader: fp, closer: fp}, nil
	}
}

// multiCloser closes each closer in order, returning the first error.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// bufferedReader wraps a Source in a bufio.Reader sized for the large
// tokens (gigabyte-scale RIB dumps can have multi-megabyte records) the MRT
// framer reads via io.ReadFull rather than bufio.Scanner's fixed buffer.
func bufferedReader(s *Source) *bufio.Reader {
	return bufio.NewReaderSize(s, 1<<20)
}

// NewReader returns a buffered io.Reader over fname, detecting compression
// by suffix. The returned close func must be called when done.
func NewReader(fname string) (io.Reader, func() error, error) {
	src, err := Open(fname)
	if err != nil {
		return nil, nil, err
	}
	return bufferedReader(src), src.Close, nil
}
