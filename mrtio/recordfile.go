package mrtio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var (
	errNotOpen = errors.New("underlying file pointer is nil")
	errOpen    = errors.New("underlying file pointer already open")
	errBufSize = errors.New("buffer sizes can't be negative")
)

// FlatRecordFile is a length-prefixed binary record store: every record is
// preceded by a 32-bit big-endian length, followed by that many bytes. It
// is used to capture a decoded-and-reselected set of raw MRT records (for
// example, the output of a filtered pass over a dump) for later replay
// without re-parsing the original file. Safe for one writer concurrent
// with multiple readers.
type FlatRecordFile struct {
	fname   string
	fp      *os.File
	writer  *bufio.Writer
	reader  *bufio.Reader
	Scanner *bufio.Scanner
	sz      int64
	mux     *sync.RWMutex
	wpend   bool
}

// NewFlatRecordFile returns an unopened FlatRecordFile at fname.
func NewFlatRecordFile(fname string) *FlatRecordFile {
	return &FlatRecordFile{
		fname: fname,
		mux:   &sync.RWMutex{},
	}
}

// Fname returns the path this record file was constructed with.
func (p *FlatRecordFile) Fname() string {
	return p.fname
}

// Open opens (creating if needed) the underlying file with default buffer
// sizes.
func (p *FlatRecordFile) Open() error {
	return p.OpenWithBufferSizes(0, 0)
}

// OpenWithBufferSizes is Open with explicit reader/writer buffer sizes,
// useful when individual records exceed the default 64k scanner buffer.
func (p *FlatRecordFile) OpenWithBufferSizes(readerSize, writerSize int) error {
	if p.fp != nil {
		return errOpen
	}
	if readerSize < 0 || writerSize < 0 {
		return errBufSize
	}
	fp, err := os.OpenFile(p.fname, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0660)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	p.fp = fp

	if writerSize == 0 {
		p.writer = bufio.NewWriter(p.fp)
	} else {
		p.writer = bufio.NewWriterSize(p.fp, writerSize)
	}
	if readerSize == 0 {
		p.reader = bufio.NewReader(p)
	} else {
		p.reader = bufio.NewReaderSize(p, readerSize)
	}
	p.Scanner = bufio.NewScanner(p.reader)
	p.Scanner.Split(splitRecord)
	if readerSize > bufio.MaxScanTokenSize {
		p.Scanner.Buffer(make([]byte, 0, 4096), readerSize)
	}
	return nil
}

// Write appends one length-prefixed record. It implements io.Writer but
// routes through the buffered writer underneath.
func (p *FlatRecordFile) Write(b []byte) (int, error) {
	if p.fp == nil {
		return 0, errNotOpen
	}
	p.mux.Lock()
	defer p.mux.Unlock()

	if err := binary.Write(p.writer, binary.BigEndian, uint32(len(b))); err != nil {
		return 0, err
	}
	n, err := p.writer.Write(b)
	p.wpend = true
	if err != nil {
		return 0, err
	}
	p.sz += int64(n)
	return n, nil
}

// Read implements io.Reader against the underlying file, flushing any
// pending writes first.
func (p *FlatRecordFile) Read(b []byte) (int, error) {
	if p.fp == nil {
		return 0, errNotOpen
	}
	p.mux.Lock()
	if p.wpend {
		p.Flush()
	}
	p.mux.Unlock()
	p.mux.RLock()
	defer p.mux.RUnlock()
	return p.fp.Read(b)
}

// Flush flushes any buffered writes to the underlying file.
func (p *FlatRecordFile) Flush() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Flush(); err != nil {
		return err
	}
	p.wpend = false
	return nil
}

// Close flushes and closes the underlying file.
func (p *FlatRecordFile) Close() error {
	p.Flush()
	if p.fp == nil {
		return errNotOpen
	}
	return p.fp.Close()
}

// splitRecord is a bufio.SplitFunc reading the 4-byte big-endian length
// prefix and advancing past the record it announces.
func splitRecord(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) < 4 {
		return 0, nil, nil
	}
	var recLen uint32
	if err := binary.Read(bytes.NewReader(data[:4]), binary.BigEndian, &recLen); err != nil {
		return 0, nil, err
	}
	total := 4 + int(recLen)
	if len(data) < total {
		return 0, nil, nil
	}
	return total, data[4:total], nil
}
