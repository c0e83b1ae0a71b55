package mrtio

import (
	"os"
	"testing"
)

func TestFlatRecordFileOpenClose(t *testing.T) {
	f := NewFlatRecordFile(os.DevNull)
	if _, err := f.Write(nil); err != errNotOpen {
		t.Errorf("write on an unopened file should fail with errNotOpen, got %v", err)
	}
	if err := f.Close(); err == nil {
		t.Errorf("close on an unopened file should fail")
	}
	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestFlatRecordFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/records.bin"

	records := [][]byte{
		[]byte("first record"),
		[]byte("second, a bit longer than the first"),
		[]byte(""),
		[]byte("last"),
	}

	w := NewFlatRecordFile(path)
	if err := w.Open(); err != nil {
		t.Fatalf("Open (write): %v", err)
	}
	for _, r := range records {
		if _, err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close (write): %v", err)
	}

	r := NewFlatRecordFile(path)
	if err := r.Open(); err != nil {
		t.Fatalf("Open (read): %v", err)
	}
	defer r.Close()

	var got [][]byte
	for r.Scanner.Scan() {
		tok := append([]byte(nil), r.Scanner.Bytes()...)
		got = append(got, tok)
	}
	if err := r.Scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if string(got[i]) != string(records[i]) {
			t.Errorf("record %d = %q, want %q", i, got[i], records[i])
		}
	}
}
