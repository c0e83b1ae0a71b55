// Package mrtlpm holds the small set of types and sentinel errors shared
// across the MRT decoder and LPM table packages, so that callers can
// distinguish fatal framing errors from the lenient, per-record failures the
// decoder tolerates.
package mrtlpm

import "errors"

// Sentinel errors. File-not-found and I/O failures are left to the standard
// library (os.PathError, io errors) and wrapped by callers with
// github.com/pkg/errors where context is useful. Records with a recognized
// type but no decoder are not errors at all; the decoder reports them as a
// distinct record kind.
var (
	// ErrInvalidMRTFile means the first record's type was not in the set of
	// recognized MRT types. Fatal: no partial table is produced.
	ErrInvalidMRTFile = errors.New("mrtlpm: first record type is not a known MRT type")

	// ErrBadFrame means a record's declared length ran past the end of the
	// stream. Fatal: the framer terminates the iterator.
	ErrBadFrame = errors.New("mrtlpm: truncated record payload")

	// ErrMalformedPeerEntry means a PEER_INDEX_TABLE peer entry's type byte
	// or declared lengths don't fit the remaining buffer.
	ErrMalformedPeerEntry = errors.New("mrtlpm: malformed peer index entry")

	// ErrMalformedRibEntry means a RIB_IPV4_UNICAST entry's declared lengths
	// don't fit the remaining buffer.
	ErrMalformedRibEntry = errors.New("mrtlpm: malformed rib entry")

	// ErrPeerIndexMissing means a RIB entry referenced the session's peer
	// index table before one was ever decoded.
	ErrPeerIndexMissing = errors.New("mrtlpm: rib entry seen before any peer index table")

	// ErrBadPrefix means a prefix length argument to the LPM table exceeded
	// 32 bits.
	ErrBadPrefix = errors.New("mrtlpm: prefix length exceeds 32")
)
