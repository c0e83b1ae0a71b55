// Package mrt frames and dispatches MRT (RFC 6396) records. It reads the
// fixed 12-byte header, extracts the variable-length payload, validates the
// file's first record against the set of known MRT types, and decodes
// TABLE_DUMP_V2 PEER_INDEX_TABLE and RIB_IPV4_UNICAST payloads via the
// sibling rib package. Everything else is surfaced as an unsupported
// record rather than an error.
package mrt

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/bgpview/mrtlpm"
	"github.com/bgpview/mrtlpm/protocol/rib"
	"github.com/pkg/errors"
)

// HeaderLen is the fixed size of an MRT record header in bytes.
const HeaderLen = 12

// MRT type codes this decoder recognizes at the framing level (RFC 6396 §3
// plus the RFC 6396bis table-dump types); only TABLE_DUMP_V2 is actually
// decoded, the rest (TABLE_DUMP included) are framed and reported
// unsupported.
const (
	TypeOSPFv2      = 11
	TypeTableDump   = 12
	TypeTableDumpV2 = 13
	TypeBGP4MP      = 16
	TypeBGP4MPET    = 17
	TypeISIS        = 32
	TypeISISET      = 33
	TypeOSPFv3      = 48
	TypeOSPFv3ET    = 49
)

var knownTypes = map[uint16]bool{
	TypeOSPFv2: true, TypeTableDump: true, TypeTableDumpV2: true,
	TypeBGP4MP: true, TypeBGP4MPET: true, TypeISIS: true, TypeISISET: true,
	TypeOSPFv3: true, TypeOSPFv3ET: true,
}

// Subtypes of TABLE_DUMP_V2 this project cares about.
const (
	SubtypePeerIndexTable = 1
	SubtypeRibIPv4Unicast = 2
	SubtypeRibIPv6Unicast = 4
)

// Header is a decoded 12-byte MRT record header.
type Header struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	Length    uint32
}

// Record is one framed MRT record: its header and raw, still-undecoded
// payload.
type Record struct {
	Header  Header
	Payload []byte
}

// RecordKind classifies a decoded record for a Reader's caller.
type RecordKind int

const (
	// KindPeerIndexTable is a decoded PEER_INDEX_TABLE payload.
	KindPeerIndexTable RecordKind = iota
	// KindRibIPv4Unicast is a decoded RIB_IPV4_UNICAST payload.
	KindRibIPv4Unicast
	// KindUnsupported is a recognized-but-undecoded record (RIB_IPV6_UNICAST,
	// TABLE_DUMP v1, any other (type, subtype)).
	KindUnsupported
)

// Decoded is one decoded record handed to a Reader's caller. Payload is the
// record's raw bytes as framed, kept so a caller selecting a subset of
// records can re-emit them without re-encoding.
type Decoded struct {
	Kind           RecordKind
	Header         Header
	Payload        []byte
	PeerIndexTable *rib.PeerIndexTable
	RIBIPv4        *rib.RIBIPv4Unicast
}

// Frame reassembles the record's full wire form, header included.
func (d *Decoded) Frame() []byte {
	return append(d.Header.Marshal(), d.Payload...)
}

// Marshal renders the header back to its 12-byte big-endian wire form.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(b[0:4], h.Timestamp)
	binary.BigEndian.PutUint16(b[4:6], h.Type)
	binary.BigEndian.PutUint16(b[6:8], h.Subtype)
	binary.BigEndian.PutUint32(b[8:12], h.Length)
	return b
}

// Reader frames and decodes a stream of MRT records. It holds the
// decoder-scoped peer-index context a RIB_IPV4_UNICAST record's peer
// references are resolved against; the peer table is produced once per file
// and referenced by every RIB record after it.
type Reader struct {
	r         io.Reader
	firstSeen bool
	peerIndex *rib.PeerIndexTable
}

// NewReader returns a Reader framing records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// NewValidatedReader peeks at the first 12 bytes of r and rejects the stream
// with ErrInvalidMRTFile if the first record's type is not a known MRT type,
// without consuming anything: the first Next still returns the first record.
// This peek-and-rewind is the only non-sequential access the reader ever
// performs.
func NewValidatedReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	hdr, err := br.Peek(HeaderLen)
	if err != nil {
		return nil, errors.Wrap(mrtlpm.ErrInvalidMRTFile, "stream shorter than one MRT header")
	}
	if !knownTypes[binary.BigEndian.Uint16(hdr[4:6])] {
		return nil, mrtlpm.ErrInvalidMRTFile
	}
	return &Reader{r: br, firstSeen: true}, nil
}

// PeerIndex returns the most recently decoded PEER_INDEX_TABLE, or nil if
// none has been seen yet.
func (rd *Reader) PeerIndex() *rib.PeerIndexTable {
	return rd.peerIndex
}

// Next reads and decodes the next record. It returns io.EOF when the
// stream ends before a full 12-byte header. A truncated payload returns
// ErrBadFrame and the Reader should not be used again. The first record's type is
// validated against the known MRT type set; failure there returns
// ErrInvalidMRTFile.
func (rd *Reader) Next() (*Decoded, error) {
	rec, err := rd.nextFrame()
	if err != nil {
		return nil, err
	}
	return rd.decode(rec)
}

func (rd *Reader) nextFrame() (*Record, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(rd.r, hdr[:]); err != nil {
		// a short header read, partial or empty, is end of stream; BadFrame
		// is reserved for a payload shorter than its header declared
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	h := Header{
		Timestamp: binary.BigEndian.Uint32(hdr[0:4]),
		Type:      binary.BigEndian.Uint16(hdr[4:6]),
		Subtype:   binary.BigEndian.Uint16(hdr[6:8]),
		Length:    binary.BigEndian.Uint32(hdr[8:12]),
	}

	if !rd.firstSeen {
		rd.firstSeen = true
		if !knownTypes[h.Type] {
			return nil, mrtlpm.ErrInvalidMRTFile
		}
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(rd.r, payload); err != nil {
		return nil, mrtlpm.ErrBadFrame
	}

	return &Record{Header: h, Payload: payload}, nil
}

func (rd *Reader) decode(rec *Record) (*Decoded, error) {
	if rec.Header.Type != TypeTableDumpV2 {
		return &Decoded{Kind: KindUnsupported, Header: rec.Header, Payload: rec.Payload}, nil
	}

	switch rec.Header.Subtype {
	case SubtypePeerIndexTable:
		pit, err := rib.ParsePeerIndexTable(rec.Payload)
		if err != nil {
			return nil, errors.Wrap(err, "peer index table")
		}
		rd.peerIndex = pit
		return &Decoded{Kind: KindPeerIndexTable, Header: rec.Header, Payload: rec.Payload, PeerIndexTable: pit}, nil
	case SubtypeRibIPv4Unicast:
		if rd.peerIndex == nil {
			return nil, mrtlpm.ErrPeerIndexMissing
		}
		r, err := rib.ParseRIBIPv4Unicast(rec.Payload)
		if err != nil {
			return nil, errors.Wrap(err, "rib ipv4 unicast")
		}
		return &Decoded{Kind: KindRibIPv4Unicast, Header: rec.Header, Payload: rec.Payload, RIBIPv4: r}, nil
	default:
		return &Decoded{Kind: KindUnsupported, Header: rec.Header, Payload: rec.Payload}, nil
	}
}

// SplitMRT is a bufio.SplitFunc equivalent of Reader's framing, for callers
// that prefer bufio.Scanner-style iteration over bounded-size records
// (Reader itself uses io.ReadFull so it isn't limited by a scanner buffer,
// which matters for gigabyte-scale dumps with unusually large RIB
// entries).
func SplitMRT(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if len(data) < HeaderLen {
		if atEOF {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return 0, nil, nil
	}
	total := HeaderLen + int(binary.BigEndian.Uint32(data[8:12]))
	if len(data) < total {
		if atEOF {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return 0, nil, nil
	}
	return total, data[:total], nil
}
