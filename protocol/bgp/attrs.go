// Package bgp parses the BGP path attribute TLV sequence embedded in an MRT
// RIB entry: ORIGIN, AS_PATH, NEXT_HOP and friends. Unlike a live BGP speaker
// this only ever sees table-dump attributes (4-byte AS numbers throughout),
// so there is no AS2/AS4 attribute-type distinction to make.
package bgp

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Origin codes carried by the single-byte ORIGIN attribute.
const (
	OriginIGP        = 0
	OriginEGP        = 1
	OriginIncomplete = 2
)

// Attribute type codes this parser recognizes; anything else is skipped by
// its declared length.
const (
	typeOrigin    = 1
	typeASPath    = 2
	typeNextHop   = 3
	typeMultiExit = 4
	typeLocalPref = 5
)

// Flag bits of a TLV's leading byte.
const (
	flagOptional   = 1 << 7
	flagTransitive = 1 << 6
	flagPartial    = 1 << 5
	flagExtended   = 1 << 4
)

// ASPathSegment is one (type, AS-number list) run of an AS_PATH attribute.
// Type is 1 for AS_SET, 2 for AS_SEQUENCE, mirroring RFC 4271; this
// parser does not otherwise distinguish between them (see Attributes.OriginAS).
type ASPathSegment struct {
	Type uint8
	ASes []uint32
}

// Attributes is the subset of BGP path attributes this project models,
// decoded from the attribute bytes of one RIB entry.
type Attributes struct {
	HaveOrigin bool
	Origin     uint8

	ASPath []ASPathSegment

	HaveNextHop bool
	NextHop     net.IP

	HaveMultiExit bool
	MultiExit     uint32

	HaveLocalPref bool
	LocalPref     uint32

	// Truncated is set when the attribute buffer ran out mid-TLV; the
	// attributes decoded so far are still returned (lenient decode, per the
	// rest of this parser's policy).
	Truncated bool
}

// OriginAS returns the last AS number of the last AS_PATH segment, the
// conventional "origin AS" of the route, and false if there is no AS_PATH
// or it is empty. AS_SET segments are not special-cased: the last AS number
// present is used regardless of the segment's type.
func (a *Attributes) OriginAS() (uint32, bool) {
	if len(a.ASPath) == 0 {
		return 0, false
	}
	last := a.ASPath[len(a.ASPath)-1]
	if len(last.ASes) == 0 {
		return 0, false
	}
	return last.ASes[len(last.ASes)-1], true
}

// ParseAttributes reads TLVs from buf until it is exhausted. A declared
// length that exceeds the remaining buffer halts parsing and returns the
// partial result with Truncated set, rather than an error: BGP streams
// commonly carry attributes this parser does not model, and the RIB entry
// they belong to is still surfaced.
func ParseAttributes(buf []byte) *Attributes {
	attrs := &Attributes{}
	for len(buf) > 0 {
		if len(buf) < 2 {
			attrs.Truncated = true
			return attrs
		}
		flags := buf[0]
		atype := buf[1]
		buf = buf[2:]

		var alen int
		if flags&flagExtended != 0 {
			if len(buf) < 2 {
				attrs.Truncated = true
				return attrs
			}
			alen = int(binary.BigEndian.Uint16(buf[:2]))
			buf = buf[2:]
		} else {
			if len(buf) < 1 {
				attrs.Truncated = true
				return attrs
			}
			alen = int(buf[0])
			buf = buf[1:]
		}

		if alen > len(buf) {
			attrs.Truncated = true
			return attrs
		}
		val := buf[:alen]
		buf = buf[alen:]

		switch atype {
		case typeOrigin:
			if alen == 1 {
				attrs.HaveOrigin = true
				attrs.Origin = val[0]
			}
			// wrong length: attribute dropped, parsing continues
		case typeASPath:
			segs, ok := parseASPath(val)
			if ok {
				attrs.ASPath = append(attrs.ASPath, segs...)
			}
		case typeNextHop:
			if alen == 4 {
				attrs.HaveNextHop = true
				ip := make(net.IP, 4)
				copy(ip, val)
				attrs.NextHop = ip
			}
		case typeMultiExit:
			if alen == 4 {
				attrs.HaveMultiExit = true
				attrs.MultiExit = binary.BigEndian.Uint32(val)
			}
		case typeLocalPref:
			if alen == 4 {
				attrs.HaveLocalPref = true
				attrs.LocalPref = binary.BigEndian.Uint32(val)
			}
		default:
			// unrecognized type: skipped by length, already consumed above
		}
	}
	return attrs
}

// parseASPath decodes the segment sequence of one AS_PATH attribute value:
// repeating (segment_type u8, segment_length u8, segment_length x u32 AS
// numbers). Returns ok=false if a segment's declared length runs past the
// buffer — the caller drops the whole attribute in that case.
func parseASPath(buf []byte) ([]ASPathSegment, bool) {
	var segs []ASPathSegment
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, false
		}
		segType := buf[0]
		segLen := int(buf[1])
		buf = buf[2:]
		if len(buf) < segLen*4 {
			return nil, false
		}
		ases := make([]uint32, segLen)
		for i := 0; i < segLen; i++ {
			ases[i] = binary.BigEndian.Uint32(buf[:4])
			buf = buf[4:]
		}
		segs = append(segs, ASPathSegment{Type: segType, ASes: ases})
	}
	return segs, true
}

// OriginString renders a numeric ORIGIN code for display.
func OriginString(o uint8) string {
	switch o {
	case OriginIGP:
		return "IGP"
	case OriginEGP:
		return "EGP"
	case OriginIncomplete:
		return "INCOMPLETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", o)
	}
}
