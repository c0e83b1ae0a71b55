package mrtlpm_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/bgpview/mrtlpm/lpm"
	"github.com/bgpview/mrtlpm/protocol/mrt"
)

func mrtHeader(typ, subtype uint16, payload []byte) []byte {
	var buf bytes.Buffer
	var b4 [4]byte
	var b2 [2]byte
	binary.BigEndian.PutUint32(b4[:], 1440000000)
	buf.Write(b4[:])
	binary.BigEndian.PutUint16(b2[:], typ)
	buf.Write(b2[:])
	binary.BigEndian.PutUint16(b2[:], subtype)
	buf.Write(b2[:])
	binary.BigEndian.PutUint32(b4[:], uint32(len(payload)))
	buf.Write(b4[:])
	buf.Write(payload)
	return buf.Bytes()
}

func peerIndexPayload() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1}) // collector bgp id
	buf.Write([]byte{0, 0})       // view name length 0
	buf.Write([]byte{0, 1})       // peer count 1
	buf.WriteByte(0x02)           // as4, ipv4
	buf.Write([]byte{0, 0, 0, 1})
	buf.Write([]byte{192, 0, 2, 1})
	buf.Write([]byte{0, 0, 251, 244}) // AS 64500
	return buf.Bytes()
}

func asPathAttr(ases ...uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0xC0) // optional|transitive
	buf.WriteByte(2)    // AS_PATH
	var body bytes.Buffer
	body.WriteByte(2) // AS_SEQUENCE
	body.WriteByte(byte(len(ases)))
	for _, as := range ases {
		var b4 [4]byte
		binary.BigEndian.PutUint32(b4[:], as)
		body.Write(b4[:])
	}
	buf.WriteByte(byte(body.Len()))
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func ribEntryPayload(peerIdx uint16, attrs []byte) []byte {
	var buf bytes.Buffer
	var b2 [2]byte
	var b4 [4]byte
	binary.BigEndian.PutUint16(b2[:], peerIdx)
	buf.Write(b2[:])
	binary.BigEndian.PutUint32(b4[:], 1440000000)
	buf.Write(b4[:])
	binary.BigEndian.PutUint16(b2[:], uint16(len(attrs)))
	buf.Write(b2[:])
	buf.Write(attrs)
	return buf.Bytes()
}

func ribIPv4Payload(seq uint32, prefix net.IP, plen uint8, entries [][]byte) []byte {
	var buf bytes.Buffer
	var b4 [4]byte
	var b2 [2]byte
	binary.BigEndian.PutUint32(b4[:], seq)
	buf.Write(b4[:])
	buf.WriteByte(plen)
	bytelen := int(plen+7) / 8
	buf.Write(prefix.To4()[:bytelen])
	binary.BigEndian.PutUint16(b2[:], uint16(len(entries)))
	buf.Write(b2[:])
	for _, e := range entries {
		buf.Write(e)
	}
	return buf.Bytes()
}

// TestEndToEndDecodeAndBuild feeds a PEER_INDEX_TABLE followed by three
// RIB_IPV4_UNICAST records through the decoder and checks the resulting LPM
// table answers lookups with each route's origin AS.
func TestEndToEndDecodeAndBuild(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(mrtHeader(mrt.TypeTableDumpV2, mrt.SubtypePeerIndexTable, peerIndexPayload()))

	entry1 := ribEntryPayload(0, asPathAttr(64501, 15169))
	stream.Write(mrtHeader(mrt.TypeTableDumpV2, mrt.SubtypeRibIPv4Unicast,
		ribIPv4Payload(1, net.ParseIP("1.0.0.0"), 24, [][]byte{entry1})))

	entry2 := ribEntryPayload(0, asPathAttr(64501, 4826))
	stream.Write(mrtHeader(mrt.TypeTableDumpV2, mrt.SubtypeRibIPv4Unicast,
		ribIPv4Payload(2, net.ParseIP("1.0.4.0"), 22, [][]byte{entry2})))

	entry3 := ribEntryPayload(0, asPathAttr(64501, 15169))
	stream.Write(mrtHeader(mrt.TypeTableDumpV2, mrt.SubtypeRibIPv4Unicast,
		ribIPv4Payload(3, net.ParseIP("8.8.8.0"), 24, [][]byte{entry3})))

	rd := mrt.NewReader(&stream)
	tbl := lpm.NewTable()

	for {
		dec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if dec.Kind != mrt.KindRibIPv4Unicast {
			continue
		}
		as, ok := dec.RIBIPv4.Entries[0].Attrs.OriginAS()
		if !ok {
			t.Fatalf("expected an origin AS for %s/%d", dec.RIBIPv4.Prefix, dec.RIBIPv4.PrefixLen)
		}
		if err := tbl.Insert(dec.RIBIPv4.Prefix, dec.RIBIPv4.PrefixLen, as); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	cases := []struct {
		addr string
		want uint32
	}{
		{"8.8.8.8", 15169},
		{"1.0.5.3", 4826},
		{"1.0.0.250", 15169},
	}
	for _, c := range cases {
		got, ok := tbl.Lookup(net.ParseIP(c.addr))
		if !ok || got != c.want {
			t.Errorf("lookup(%s) = %d,%v want %d,true", c.addr, got, ok, c.want)
		}
	}
}

// TestEndToEndInvalidFirstType checks a stream whose first record is an
// unrecognized MRT type is rejected at construction, before any table is
// built.
func TestEndToEndInvalidFirstType(t *testing.T) {
	stream := mrtHeader(99, 0, nil)
	if _, err := mrt.NewValidatedReader(bytes.NewReader(stream)); err == nil {
		t.Errorf("expected an error for an unrecognized first record type")
	}

	rd := mrt.NewReader(bytes.NewReader(stream))
	if _, err := rd.Next(); err == nil {
		t.Errorf("expected the unvalidated reader to reject the first record too")
	}
}
