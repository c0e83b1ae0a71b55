// Package rib decodes the two TABLE_DUMP_V2 record payloads this project
// cares about: PEER_INDEX_TABLE and RIB_IPV4_UNICAST, including the BGP
// path attributes embedded in each RIB entry.
package rib

import (
	"encoding/binary"
	"net"

	"github.com/bgpview/mrtlpm"
	"github.com/bgpview/mrtlpm/protocol/bgp"
	"github.com/pkg/errors"
)

// PeerEntry is one BGP peer descriptor from a PEER_INDEX_TABLE.
type PeerEntry struct {
	BGPID uint32
	IP    net.IP
	AS    uint32
}

// PeerIndexTable is the decoded PEER_INDEX_TABLE record: the collector's
// own BGP id, its view name, and the ordered peer list RIB entries index
// into by position.
type PeerIndexTable struct {
	CollectorBGPID uint32
	ViewName       string
	Peers          []PeerEntry
}

// ParsePeerIndexTable decodes a PEER_INDEX_TABLE record payload: collector
// BGP id (4 bytes), view-name length (u16) and bytes, peer count (u16), then
// that many peer entries.
func ParsePeerIndexTable(buf []byte) (*PeerIndexTable, error) {
	if len(buf) < 6 {
		return nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for collector id and view-name length")
	}
	pit := &PeerIndexTable{}
	pit.CollectorBGPID = binary.BigEndian.Uint32(buf[:4])
	vlen := int(binary.BigEndian.Uint16(buf[4:6]))
	buf = buf[6:]

	if len(buf) < vlen+2 {
		return nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for view name and peer count")
	}
	pit.ViewName = string(buf[:vlen])
	buf = buf[vlen:]

	peerCount := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]

	pit.Peers = make([]PeerEntry, 0, peerCount)
	for i := 0; i < peerCount; i++ {
		pe, rest, err := parsePeerEntry(buf)
		if err != nil {
			return nil, err
		}
		pit.Peers = append(pit.Peers, pe)
		buf = rest
	}
	return pit, nil
}

func parsePeerEntry(buf []byte) (PeerEntry, []byte, error) {
	if len(buf) < 1 {
		return PeerEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for peer type")
	}
	peerType := buf[0]
	if peerType > 3 {
		return PeerEntry{}, nil, errors.Wrapf(mrtlpm.ErrMalformedPeerEntry, "unknown peer type byte %d", peerType)
	}
	as4 := peerType&0x2 != 0
	ipv6 := peerType&0x1 != 0
	buf = buf[1:]

	if len(buf) < 4 {
		return PeerEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for peer BGP id")
	}
	id := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]

	iplen := 4
	if ipv6 {
		iplen = 16
	}
	if len(buf) < iplen {
		return PeerEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for peer IP")
	}
	ip := make(net.IP, iplen)
	copy(ip, buf[:iplen])
	buf = buf[iplen:]

	aslen := 2
	if as4 {
		aslen = 4
	}
	if len(buf) < aslen {
		return PeerEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedPeerEntry, "buffer too small for peer AS")
	}
	var as uint32
	if as4 {
		as = binary.BigEndian.Uint32(buf[:4])
	} else {
		as = uint32(binary.BigEndian.Uint16(buf[:2]))
	}
	buf = buf[aslen:]

	return PeerEntry{BGPID: id, IP: ip, AS: as}, buf, nil
}

// RIBEntry is one (peer, attributes) pairing for a RIB_IPV4_UNICAST prefix.
type RIBEntry struct {
	PeerIndex uint16
	Timestamp uint32
	Attrs     *bgp.Attributes
}

// RIBIPv4Unicast is a decoded RIB_IPV4_UNICAST record: one prefix and the
// list of peers that were observed announcing it.
type RIBIPv4Unicast struct {
	SequenceNumber uint32
	Prefix         net.IP
	PrefixLen      uint8
	Entries        []RIBEntry
}

// ParseRIBIPv4Unicast decodes a RIB_IPV4_UNICAST record payload: sequence
// number (u32), prefix length in bits (u8), prefix
// bytes (ceil(len/8), zero-padded to 4 bytes), entry count (u16), then that
// many rib-entries.
func ParseRIBIPv4Unicast(buf []byte) (*RIBIPv4Unicast, error) {
	if len(buf) < 5 {
		return nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "buffer too small for sequence number and prefix length")
	}
	r := &RIBIPv4Unicast{}
	r.SequenceNumber = binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]

	bitlen := buf[0]
	if bitlen > 32 {
		return nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "prefix length exceeds 32 bits")
	}
	buf = buf[1:]
	r.PrefixLen = bitlen

	bytelen := int(bitlen+7) / 8
	if bytelen > len(buf) {
		return nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "buffer too small for prefix bytes")
	}
	ip := make(net.IP, 4)
	if bytelen > 0 {
		pbuf := make([]byte, bytelen)
		copy(pbuf, buf[:bytelen])
		if bitlen%8 != 0 {
			mask := byte(uint16(0xff00) >> (bitlen % 8))
			pbuf[bytelen-1] &= mask
		}
		copy(ip, pbuf)
		buf = buf[bytelen:]
	}
	r.Prefix = ip

	if len(buf) < 2 {
		return nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "buffer too small for entry count")
	}
	entryCount := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]

	r.Entries = make([]RIBEntry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		e, rest, err := parseRIBEntry(buf)
		if err != nil {
			return nil, err
		}
		r.Entries = append(r.Entries, e)
		buf = rest
	}
	return r, nil
}

func parseRIBEntry(buf []byte) (RIBEntry, []byte, error) {
	if len(buf) < 8 {
		return RIBEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "buffer too small for rib entry header")
	}
	peerIndex := binary.BigEndian.Uint16(buf[:2])
	buf = buf[2:]
	ts := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	attrLen := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]

	if attrLen > len(buf) {
		return RIBEntry{}, nil, errors.Wrap(mrtlpm.ErrMalformedRibEntry, "buffer too small for attribute bytes")
	}
	attrs := bgp.ParseAttributes(buf[:attrLen])
	buf = buf[attrLen:]

	return RIBEntry{PeerIndex: peerIndex, Timestamp: ts, Attrs: attrs}, buf, nil
}
