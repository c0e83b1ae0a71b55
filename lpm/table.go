// Package lpm implements a four-level stride (16/8/4/4) IPv4
// longest-prefix-match trie. Prefixes map to 32-bit values (origin AS
// numbers in this project); lookups return the value of the most specific
// installed prefix covering an address. The table is built once and then
// queried; it is not safe for concurrent mutation.
package lpm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/bgpview/mrtlpm"
)

// levelCum[k] is the cumulative number of prefix bits consumed by level k;
// level k's stride is levelCum[k] - levelCum[k-1] (16, 8, 4, 4), and
// tableSizes[k] = 1 << that stride.
var (
	levelCum   = [4]int{16, 24, 28, 32}
	tableSizes = [4]int{1 << 16, 1 << 8, 1 << 4, 1 << 4}
)

// entry is one trie slot. Field order puts the 8-byte pointer first so the
// struct packs to 16 bytes on a 64-bit platform, per the ≤16-byte budget.
type entry struct {
	children  *table
	value     uint32
	prefixLen uint8
	final     bool
}

// table is one level's flat array of entries.
type table []entry

// Table is the top-level LPM routing table. The zero value is not usable;
// construct with NewTable or Load.
type Table struct {
	root      table
	allocated uint32
}

// NewTable returns an empty table with only the level-0 array allocated.
func NewTable() *Table {
	return &Table{
		root:      make(table, tableSizes[0]),
		allocated: uint32(tableSizes[0]),
	}
}

// to4 copies ip's 4-byte IPv4 form into an array, the form every indexing
// helper below operates on.
func to4(ip net.IP) ([4]byte, error) {
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, fmt.Errorf("lpm: not an IPv4 address: %v", ip)
	}
	var a [4]byte
	copy(a[:], v4)
	return a, nil
}

// to4Masked is to4 with the low (32-length) bits cleared, so that the index
// arithmetic below can assume a prefix's trailing bits are already zero.
func to4Masked(ip net.IP, length uint8) ([4]byte, error) {
	a, err := to4(ip)
	if err != nil {
		return a, err
	}
	masked := net.IP(a[:]).Mask(net.CIDRMask(int(length), 32))
	copy(a[:], masked)
	return a, nil
}

// idxAndSpan computes, for a (possibly masked) address and the prefix
// length being installed/looked-up, the base slot index at level and the
// number of contiguous slots that prefix spans at that level.
func idxAndSpan(ip [4]byte, length uint8, level int) (base, span int) {
	switch level {
	case 0:
		base = int(ip[0])<<8 | int(ip[1])
	case 1:
		base = int(ip[2])
	case 2:
		base = int(ip[3]) >> 4
	case 3:
		base = int(ip[3]) & 0x0F
	}
	cum := levelCum[level]
	if int(length) > cum {
		span = 1
	} else {
		span = 1 << uint(cum-int(length))
	}
	return base, span
}

// Insert installs prefix/length -> value. Per the documented invariant, a
// slot is overwritten only if its current prefix length is <= length; an
// equal-length duplicate overwrites (last writer wins).
func (t *Table) Insert(prefix net.IP, length uint8, value uint32) error {
	if length > 32 {
		return mrtlpm.ErrBadPrefix
	}
	ip, err := to4Masked(prefix, length)
	if err != nil {
		return err
	}

	tbl := &t.root
	for level := 0; ; level++ {
		cum := levelCum[level]
		base, span := idxAndSpan(ip, length, level)

		var next *table
		for i := 0; i < span; i++ {
			e := &(*tbl)[base+i]
			if int(length) <= cum {
				if e.prefixLen <= length {
					e.final = true
					e.prefixLen = length
					e.value = value
				}
			} else {
				if e.children == nil {
					child := make(table, tableSizes[level+1])
					e.children = &child
					t.allocated += uint32(tableSizes[level+1])
				}
				if i == 0 {
					next = e.children
				}
			}
		}
		if int(length) <= cum {
			return nil
		}
		tbl = next
	}
}

// Lookup returns the value of the longest installed prefix covering ip, and
// false if none covers it.
func (t *Table) Lookup(ip net.IP) (uint32, bool) {
	addr, err := to4(ip)
	if err != nil {
		return 0, false
	}
	var match uint32
	found := false
	tbl := &t.root
	for level := 0; level < len(levelCum); level++ {
		base, _ := idxAndSpan(addr, 32, level)
		e := &(*tbl)[base]
		if e.final {
			match = e.value
			found = true
		}
		if e.children == nil {
			break
		}
		tbl = e.children
	}
	return match, found
}

// Delete removes the installed prefix/length entry. It walks the same
// index path Insert would have used; if that path was never built (no
// prefix ever descended through it) Delete is a no-op. Deleting a prefix
// does not restore any shorter covering prefix that previously occupied
// the same slots — that is the caller's responsibility, via Rebuild if
// needed. Child tables are never reclaimed.
func (t *Table) Delete(prefix net.IP, length uint8) error {
	if length > 32 {
		return mrtlpm.ErrBadPrefix
	}
	ip, err := to4Masked(prefix, length)
	if err != nil {
		return err
	}

	tbl := &t.root
	for level := 0; ; level++ {
		cum := levelCum[level]
		base, span := idxAndSpan(ip, length, level)

		if int(length) <= cum {
			for i := 0; i < span; i++ {
				e := &(*tbl)[base+i]
				e.final = false
				e.prefixLen = 0
				e.value = 0
			}
			return nil
		}

		e := &(*tbl)[base]
		if e.children == nil {
			return nil
		}
		tbl = e.children
	}
}

// PrefixEntry is one (prefix, length, value) tuple, the unit Rebuild
// replays.
type PrefixEntry struct {
	Prefix net.IP
	Length uint8
	Value  uint32
}

// Rebuild discards this table's contents and reinstalls entries from
// scratch, in order. This is the escape hatch for callers who want
// Delete's shadowed-shorter-prefix restoration: keep an authoritative
// (prefix, length, value) set on the side, remove the deleted entry from
// it, and Rebuild from what remains.
func (t *Table) Rebuild(entries []PrefixEntry) error {
	fresh := NewTable()
	for _, e := range entries {
		if err := fresh.Insert(e.Prefix, e.Length, e.Value); err != nil {
			return err
		}
	}
	*t = *fresh
	return nil
}

// Save writes the table as: little-endian u32 allocated-entry count, then a
// pre-order dump of the level-0 table. Each entry is (flags u8, prefix_len
// u8, value u32 big-endian); flags bit0 = final, bit1 = has_children; a
// has_children entry is immediately followed by its child table, recursed
// the same way. This format is not meant to be read by any other tool —
// only round-trip identity with Load is guaranteed.
func (t *Table) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, t.allocated); err != nil {
		return err
	}
	if err := writeTable(bw, t.root); err != nil {
		return err
	}
	return bw.Flush()
}

func writeTable(w io.Writer, tbl table) error {
	for i := range tbl {
		e := &tbl[i]
		var flags uint8
		if e.final {
			flags |= 1
		}
		if e.children != nil {
			flags |= 2
		}
		if _, err := w.Write([]byte{flags, e.prefixLen}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, e.value); err != nil {
			return err
		}
		if e.children != nil {
			if err := writeTable(w, *e.children); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a table previously written by Save.
func Load(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	var allocated uint32
	if err := binary.Read(br, binary.LittleEndian, &allocated); err != nil {
		return nil, err
	}
	root, err := readTable(br, 0)
	if err != nil {
		return nil, err
	}
	return &Table{root: root, allocated: allocated}, nil
}

func readTable(r io.Reader, level int) (table, error) {
	tbl := make(table, tableSizes[level])
	for i := range tbl {
		var hdr [2]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		var value uint32
		if err := binary.Read(r, binary.BigEndian, &value); err != nil {
			return nil, err
		}
		tbl[i].final = hdr[0]&1 != 0
		tbl[i].prefixLen = hdr[1]
		tbl[i].value = value

		if hdr[0]&2 != 0 {
			if level+1 >= len(tableSizes) {
				return nil, fmt.Errorf("lpm: has_children set at deepest level")
			}
			child, err := readTable(r, level+1)
			if err != nil {
				return nil, err
			}
			tbl[i].children = &child
		}
	}
	return tbl, nil
}

// Dump writes a human-readable pre-order walk of occupied slots (final or
// with children) to w, as a debugging aid separate from the binary
// Save/Load round trip.
func (t *Table) Dump(w io.Writer) {
	dumpTable(w, t.root, 0, 0)
}

func dumpTable(w io.Writer, tbl table, level, baseIdx int) {
	for i, e := range tbl {
		if !e.final && e.children == nil {
			continue
		}
		indent := ""
		for d := 0; d < level; d++ {
			indent += "\t"
		}
		fmt.Fprintf(w, "%sidx:%d final:%v prefix_len:%d value:%d\n", indent, baseIdx+i, e.final, e.prefixLen, e.value)
		if e.children != nil {
			dumpTable(w, *e.children, level+1, 0)
		}
	}
}
