// Package util holds small helpers shared by the filter package: rendering
// an IPv4 prefix as a sortable bitstring key and a radix-tree-backed prefix
// membership index built on top of it.
package util

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// PrefixToRadixkey renders the first mask bits of an IPv4 prefix as a
// string of '0'/'1' characters, so that containment between two prefixes
// reduces to string-prefix matching between their keys. Host bits beyond
// the mask are ignored. Returns "" for a non-IPv4 address or a mask over
// 32.
func PrefixToRadixkey(ip net.IP, mask uint8) string {
	v4 := ip.To4()
	if v4 == nil || mask > 32 {
		return ""
	}
	addr := binary.BigEndian.Uint32(v4)
	key := make([]byte, mask)
	for i := range key {
		key[i] = '0' + byte(addr>>(31-i)&1)
	}
	return string(key)
}

// MaskStrToUint8 parses a decimal IPv4 mask length string ("24") into a
// uint8.
func MaskStrToUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if n > 32 {
		return 0, fmt.Errorf("mask %d out of range", n)
	}
	return uint8(n), nil
}
