package util

import (
	"net"

	"github.com/armon/go-radix"
)

// PrefixTree is a membership index over a set of monitored IPv4 prefixes,
// answering "is this (ip, mask) covered by (or does it cover) one of the
// prefixes I was given" without a linear scan. It is keyed by the bitstring
// produced by PrefixToRadixkey, so prefix containment reduces to radix
// prefix matching.
type PrefixTree struct {
	t *radix.Tree
}

// NewPrefixTree returns an empty PrefixTree.
func NewPrefixTree() PrefixTree {
	return PrefixTree{t: radix.New()}
}

// Add registers ip/mask as a monitored prefix.
func (pt PrefixTree) Add(ip net.IP, mask uint8) {
	key := PrefixToRadixkey(ip, mask)
	if key == "" {
		return
	}
	pt.t.Insert(key, mask)
}

// ContainsIPMask reports whether ip/mask is covered by, or covers, any
// prefix previously added to the tree: either a monitored prefix is a
// prefix of ip/mask's key (ip/mask is inside a monitored supernet), or
// ip/mask's key is a prefix of a monitored entry (ip/mask is itself a
// supernet of a monitored route).
func (pt PrefixTree) ContainsIPMask(ip net.IP, mask uint8) bool {
	key := PrefixToRadixkey(ip, mask)
	if key == "" {
		return false
	}
	if _, _, ok := pt.t.LongestPrefix(key); ok {
		return true
	}
	found := false
	pt.t.WalkPrefix(key, func(k string, v interface{}) bool {
		found = true
		return true
	})
	return found
}
