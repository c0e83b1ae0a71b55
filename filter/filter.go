// Package filter restricts processing to RIB entries matching AS-path
// position criteria or prefixes falling inside a monitored supernet.
// Filters operate on decoded RIB_IPV4_UNICAST records and compose with
// And semantics via All.
package filter

import (
	"net"
	"strconv"
	"strings"

	"github.com/bgpview/mrtlpm/protocol/rib"
	"github.com/bgpview/mrtlpm/util"
	"github.com/pkg/errors"
)

// Filter reports whether a (prefix, rib entry) pair should be kept.
type Filter func(r *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool

// PrefixLoc selects which prefix set a PrefixFilter matches against. This
// project only ever sees advertised prefixes (TABLE_DUMP_V2 has no
// withdrawn-route records), so AdvPrefix and AnyPrefix behave identically.
type PrefixLoc int

const (
	AdvPrefix PrefixLoc = iota
	AnyPrefix
)

// PrefixFilter matches entries whose prefix falls inside, or covers, any
// of a configured set of monitored prefixes.
type PrefixFilter struct {
	pt  util.PrefixTree
	loc PrefixLoc
}

// NewPrefixFilterFromSlice builds a PrefixFilter from "ip/mask" strings.
func NewPrefixFilterFromSlice(prefixes []string, loc PrefixLoc) (Filter, error) {
	pf := &PrefixFilter{pt: util.NewPrefixTree(), loc: loc}
	for _, p := range prefixes {
		parts := strings.Split(p, "/")
		if len(parts) != 2 {
			return nil, errors.Errorf("malformed prefix string: %q", p)
		}
		mask, err := util.MaskStrToUint8(parts[1])
		if err != nil {
			return nil, errors.Wrapf(err, "can not parse mask: %s", parts[1])
		}
		ip := net.ParseIP(parts[0])
		if ip == nil {
			return nil, errors.Errorf("malformed IP address: %q", parts[0])
		}
		pf.pt.Add(ip, mask)
	}
	return pf.match, nil
}

func (pf *PrefixFilter) match(r *rib.RIBIPv4Unicast, _ *rib.RIBEntry) bool {
	return pf.pt.ContainsIPMask(r.Prefix, r.PrefixLen)
}

// ASPosition selects where in an AS_PATH a matching AS number must appear.
type ASPosition int

const (
	ASSource ASPosition = iota
	ASDestination
	ASMidPath
	ASAnywhere
)

// ASFilter matches entries whose AS_PATH contains one of a configured set
// of AS numbers at the given position.
type ASFilter struct {
	asList []uint32
}

// NewASFilter parses a comma-separated AS list ("1,2,3") and builds an
// ASFilter for pos.
func NewASFilter(list string, pos ASPosition) (Filter, error) {
	aslist, err := parseASList(list)
	if err != nil {
		return nil, err
	}
	return NewASFilterFromSlice(aslist, pos)
}

// NewASFilterFromSlice builds an ASFilter for pos from an already-parsed
// AS number list.
func NewASFilterFromSlice(aslist []uint32, pos ASPosition) (Filter, error) {
	asf := &ASFilter{asList: aslist}
	switch pos {
	case ASSource:
		return asf.filterBySource, nil
	case ASDestination:
		return asf.filterByDest, nil
	case ASMidPath:
		return asf.filterByMidPath, nil
	case ASAnywhere:
		return asf.filterByAnywhere, nil
	}
	return nil, errors.New("unsupported AS position argument")
}

// flattenASPath concatenates every AS_PATH segment's AS numbers in order,
// without regard to AS_SET vs AS_SEQUENCE segment type (same stance as
// Attributes.OriginAS, documented there).
func flattenASPath(e *rib.RIBEntry) []uint32 {
	if e.Attrs == nil {
		return nil
	}
	var path []uint32
	for _, seg := range e.Attrs.ASPath {
		path = append(path, seg.ASes...)
	}
	return path
}

func (asf *ASFilter) filterBySource(_ *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool {
	path := flattenASPath(e)
	if len(path) < 1 {
		return false
	}
	return asf.matchesOne(path[len(path)-1])
}

func (asf *ASFilter) filterByDest(_ *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool {
	path := flattenASPath(e)
	if len(path) < 1 {
		return false
	}
	return asf.matchesOne(path[0])
}

func (asf *ASFilter) filterByMidPath(_ *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool {
	path := flattenASPath(e)
	if len(path) < 3 {
		return false
	}
	for _, as := range path[1 : len(path)-1] {
		if asf.matchesOne(as) {
			return true
		}
	}
	return false
}

func (asf *ASFilter) filterByAnywhere(_ *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool {
	path := flattenASPath(e)
	for _, as := range path {
		if asf.matchesOne(as) {
			return true
		}
	}
	return false
}

func (asf *ASFilter) matchesOne(comp uint32) bool {
	for _, as := range asf.asList {
		if as == comp {
			return true
		}
	}
	return false
}

func parseASList(str string) ([]uint32, error) {
	toks := strings.Split(str, ",")
	aslist := make([]uint32, len(toks))
	for i, t := range toks {
		as, err := strconv.ParseUint(strings.TrimSpace(t), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing AS number %q", t)
		}
		aslist[i] = uint32(as)
	}
	return aslist, nil
}

// All reports whether r/e passes every filter; a nil or empty slice always
// passes.
func All(filters []Filter, r *rib.RIBIPv4Unicast, e *rib.RIBEntry) bool {
	for _, f := range filters {
		if f != nil && !f(r, e) {
			return false
		}
	}
	return true
}
