package filter

import (
	"net"
	"testing"

	"github.com/bgpview/mrtlpm/protocol/bgp"
	"github.com/bgpview/mrtlpm/protocol/rib"
)

func entryWithASPath(ases ...uint32) *rib.RIBEntry {
	return &rib.RIBEntry{
		Attrs: &bgp.Attributes{
			ASPath: []bgp.ASPathSegment{{Type: 2, ASes: ases}},
		},
	}
}

func ribFor(prefix string, plen uint8) *rib.RIBIPv4Unicast {
	return &rib.RIBIPv4Unicast{Prefix: net.ParseIP(prefix), PrefixLen: plen}
}

func TestASFilterBySource(t *testing.T) {
	f, err := NewASFilterFromSlice([]uint32{64500}, ASSource)
	if err != nil {
		t.Fatalf("NewASFilterFromSlice: %v", err)
	}
	e := entryWithASPath(64501, 64502, 64500) // source = last AS in path
	if !f(nil, e) {
		t.Errorf("expected source-AS match")
	}
	if f(nil, entryWithASPath(64501, 64502, 1)) {
		t.Errorf("did not expect a match for an unrelated source AS")
	}
}

func TestASFilterByDest(t *testing.T) {
	f, err := NewASFilterFromSlice([]uint32{64501}, ASDestination)
	if err != nil {
		t.Fatalf("NewASFilterFromSlice: %v", err)
	}
	e := entryWithASPath(64501, 64502, 64500) // destination = first AS in path
	if !f(nil, e) {
		t.Errorf("expected destination-AS match")
	}
}

func TestASFilterByMidPath(t *testing.T) {
	f, err := NewASFilterFromSlice([]uint32{64502}, ASMidPath)
	if err != nil {
		t.Fatalf("NewASFilterFromSlice: %v", err)
	}
	if !f(nil, entryWithASPath(64501, 64502, 64500)) {
		t.Errorf("expected mid-path match")
	}
	if f(nil, entryWithASPath(64501, 64500)) {
		t.Errorf("a 2-AS path has no mid-path AS, should not match")
	}
}

func TestASFilterByAnywhere(t *testing.T) {
	f, err := NewASFilterFromSlice([]uint32{64502}, ASAnywhere)
	if err != nil {
		t.Fatalf("NewASFilterFromSlice: %v", err)
	}
	if !f(nil, entryWithASPath(64501, 64502, 64500)) {
		t.Errorf("expected anywhere match")
	}
}

func TestASFilterEmptyASPath(t *testing.T) {
	f, err := NewASFilterFromSlice([]uint32{64500}, ASSource)
	if err != nil {
		t.Fatalf("NewASFilterFromSlice: %v", err)
	}
	if f(nil, &rib.RIBEntry{Attrs: &bgp.Attributes{}}) {
		t.Errorf("an entry with no AS_PATH should never match")
	}
}

func TestPrefixFilterContainment(t *testing.T) {
	f, err := NewPrefixFilterFromSlice([]string{"10.0.0.0/8"}, AnyPrefix)
	if err != nil {
		t.Fatalf("NewPrefixFilterFromSlice: %v", err)
	}
	if !f(ribFor("10.1.2.0", 24), nil) {
		t.Errorf("expected 10.1.2.0/24 to be covered by monitored 10.0.0.0/8")
	}
	if f(ribFor("11.1.2.0", 24), nil) {
		t.Errorf("did not expect 11.1.2.0/24 to be covered")
	}
}

func TestPrefixFilterMalformedInput(t *testing.T) {
	if _, err := NewPrefixFilterFromSlice([]string{"not-a-prefix"}, AnyPrefix); err == nil {
		t.Errorf("expected an error for a malformed prefix string")
	}
	if _, err := NewPrefixFilterFromSlice([]string{"10.0.0.0/abc"}, AnyPrefix); err == nil {
		t.Errorf("expected an error for a non-numeric mask")
	}
}

func TestAllRequiresEveryFilter(t *testing.T) {
	srcF, _ := NewASFilterFromSlice([]uint32{64500}, ASSource)
	prefF, _ := NewPrefixFilterFromSlice([]string{"10.0.0.0/8"}, AnyPrefix)

	r := ribFor("10.1.2.0", 24)
	e := entryWithASPath(64501, 64500)
	if !All([]Filter{srcF, prefF}, r, e) {
		t.Errorf("expected both filters to pass")
	}

	r2 := ribFor("11.1.2.0", 24)
	if All([]Filter{srcF, prefF}, r2, e) {
		t.Errorf("expected the prefix filter to reject an out-of-range prefix")
	}
}

func TestAllWithNoFilters(t *testing.T) {
	if !All(nil, ribFor("1.2.3.0", 24), entryWithASPath(1)) {
		t.Errorf("no filters configured should always pass")
	}
}
