// Command mrtlpm ingests an MRT TABLE_DUMP_V2 file, builds an IPv4
// longest-prefix-match table mapping prefixes to their origin AS, and
// answers lookup/whois queries against a saved table.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/bgpview/mrtlpm"
	"github.com/bgpview/mrtlpm/asinfo"
	"github.com/bgpview/mrtlpm/filter"
	"github.com/bgpview/mrtlpm/lpm"
	"github.com/bgpview/mrtlpm/mrtio"
	"github.com/bgpview/mrtlpm/protocol/mrt"
	"github.com/pkg/errors"
)

// errx logs a non-nil error, closes any fds passed along for cleanup, and
// exits with status 1. A no-op when e is nil.
func errx(e error, fds ...io.Closer) {
	if e == nil {
		return
	}
	log.Printf("error: %s\n", e)
	for _, fd := range fds {
		fd.Close()
	}
	os.Exit(1)
}

// recoverable reports whether err is a per-record parse failure the decode
// loop should drop the record for and keep going, as opposed to a framing or
// I/O error that ends the stream. Parsing is lenient within records, strict
// at frame boundaries.
func recoverable(err error) bool {
	switch errors.Cause(err) {
	case mrtlpm.ErrMalformedPeerEntry, mrtlpm.ErrMalformedRibEntry, mrtlpm.ErrPeerIndexMissing:
		return true
	}
	return false
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mrtlpm build  [-src 1,2,3] [-dst 1,2,3] [-prefix 10.0.0.0/8,...] [-filter conf.json] [-keep records.bin] <mrt-file> <out-table>
  mrtlpm lookup <table-file> <ipv4-address>
  mrtlpm whois  <table-file> <as-org2info.txt> <ipv4-address>
  mrtlpm dump   <mrt-file>`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "build":
		cmdBuild(os.Args[2:])
	case "lookup":
		cmdLookup(os.Args[2:])
	case "whois":
		cmdWhois(os.Args[2:])
	case "dump":
		cmdDump(os.Args[2:])
	default:
		usage()
	}
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	srcAS := fs.String("src", "", "comma separated source AS numbers to filter by")
	dstAS := fs.String("dst", "", "comma separated destination AS numbers to filter by")
	prefixes := fs.String("prefix", "", "comma separated monitored prefixes (ip/mask) to filter by")
	filterConf := fs.String("filter", "", "path to a JSON filter config file (see filter.FilterFile)")
	keepOut := fs.String("keep", "", "path to also write the kept raw MRT records to, length-prefixed")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		usage()
	}
	mrtFile, outFile := rest[0], rest[1]

	var filters []filter.Filter
	if *filterConf != "" {
		confFilters, err := filter.NewFiltersFromFile(*filterConf)
		errx(err)
		filters = append(filters, confFilters...)
	}
	if *srcAS != "" {
		f, err := filter.NewASFilter(*srcAS, filter.ASSource)
		errx(err)
		filters = append(filters, f)
	}
	if *dstAS != "" {
		f, err := filter.NewASFilter(*dstAS, filter.ASDestination)
		errx(err)
		filters = append(filters, f)
	}
	if *prefixes != "" {
		f, err := filter.NewPrefixFilterFromSlice(strings.Split(*prefixes, ","), filter.AnyPrefix)
		errx(err)
		filters = append(filters, f)
	}

	r, closeFn, err := mrtio.NewReader(mrtFile)
	errx(err)
	defer closeFn()

	var keep *mrtio.FlatRecordFile
	if *keepOut != "" {
		keep = mrtio.NewFlatRecordFile(*keepOut)
		errx(keep.Open())
		defer keep.Close()
	}

	rd, err := mrt.NewValidatedReader(r)
	errx(err)
	tbl := lpm.NewTable()

	var nRecords, nInserted, nDropped, nNoAS int
	for {
		dec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil && recoverable(err) {
			nDropped++
			continue
		}
		errx(err)

		if keep != nil && dec.Kind == mrt.KindPeerIndexTable {
			_, err := keep.Write(dec.Frame())
			errx(err)
		}
		if dec.Kind != mrt.KindRibIPv4Unicast {
			continue
		}
		nRecords++
		if len(dec.RIBIPv4.Entries) == 0 {
			continue
		}
		// the origin AS comes from the first sub-entry only; a record whose
		// first peer has no AS_PATH is skipped, never a later peer's path
		e := &dec.RIBIPv4.Entries[0]
		if !filter.All(filters, dec.RIBIPv4, e) {
			continue
		}
		as, ok := e.Attrs.OriginAS()
		if !ok {
			nNoAS++
			continue
		}
		if err := tbl.Insert(dec.RIBIPv4.Prefix, dec.RIBIPv4.PrefixLen, as); err != nil {
			log.Printf("skipping %s/%d: %s\n", dec.RIBIPv4.Prefix, dec.RIBIPv4.PrefixLen, err)
			continue
		}
		if keep != nil {
			_, err := keep.Write(dec.Frame())
			errx(err)
		}
		nInserted++
	}

	out, err := os.Create(outFile)
	errx(err)
	defer out.Close()
	errx(tbl.Save(out))

	if nNoAS > 0 {
		log.Printf("warning: %d rib records had no usable origin AS and were not inserted\n", nNoAS)
	}
	if nDropped > 0 {
		log.Printf("warning: %d malformed records dropped\n", nDropped)
	}
	log.Printf("built table from %s: %d rib records, %d prefixes inserted\n", mrtFile, nRecords, nInserted)
}

func cmdLookup(args []string) {
	if len(args) != 2 {
		usage()
	}
	tbl := loadTable(args[0])
	ip := parseIPv4(args[1])

	as, ok := tbl.Lookup(ip)
	if !ok {
		fmt.Printf("%s: no match\n", ip)
		return
	}
	fmt.Printf("%s -> AS%d\n", ip, as)
}

func cmdWhois(args []string) {
	if len(args) != 3 {
		usage()
	}
	tbl := loadTable(args[0])

	infoFile, err := os.Open(args[1])
	errx(err)
	defer infoFile.Close()
	db, err := asinfo.Load(infoFile)
	errx(err)
	if n := db.Skipped(); n > 0 {
		log.Printf("as-org2info: %d malformed rows skipped\n", n)
	}

	ip := parseIPv4(args[2])
	as, ok := tbl.Lookup(ip)
	if !ok {
		fmt.Printf("%s: no match\n", ip)
		return
	}

	info, ok := db.Lookup(as)
	if !ok {
		fmt.Printf("%s -> AS%d (no registration info available)\n", ip, as)
		return
	}
	fmt.Printf("%s -> AS%d, %s, %s (%s)\n", ip, as, info.Name, info.Org, info.Country)
}

func cmdDump(args []string) {
	if len(args) != 1 {
		usage()
	}
	r, closeFn, err := mrtio.NewReader(args[0])
	errx(err)
	defer closeFn()

	rd, err := mrt.NewValidatedReader(r)
	errx(err)
	n := 0
	for {
		dec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil && recoverable(err) {
			log.Printf("dropping malformed record: %s\n", err)
			continue
		}
		errx(err)
		n++

		switch dec.Kind {
		case mrt.KindPeerIndexTable:
			fmt.Printf("[%d] PEER_INDEX_TABLE view=%q peers=%d\n", n, dec.PeerIndexTable.ViewName, len(dec.PeerIndexTable.Peers))
		case mrt.KindRibIPv4Unicast:
			fmt.Printf("[%d] RIB_IPV4_UNICAST %s/%d entries=%d\n", n, dec.RIBIPv4.Prefix, dec.RIBIPv4.PrefixLen, len(dec.RIBIPv4.Entries))
		default:
			fmt.Printf("[%d] unsupported record type=%d subtype=%d\n", n, dec.Header.Type, dec.Header.Subtype)
		}
	}
}

func loadTable(path string) *lpm.Table {
	fp, err := os.Open(path)
	errx(err)
	defer fp.Close()
	tbl, err := lpm.Load(fp)
	errx(err)
	return tbl
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		errx(fmt.Errorf("not an IPv4 address: %s", s))
	}
	return ip
}
