// Package asinfo loads CAIDA's as-org2info.txt side table, mapping AS
// numbers to their registering organization and the organization's
// country, and keeping a per-country index of AS numbers.
//
// The file is two sections, each introduced by a "# format:" comment line
// (org_id|changed|org_name|country|source, then aut|changed|aut_name|
// org_id|source); which section is active switches on that marker line
// rather than on a fixed line count.
package asinfo

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	formatOrgMarker = "# format:org_id"
	formatAutMarker = "# format:aut"
)

// ASInfo is one AS's registration record.
type ASInfo struct {
	ASN     uint32
	Name    string
	Org     string
	Country string
}

// DB is a loaded as-org2info.txt, indexed for lookup by ASN and by country.
type DB struct {
	ases      map[uint32]ASInfo
	countries map[string][]uint32
	skipped   int
}

// Load reads a CAIDA as-org2info.txt stream and builds a DB. Malformed
// rows within a recognized section are counted and skipped rather than
// aborting the load; only an I/O error on r is fatal.
func Load(r io.Reader) (*DB, error) {
	db := &DB{
		ases:      make(map[uint32]ASInfo),
		countries: make(map[string][]uint32),
	}
	orgCountry := make(map[string]string)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	inOrgSection := false
	inAutSection := false
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, formatOrgMarker):
			inOrgSection, inAutSection = true, false
			continue
		case strings.HasPrefix(line, formatAutMarker):
			inAutSection, inOrgSection = true, false
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case inOrgSection:
			if !parseOrgLine(line, orgCountry) {
				db.skipped++
			}
		case inAutSection:
			if !parseAutLine(line, orgCountry, db) {
				db.skipped++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning as-org2info.txt")
	}
	return db, nil
}

func parseOrgLine(line string, orgCountry map[string]string) bool {
	toks := strings.Split(line, "|")
	if len(toks) != 5 {
		return false
	}
	org, country := toks[0], toks[3]
	orgCountry[org] = country
	return true
}

func parseAutLine(line string, orgCountry map[string]string, db *DB) bool {
	toks := strings.Split(line, "|")
	if len(toks) != 5 {
		return false
	}
	asn, err := strconv.ParseUint(toks[0], 10, 32)
	if err != nil {
		return false
	}
	name, org := toks[2], toks[3]
	country, ok := orgCountry[org]
	if !ok {
		// aut row referencing an org the org section never declared; the AS
		// stays unknown rather than being recorded with an empty country.
		return true
	}

	info := ASInfo{ASN: uint32(asn), Name: name, Org: org, Country: country}
	db.ases[info.ASN] = info
	db.countries[country] = append(db.countries[country], info.ASN)
	return true
}

// Skipped returns how many malformed rows the loader dropped, so callers can
// report them.
func (db *DB) Skipped() int { return db.skipped }

// Lookup returns the registration record for asn, if known.
func (db *DB) Lookup(asn uint32) (ASInfo, bool) {
	info, ok := db.ases[asn]
	return info, ok
}

// CountryOf returns the country code an AS is registered in, if known.
func (db *DB) CountryOf(asn uint32) (string, bool) {
	info, ok := db.ases[asn]
	return info.Country, ok
}

// ASesForCountry returns the AS numbers registered to country.
func (db *DB) ASesForCountry(country string) []uint32 {
	return db.countries[country]
}

// CountryCount pairs a country code with the number of ASes registered
// there, as returned by CountriesByASCount.
type CountryCount struct {
	Country string
	Count   int
}

// CountriesByASCount returns every country with at least one registered AS
// in the loaded DB, sorted by AS count descending then by country code.
func (db *DB) CountriesByASCount() []CountryCount {
	out := make([]CountryCount, 0, len(db.countries))
	for country, ases := range db.countries {
		out = append(out, CountryCount{Country: country, Count: len(ases)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	return out
}
