package asinfo

import (
	"strings"
	"testing"
)

const sample = `# format:org_id|changed|org_name|country|source
@aut-0|20120101|Example Org One|US|ARIN
@aut-1|20120101|Example Org Two|IN|APNIC
# format:aut|changed|aut_name|org_id|source
100|20120101|AS-ONE|@aut-0|ARIN
200|20120101|AS-TWO|@aut-1|APNIC
201|20120101|AS-TWO-B|@aut-1|APNIC
`

func TestLoadBasic(t *testing.T) {
	db, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	info, ok := db.Lookup(100)
	if !ok {
		t.Fatalf("expected AS 100 to be known")
	}
	if info.Country != "US" || info.Org != "@aut-0" {
		t.Errorf("AS 100 info = %+v", info)
	}

	country, ok := db.CountryOf(200)
	if !ok || country != "IN" {
		t.Errorf("CountryOf(200) = %q,%v want IN,true", country, ok)
	}

	in := db.ASesForCountry("IN")
	if len(in) != 2 {
		t.Fatalf("ASesForCountry(IN) = %v, want 2 entries", in)
	}
	if db.Skipped() != 0 {
		t.Errorf("Skipped() = %d for a well-formed file", db.Skipped())
	}
}

func TestCountriesByASCount(t *testing.T) {
	db, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	counts := db.CountriesByASCount()
	if len(counts) != 2 {
		t.Fatalf("counts = %+v, want 2 countries", counts)
	}
	if counts[0].Country != "IN" || counts[0].Count != 2 {
		t.Errorf("top country = %+v, want IN with 2", counts[0])
	}
	if counts[1].Country != "US" || counts[1].Count != 1 {
		t.Errorf("second country = %+v, want US with 1", counts[1])
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	bad := `# format:org_id|changed|org_name|country|source
@aut-0|20120101|Example Org|US|ARIN
not|enough|fields
# format:aut|changed|aut_name|org_id|source
100|20120101|AS-ONE|@aut-0|ARIN
garbage-line-with-no-pipes
notanumber|20120101|AS-BAD|@aut-0|ARIN
`
	db, err := Load(strings.NewReader(bad))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := db.Lookup(100); !ok {
		t.Errorf("expected AS 100 to still load despite malformed neighbor lines")
	}
	if len(db.ases) != 1 {
		t.Errorf("ases = %+v, want exactly 1 well-formed entry", db.ases)
	}
	if db.Skipped() != 3 {
		t.Errorf("Skipped() = %d, want 3 malformed rows counted", db.Skipped())
	}
}

func TestLookupUnknown(t *testing.T) {
	db, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := db.Lookup(999999); ok {
		t.Errorf("expected AS 999999 to be unknown")
	}
}
