package filter

import (
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
)

// FilterFile is the JSON shape a -filter config file is unmarshaled into:
// one slice of monitored prefixes and four AS-position slices, combined
// into a Filter slice by getFilters.
type FilterFile struct {
	MonitoredPrefixes []string
	SourceASes        []uint32
	DestASes          []uint32
	MidPathASes       []uint32
	AnywhereASes      []uint32
}

func (f FilterFile) getFilters() ([]Filter, error) {
	var ret []Filter
	if len(f.MonitoredPrefixes) > 0 {
		fil, err := NewPrefixFilterFromSlice(f.MonitoredPrefixes, AdvPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "can not create prefix filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.SourceASes) > 0 {
		fil, err := NewASFilterFromSlice(f.SourceASes, ASSource)
		if err != nil {
			return nil, errors.Wrap(err, "can not create source AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.DestASes) > 0 {
		fil, err := NewASFilterFromSlice(f.DestASes, ASDestination)
		if err != nil {
			return nil, errors.Wrap(err, "can not create destination AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.MidPathASes) > 0 {
		fil, err := NewASFilterFromSlice(f.MidPathASes, ASMidPath)
		if err != nil {
			return nil, errors.Wrap(err, "can not create midpath AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.AnywhereASes) > 0 {
		fil, err := NewASFilterFromSlice(f.AnywhereASes, ASAnywhere)
		if err != nil {
			return nil, errors.Wrap(err, "can not create anywhere AS filter from conf")
		}
		ret = append(ret, fil)
	}
	return ret, nil
}

// NewFiltersFromFile reads a JSON filter configuration from path and builds
// the Filter slice it describes, the on-disk counterpart to the individual
// -src/-dst/-prefix CLI flags.
func NewFiltersFromFile(path string) ([]Filter, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading filter config")
	}
	var ff FilterFile
	if err := json.Unmarshal(contents, &ff); err != nil {
		return nil, errors.Wrap(err, "unmarshaling filter config")
	}
	return ff.getFilters()
}
