package filters

import "slices"

// Record exposes the coded value of a field, as found in inventory rows.
type Record interface {
	Code(field string) (string, bool)
}

// Tally is the cross-filter summary of a record set.
type Tally struct {
	// Total counts records matching every active dimension.
	Total int `json:"total"`
	// Counts maps dimension -> code -> records matching all other active dimensions.
	Counts map[string]map[string]int `json:"counts"`
}

// Summarize counts records per domain code for each dimension, applying every
// active constraint except the dimension's own. Codes outside the domain are ignored.
func Summarize[R Record](dims []Dimension, records []R, set Set) Tally {
	t := Tally{Counts: make(map[string]map[string]int, len(dims))}
	for _, d := range dims {
		t.Counts[d.Name] = make(map[string]int, len(d.Domain))
		for _, v := range d.Domain {
			t.Counts[d.Name][v.Code] = 0
		}
	}

	active := set.Active()
	fields := make(map[string]string, len(dims))
	for _, d := range dims {
		fields[d.Name] = d.Field
	}

	for _, r := range records {
		failed := -1
		nfailed := 0
		for i, e := range active {
			field, ok := fields[e.Dimension]
			if !ok {
				field = e.Dimension
			}
			code, _ := r.Code(field)
			if !slices.Contains(e.Values, code) {
				nfailed++
				failed = i
			}
		}
		if nfailed == 0 {
			t.Total++
		}
		if nfailed > 1 {
			continue
		}
		for _, d := range dims {
			// a record failing exactly one dimension still counts toward that dimension
			if nfailed == 1 && active[failed].Dimension != d.Name {
				continue
			}
			code, ok := r.Code(d.Field)
			if !ok {
				continue
			}
			if _, inDomain := t.Counts[d.Name][code]; inDomain {
				t.Counts[d.Name][code]++
			}
		}
	}
	return t
}
