package dataset

import (
	"sort"

	"github.com/wonny/qolindex/internal/contracts"
)

// Dataset is the loaded artifact. It is never modified after loading, so it
// can be shared by concurrent requests.
type Dataset struct {
	records   []*contracts.CountryYearRecord
	byCountry map[string][]*contracts.CountryYearRecord
	countries []string
	years     []int
}

// New builds a Dataset from records. The records are copied.
func New(records []*contracts.CountryYearRecord) *Dataset {
	copied := make([]*contracts.CountryYearRecord, len(records))
	for i, r := range records {
		copied[i] = r.Clone()
	}
	return newDataset(copied)
}

func newDataset(records []*contracts.CountryYearRecord) *Dataset {
	ds := &Dataset{
		records:   records,
		byCountry: make(map[string][]*contracts.CountryYearRecord),
	}

	yearSet := make(map[int]bool)
	for _, r := range records {
		if _, ok := ds.byCountry[r.Country]; !ok {
			ds.countries = append(ds.countries, r.Country)
		}
		ds.byCountry[r.Country] = append(ds.byCountry[r.Country], r)
		if !yearSet[r.Year] {
			yearSet[r.Year] = true
			ds.years = append(ds.years, r.Year)
		}
	}

	sort.Strings(ds.countries)
	sort.Ints(ds.years)
	for _, rs := range ds.byCountry {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Year < rs[j].Year })
	}

	return ds
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns deep copies of every record, in file order
func (d *Dataset) Records() []*contracts.CountryYearRecord {
	out := make([]*contracts.CountryYearRecord, len(d.records))
	for i, r := range d.records {
		out[i] = r.Clone()
	}
	return out
}

// Countries returns the distinct countries, sorted
func (d *Dataset) Countries() []string {
	return append([]string(nil), d.countries...)
}

// Years returns the distinct years, ascending
func (d *Dataset) Years() []int {
	return append([]int(nil), d.years...)
}

// HasCountry reports whether country has at least one record
func (d *Dataset) HasCountry(country string) bool {
	_, ok := d.byCountry[country]
	return ok
}

// Country returns deep copies of one country's records, ascending by year
func (d *Dataset) Country(country string) []*contracts.CountryYearRecord {
	rs := d.byCountry[country]
	out := make([]*contracts.CountryYearRecord, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Metrics returns the metrics with at least one non-null value, in
// contracts.AllMetrics order
func (d *Dataset) Metrics() []contracts.Metric {
	var out []contracts.Metric
	for _, m := range contracts.AllMetrics {
		for _, r := range d.records {
			if r.Value(m) != nil {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
