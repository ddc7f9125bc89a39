package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/ranking"
)

// Field is a target slot of CountryYearRecord
type Field string

const (
	FieldCountry Field = "country"
	FieldRank    Field = "rank"
)

// MetricField returns the field that stores metric m
func MetricField(m contracts.Metric) Field {
	return Field(m)
}

// Metric reports which metric f stores, if any
func (f Field) Metric() (contracts.Metric, bool) {
	m := contracts.Metric(f)
	return m, m.Valid()
}

// RankMode selects where a record's rank comes from
type RankMode string

const (
	// RankSourced uses the 1-based position in the source table,
	// which the site already sorts by its default metric
	RankSourced RankMode = "sourced"
	// RankComputed ranks each year locally by RankMetric
	RankComputed RankMode = "computed"
)

// Sentinels are the two placeholder tokens a source cell may hold instead
// of a number
type Sentinels struct {
	NotAvailable string // becomes null
	NoData       string // becomes 0
}

// DefaultSentinels are the placeholders used by every known revision
var DefaultSentinels = Sentinels{NotAvailable: "N/A", NoData: "-"}

// LabelTable maps source header labels onto fields
type LabelTable struct {
	Version string
	Labels  map[string]Field
}

// Lookup matches label case-insensitively with collapsed whitespace
func (t LabelTable) Lookup(label string) (Field, bool) {
	key := canonicalLabel(label)
	for l, f := range t.Labels {
		if canonicalLabel(l) == key {
			return f, true
		}
	}
	return "", false
}

func canonicalLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FormatRevision describes one historical version of the ranking table:
// where it is, how rows are shaped, how columns map onto fields, which
// placeholders it uses and how rank is obtained.
// ⭐ SSOT: every per-revision difference is declared here
type FormatRevision struct {
	Name        string
	Description string

	Selector string
	Layout   numbeo.Layout

	// Labels is used when the header is trustworthy
	Labels *LabelTable
	// FixedOrder, when set, wins over Labels: the header is ignored and cells
	// are read positionally
	FixedOrder []Field

	RankMode   RankMode
	RankMetric contracts.Metric // RankComputed only

	Sentinels Sentinels
}

// ExtractOptions returns the extractor settings of the revision
func (r FormatRevision) ExtractOptions() numbeo.ExtractOptions {
	return numbeo.ExtractOptions{Selector: r.Selector, Layout: r.Layout}
}

// Validate checks the revision before any page is fetched
func Validate(r FormatRevision) error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRevision)
	}

	switch {
	case len(r.FixedOrder) > 0:
		if countField(r.FixedOrder, FieldCountry) != 1 {
			return fmt.Errorf("%w: %s: fixed order must contain the country column exactly once", ErrInvalidRevision, r.Name)
		}
	case r.Labels != nil:
		found := false
		for _, f := range r.Labels.Labels {
			if f == FieldCountry {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: %s: label table %s has no country label", ErrInvalidRevision, r.Name, r.Labels.Version)
		}
	default:
		return fmt.Errorf("%w: %s: neither labels nor fixed order", ErrInvalidRevision, r.Name)
	}

	switch r.RankMode {
	case RankSourced:
	case RankComputed:
		if err := ranking.Validate(r.RankMetric); err != nil {
			return fmt.Errorf("revision %s: %w", r.Name, err)
		}
	default:
		return fmt.Errorf("%w: %s: rank mode %q", ErrInvalidRevision, r.Name, r.RankMode)
	}

	s := r.Sentinels
	if s.NotAvailable == "" || s.NoData == "" || s.NotAvailable == s.NoData {
		return fmt.Errorf("%w: %s: sentinels must be two distinct non-empty tokens", ErrInvalidRevision, r.Name)
	}

	return nil
}

func countField(fields []Field, want Field) int {
	n := 0
	for _, f := range fields {
		if f == want {
			n++
		}
	}
	return n
}

// LabelsV2 is the label set of the 2015-2019 pages
var LabelsV2 = LabelTable{
	Version: "v2",
	Labels: map[string]Field{
		"Country":                        FieldCountry,
		"Quality of Life Index":          MetricField(contracts.MetricQualityOfLife),
		"Purchasing Power Index":         MetricField(contracts.MetricPurchasingPower),
		"Safety Index":                   MetricField(contracts.MetricSafety),
		"Health Care Index":              MetricField(contracts.MetricHealthCare),
		"Cost of Living Index":           MetricField(contracts.MetricCostOfLiving),
		"Property Price to Income Ratio": MetricField(contracts.MetricPropertyPriceToIncome),
		"Traffic Commute Time Index":     MetricField(contracts.MetricTrafficCommuteTime),
		"Pollution Index":                MetricField(contracts.MetricPollution),
		"Climate Index":                  MetricField(contracts.MetricClimate),
	},
}

// LabelsV3 is the label set of the 2020+ pages, which carry a Rank column
var LabelsV3 = LabelTable{
	Version: "v3",
	Labels:  withLabel(LabelsV2.Labels, "Rank", FieldRank),
}

func withLabel(base map[string]Field, label string, f Field) map[string]Field {
	out := make(map[string]Field, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[label] = f
	return out
}

// Built-in revisions
var (
	// RevisionLegacy: no rank column, and labels that were later renamed
	// ("Consumer Price Index" held what is now the cost of living index),
	// so columns are read by position. No climate index yet.
	RevisionLegacy = FormatRevision{
		Name:        "legacy",
		Description: "2012-2014: country-first rows, fixed column order, rank computed from the quality of life index",
		Selector:    numbeo.DefaultSelector,
		Layout:      numbeo.LayoutCountryFirst,
		FixedOrder: []Field{
			FieldCountry,
			MetricField(contracts.MetricQualityOfLife),
			MetricField(contracts.MetricPurchasingPower),
			MetricField(contracts.MetricSafety),
			MetricField(contracts.MetricHealthCare),
			MetricField(contracts.MetricCostOfLiving),
			MetricField(contracts.MetricPropertyPriceToIncome),
			MetricField(contracts.MetricTrafficCommuteTime),
			MetricField(contracts.MetricPollution),
		},
		RankMode:   RankComputed,
		RankMetric: contracts.MetricQualityOfLife,
		Sentinels:  DefaultSentinels,
	}

	RevisionLabeled = FormatRevision{
		Name:        "labeled",
		Description: "2015-2019: leading rank cell, v2 label table, rank computed from the quality of life index",
		Selector:    numbeo.DefaultSelector,
		Layout:      numbeo.LayoutRankColumn,
		Labels:      &LabelsV2,
		RankMode:    RankComputed,
		RankMetric:  contracts.MetricQualityOfLife,
		Sentinels:   DefaultSentinels,
	}

	RevisionCurrent = FormatRevision{
		Name:        "current",
		Description: "2020+: leading rank cell, v3 label table, rank is the position in the table",
		Selector:    numbeo.DefaultSelector,
		Layout:      numbeo.LayoutRankColumn,
		Labels:      &LabelsV3,
		RankMode:    RankSourced,
		Sentinels:   DefaultSentinels,
	}
)

// Revisions is the registry of built-in revisions by name
var Revisions = map[string]FormatRevision{
	RevisionLegacy.Name:  RevisionLegacy,
	RevisionLabeled.Name: RevisionLabeled,
	RevisionCurrent.Name: RevisionCurrent,
}

// LookupRevision returns a built-in revision by name
func LookupRevision(name string) (FormatRevision, error) {
	rev, ok := Revisions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FormatRevision{}, fmt.Errorf("%w: %q", ErrUnknownRevision, name)
	}
	return rev, nil
}

// ScheduleEntry applies Revision from FromYear on
type ScheduleEntry struct {
	FromYear int
	Revision FormatRevision
}

// Schedule declares which revision governs which year
type Schedule []ScheduleEntry

// AutoRevision is the revision name that selects DefaultSchedule
const AutoRevision = "auto"

// DefaultSchedule maps years to the built-in revisions
func DefaultSchedule() Schedule {
	return Schedule{
		{FromYear: 0, Revision: RevisionLegacy},
		{FromYear: 2015, Revision: RevisionLabeled},
		{FromYear: 2020, Revision: RevisionCurrent},
	}
}

// SingleRevision applies rev to every year
func SingleRevision(rev FormatRevision) Schedule {
	return Schedule{{FromYear: 0, Revision: rev}}
}

// ScheduleFor resolves a revision name; AutoRevision gives DefaultSchedule
func ScheduleFor(name string) (Schedule, error) {
	if strings.EqualFold(strings.TrimSpace(name), AutoRevision) {
		return DefaultSchedule(), nil
	}
	rev, err := LookupRevision(name)
	if err != nil {
		return nil, err
	}
	return SingleRevision(rev), nil
}

// For returns the revision governing year
func (s Schedule) For(year int) FormatRevision {
	entries := s.sorted()
	rev := entries[0].Revision
	for _, e := range entries {
		if e.FromYear <= year {
			rev = e.Revision
		}
	}
	return rev
}

// Validate checks every revision of the schedule
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty schedule", ErrInvalidRevision)
	}
	for _, e := range s {
		if err := Validate(e.Revision); err != nil {
			return err
		}
	}
	return nil
}

func (s Schedule) sorted() Schedule {
	out := make(Schedule, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FromYear < out[j].FromYear })
	return out
}
