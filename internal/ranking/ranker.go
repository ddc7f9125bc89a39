package ranking

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wonny/qolindex/internal/contracts"
)

// ErrUnknownDirection is returned for a metric missing from the direction table
var ErrUnknownDirection = errors.New("metric has no rank direction")

// Rank assigns min-tie-break ranks to values.
// Equal values share the lowest rank of their tie group and the next distinct
// value resumes at tied_rank + tie_size (1, 1, 3). Nil values get a nil rank
// and do not take a position.
// ⭐ SSOT: rank arithmetic lives here only
func Rank(values []*float64, dir contracts.Direction) []*int {
	ranks := make([]*int, len(values))

	idx := make([]int, 0, len(values))
	for i, v := range values {
		if v != nil {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := *values[idx[a]], *values[idx[b]]
		if dir == contracts.LowerIsBetter {
			return va < vb
		}
		return va > vb
	})

	for pos, i := range idx {
		if pos > 0 && *values[i] == *values[idx[pos-1]] {
			ranks[i] = contracts.Int(*ranks[idx[pos-1]])
			continue
		}
		ranks[i] = contracts.Int(pos + 1)
	}

	return ranks
}

// Validate checks that metric can be ranked
func Validate(metric contracts.Metric) error {
	if _, ok := contracts.DirectionOf(metric); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, metric)
	}
	return nil
}

// ApplyByYear recomputes Rank in place for every record, grouping by year and
// ranking by metric. Any previous rank is overwritten: a rank always refers to
// the last metric it was computed against.
func ApplyByYear(records []*contracts.CountryYearRecord, metric contracts.Metric) error {
	dir, ok := contracts.DirectionOf(metric)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, metric)
	}

	byYear := make(map[int][]*contracts.CountryYearRecord)
	years := make([]int, 0)
	for _, r := range records {
		if _, seen := byYear[r.Year]; !seen {
			years = append(years, r.Year)
		}
		byYear[r.Year] = append(byYear[r.Year], r)
	}

	for _, year := range years {
		group := byYear[year]
		values := make([]*float64, len(group))
		for i, r := range group {
			values[i] = r.Value(metric)
		}

		for i, rank := range Rank(values, dir) {
			group[i].Rank = rank
		}
	}

	return nil
}

// Positional assigns 1-based ranks in slice order
func Positional(records []*contracts.CountryYearRecord) {
	for i, r := range records {
		r.Rank = contracts.Int(i + 1)
	}
}
