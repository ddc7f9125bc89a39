package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/dataset"
	"github.com/wonny/qolindex/internal/ranking"
)

var (
	// ErrUnknownCountry means a selected country has no record
	ErrUnknownCountry = errors.New("unknown country")
	// ErrUnknownMetric means the selected metric is not a dataset column
	ErrUnknownMetric = errors.New("unknown metric")
)

// Selection is what the user picked. It travels with every request; nothing
// about it is remembered between requests.
type Selection struct {
	Countries     []string         `json:"countries"`
	Metric        contracts.Metric `json:"metric"`
	RecomputeRank bool             `json:"recompute_rank"`
}

// DefaultSelection is the initial dashboard state
func DefaultSelection() Selection {
	return Selection{
		Countries:     []string{"United States"},
		Metric:        contracts.MetricPurchasingPower,
		RecomputeRank: true,
	}
}

// Point is one (year, value) of a series
type Point struct {
	Year  int      `json:"year"`
	Value *float64 `json:"value"`
	Rank  *int     `json:"rank"`
	Hover string   `json:"hover"`
}

// Series is the line of one country
type Series struct {
	Country string  `json:"country"`
	Points  []Point `json:"points"`
}

// Chart is a rendering-agnostic line chart description
type Chart struct {
	Title  string           `json:"title"`
	Metric contracts.Metric `json:"metric"`
	XLabel string           `json:"x_label"`
	YLabel string           `json:"y_label"`
	Series []Series         `json:"series"`
}

// BuildChart describes the chart for sel. It never modifies ds.
// With RecomputeRank, ranks are recomputed per year over every country for
// sel.Metric before filtering, so a rank always refers to the charted metric.
// ⭐ SSOT: selection → chart happens here only
func BuildChart(ds *dataset.Dataset, sel Selection) (*Chart, error) {
	if !sel.Metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, sel.Metric)
	}

	chart := &Chart{
		Metric: sel.Metric,
		Series: []Series{},
	}
	if len(sel.Countries) == 0 {
		return chart, nil
	}

	selected := make(map[string]bool, len(sel.Countries))
	for _, c := range sel.Countries {
		if !ds.HasCountry(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, c)
		}
		selected[c] = true
	}

	label := sel.Metric.Label()
	chart.Title = label + " Over Time"
	chart.XLabel = "Year"
	chart.YLabel = label

	// 1. Rank against the charted metric
	records := ds.Records()
	if sel.RecomputeRank {
		if err := ranking.ApplyByYear(records, sel.Metric); err != nil {
			return nil, err
		}
	}

	// 2. Filter
	rows := records[:0]
	for _, r := range records {
		if selected[r.Country] {
			rows = append(rows, r)
		}
	}

	// 3. Year, then rank (unranked last)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		switch {
		case a.Rank == nil && b.Rank == nil:
			return false
		case a.Rank == nil:
			return false
		case b.Rank == nil:
			return true
		}
		return *a.Rank < *b.Rank
	})

	// 4. One series per country, in order of first appearance
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Country]
		if !ok {
			i = len(chart.Series)
			index[r.Country] = i
			chart.Series = append(chart.Series, Series{Country: r.Country})
		}

		v := r.Value(sel.Metric)
		chart.Series[i].Points = append(chart.Series[i].Points, Point{
			Year:  r.Year,
			Value: v,
			Rank:  r.Rank,
			Hover: hoverText(r.Year, label, v, r.Rank),
		})
	}

	return chart, nil
}

func hoverText(year int, label string, v *float64, rank *int) string {
	value, rankText := "n/a", "n/a"
	if v != nil {
		value = strconv.FormatFloat(*v, 'f', 2, 64)
	}
	if rank != nil {
		rankText = strconv.Itoa(*rank)
	}
	return fmt.Sprintf("Year: %d<br>%s: %s<br>Rank: %s", year, label, value, rankText)
}
