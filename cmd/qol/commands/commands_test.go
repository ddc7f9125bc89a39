package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qolindex/internal/collector"
	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/dashboard"
	"github.com/wonny/qolindex/internal/dataset"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/normalize"
)

func TestParseYears(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{input: "2020", want: []int{2020}},
		{input: "2012,2016-2018", want: []int{2012, 2016, 2017, 2018}},
		{input: " 2019 , 2021 ", want: []int{2019, 2021}},
		{input: "2018-2018", want: []int{2018}},
		{input: "2020-2018", wantErr: true},
		{input: "twenty", wantErr: true},
		{input: "2019-", wantErr: true},
		{input: ",", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseYears(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatYears(t *testing.T) {
	assert.Equal(t, "2024", formatYears([]int{2024}))
	assert.Equal(t, "2012-2024 (3 years)", formatYears([]int{2024, 2012, 2020}))
}

func TestPrintRevisions(t *testing.T) {
	var buf bytes.Buffer
	printRevisions(&buf)

	out := buf.String()
	for _, want := range []string{"legacy", "labeled", "current", "fixed order (9)", "labels v3", "computed (quality_of_life_index)", "sourced", "earliest", "2015", "2020"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qol.csv")
	records := []*contracts.CountryYearRecord{
		{Country: "Luxembourg", Year: 2024, QualityOfLife: contracts.Float(220.1), Rank: contracts.Int(1)},
	}
	require.NoError(t, dataset.NewCSVWriter(path).Write(records))

	summary := &collector.Summary{
		Years:   []collector.YearReport{{Year: 2024, Revision: "current", Records: 1, Rejected: 1}},
		Records: records,
		Skipped: []collector.YearFailure{{
			Year: 2023, Stage: collector.StageFetch,
			Err: &numbeo.StatusError{Year: 2023, StatusCode: 404},
		}},
		Rejected: []*normalize.RowError{{
			Year: 2024, RowIndex: 4, Column: "safety_index", Value: "abc", Err: normalize.ErrNotNumeric,
		}},
		Written:  true,
		Duration: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printSummary(&buf, summary, path)
	out := buf.String()

	assert.Contains(t, out, "skipped (fetch)")
	assert.Contains(t, out, "404")
	assert.Contains(t, out, "safety_index")
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "Wrote 1 records to "+path)
	assert.Contains(t, out, "1 year(s) skipped")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPrintSummary_DryRun(t *testing.T) {
	summary := &collector.Summary{
		Years:   []collector.YearReport{{Year: 2024, Revision: "current", Records: 2}},
		Records: []*contracts.CountryYearRecord{{Country: "A", Year: 2024}, {Country: "B", Year: 2024}},
	}

	var buf bytes.Buffer
	printSummary(&buf, summary, "unused.csv")
	assert.Contains(t, buf.String(), "Collected 2 records, nothing written")
}

func TestRenderChart(t *testing.T) {
	ds := dataset.New([]*contracts.CountryYearRecord{
		{Country: "Japan", Year: 2023, Safety: contracts.Float(77.25)},
		{Country: "Japan", Year: 2024, Safety: nil},
	})
	chart, err := dashboard.BuildChart(ds, dashboard.Selection{
		Countries:     []string{"Japan"},
		Metric:        contracts.MetricSafety,
		RecomputeRank: true,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	renderChart(&buf, chart)
	out := buf.String()

	assert.Contains(t, strings.ToUpper(out), "SAFETY INDEX OVER TIME")
	assert.Contains(t, out, "77.25")
	assert.Contains(t, out, "n/a")
}

func TestRenderChart_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderChart(&buf, &dashboard.Chart{})
	assert.Contains(t, buf.String(), "No country selected")
}

func TestOutputLabel(t *testing.T) {
	assert.Equal(t, "(dry run)", outputLabel("x.csv", true))
	assert.Equal(t, "x.csv", outputLabel("x.csv", false))
}
