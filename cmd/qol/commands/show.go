package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/dashboard"
	"github.com/wonny/qolindex/internal/dataset"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the chart series of a selection",
	Long: `Loads the dataset and prints, per country, one metric over time with
the rank of each year.

Example:
  go run ./cmd/qol show
  go run ./cmd/qol show --country Japan --country "South Korea" --metric "Safety Index"
  go run ./cmd/qol show --metric pollution_index --recompute-rank=false`,
	RunE: runShow,
}

var (
	showInput     string
	showCountries []string
	showMetric    string
	showRecompute bool
)

func init() {
	rootCmd.AddCommand(showCmd)

	def := dashboard.DefaultSelection()
	showCmd.Flags().StringVarP(&showInput, "input", "i", "", "dataset path (default INGEST_OUTPUT_PATH)")
	showCmd.Flags().StringArrayVarP(&showCountries, "country", "c", def.Countries, "country to chart (repeatable)")
	showCmd.Flags().StringVarP(&showMetric, "metric", "m", def.Metric.Label(), "metric key or label")
	showCmd.Flags().BoolVar(&showRecompute, "recompute-rank", def.RecomputeRank, "rank every year by the charted metric")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	path := cfg.Ingest.OutputPath
	if showInput != "" {
		path = showInput
	}

	metric, err := contracts.ParseMetric(showMetric)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("load dataset (run \"qol collect\" first?): %w", err)
	}

	chart, err := dashboard.BuildChart(ds, dashboard.Selection{
		Countries:     showCountries,
		Metric:        metric,
		RecomputeRank: showRecompute,
	})
	if err != nil {
		return err
	}

	renderChart(cmd.OutOrStdout(), chart)
	return nil
}

func renderChart(w io.Writer, chart *dashboard.Chart) {
	if len(chart.Series) == 0 {
		PrintInfo(w, "No country selected")
		return
	}

	t := NewTable(w)
	t.SetTitle(chart.Title)
	t.AppendHeader(table.Row{"Country", chart.XLabel, chart.YLabel, "Rank"})
	for _, s := range chart.Series {
		for _, p := range s.Points {
			t.AppendRow(table.Row{s.Country, p.Year, formatValue(p.Value), formatRank(p.Rank)})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func formatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatRank(r *int) string {
	if r == nil {
		return "n/a"
	}
	return strconv.Itoa(*r)
}
