package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/qolindex/internal/collector"
	"github.com/wonny/qolindex/internal/dataset"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/normalize"
	"github.com/wonny/qolindex/pkg/httputil"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch the yearly rankings and write the dataset",
	Long: `Fetches one ranking page per year, extracts and normalizes the table
under the format revision of that year and writes the combined dataset once.

Years that fail to download are skipped and reported. A page whose table
cannot be found or understood stops the run and nothing is written.

Example:
  go run ./cmd/qol collect
  go run ./cmd/qol collect --from 2019 --to 2024 --throttle 5s
  go run ./cmd/qol collect --years 2012,2016-2018 --output /tmp/qol.csv
  go run ./cmd/qol collect --revision current --dry-run`,
	RunE: runCollect,
}

var (
	collectFrom        int
	collectTo          int
	collectYears       string
	collectRevision    string
	collectOutput      string
	collectThrottle    time.Duration
	collectDryRun      bool
	collectSkipMissing bool
)

// rejected rows printed before truncating
const maxRejectedShown = 20

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().IntVar(&collectFrom, "from", 0, "first year (default INGEST_START_YEAR)")
	collectCmd.Flags().IntVar(&collectTo, "to", 0, "last year (default INGEST_END_YEAR)")
	collectCmd.Flags().StringVar(&collectYears, "years", "", "explicit years, e.g. 2012,2016-2018 (overrides --from/--to)")
	collectCmd.Flags().StringVar(&collectRevision, "revision", "", "format revision name or auto (default INGEST_REVISION)")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "dataset path (default INGEST_OUTPUT_PATH)")
	collectCmd.Flags().DurationVar(&collectThrottle, "throttle", -1, "pause between years (default INGEST_THROTTLE)")
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "collect and report without writing")
	collectCmd.Flags().BoolVar(&collectSkipMissing, "skip-missing-tables", false, "skip years whose page has no ranking table instead of aborting")
}

func runCollect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// 1. Load config and apply flags
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if collectFrom != 0 {
		cfg.Ingest.StartYear = collectFrom
	}
	if collectTo != 0 {
		cfg.Ingest.EndYear = collectTo
	}
	if collectRevision != "" {
		cfg.Ingest.Revision = collectRevision
	}
	if collectOutput != "" {
		cfg.Ingest.OutputPath = collectOutput
	}
	if collectThrottle >= 0 {
		cfg.Ingest.Throttle = collectThrottle
	}

	years := cfg.Years()
	if collectYears != "" {
		if years, err = parseYears(collectYears); err != nil {
			return err
		}
	}
	if len(years) == 0 {
		return fmt.Errorf("empty year range %d-%d", cfg.Ingest.StartYear, cfg.Ingest.EndYear)
	}

	// 2. Resolve the revision schedule
	schedule, err := normalize.ScheduleFor(cfg.Ingest.Revision)
	if err != nil {
		return err
	}

	// 3. Wire the pipeline
	httpClient := httputil.New(cfg, log)
	fetcher := numbeo.NewClient(httpClient, cfg.Numbeo.BaseURL, log)

	var writer collector.DatasetWriter
	if !collectDryRun {
		writer = dataset.NewCSVWriter(cfg.Ingest.OutputPath)
	}

	policy := collector.DefaultPolicy()
	policy.Throttle = cfg.Ingest.Throttle
	if collectSkipMissing {
		policy.Classify = collector.SkipMissingTables
	}

	col := collector.NewCollector(fetcher, writer, schedule, policy, log)

	PrintHeader(out, "Quality of Life Collection", [][2]string{
		{"Years", formatYears(years)},
		{"Revision", cfg.Ingest.Revision},
		{"Source", cfg.Numbeo.BaseURL},
		{"Output", outputLabel(cfg.Ingest.OutputPath, collectDryRun)},
		{"Throttle", cfg.Ingest.Throttle.String()},
	})

	// 4. Run until done or interrupted
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := col.Run(ctx, years)
	if summary != nil {
		printSummary(out, summary, cfg.Ingest.OutputPath)
	}

	if runErr != nil {
		switch {
		case errors.Is(runErr, collector.ErrEmptyDataset):
			PrintError(out, "No records collected, dataset left untouched")
		default:
			PrintError(out, fmt.Sprintf("Collection aborted: %v", runErr))
		}
		return runErr
	}
	return nil
}

func printSummary(w io.Writer, s *collector.Summary, path string) {
	fmt.Fprintln(w)

	t := NewTable(w)
	t.SetTitle("Years")
	t.AppendHeader(table.Row{"Year", "Revision", "Records", "Rejected", "Status"})

	type line struct {
		year int
		row  table.Row
	}
	lines := make([]line, 0, len(s.Years)+len(s.Skipped))
	for _, y := range s.Years {
		lines = append(lines, line{y.Year, table.Row{y.Year, y.Revision, humanize.Comma(int64(y.Records)), y.Rejected, "ok"}})
	}
	for _, f := range s.Skipped {
		lines = append(lines, line{f.Year, table.Row{f.Year, "", 0, 0, fmt.Sprintf("skipped (%s): %v", f.Stage, f.Err)}})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].year < lines[j].year })
	for _, l := range lines {
		t.AppendRow(l.row)
	}
	t.AppendFooter(table.Row{"Total", "", humanize.Comma(int64(len(s.Records))), len(s.Rejected), ""})
	t.Render()

	if len(s.Rejected) > 0 {
		fmt.Fprintln(w)
		rt := NewTable(w)
		rt.SetTitle("Rejected rows")
		rt.AppendHeader(table.Row{"Year", "Row", "Column", "Value", "Reason"})
		for i, r := range s.Rejected {
			if i == maxRejectedShown {
				rt.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("... %d more", len(s.Rejected)-maxRejectedShown)})
				break
			}
			rt.AppendRow(table.Row{r.Year, r.RowIndex, r.Column, r.Value, r.Err})
		}
		rt.Render()
	}

	fmt.Fprintln(w)
	if s.Written {
		size := "unknown size"
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		PrintSuccess(w, fmt.Sprintf("Wrote %s records to %s (%s) in %s",
			humanize.Comma(int64(len(s.Records))), path, size, s.Duration.Round(time.Millisecond)))
	} else if len(s.Records) > 0 {
		PrintInfo(w, fmt.Sprintf("Collected %s records, nothing written", humanize.Comma(int64(len(s.Records)))))
	}
	if len(s.Skipped) > 0 {
		PrintWarning(w, fmt.Sprintf("%d year(s) skipped", len(s.Skipped)))
	}
}

// parseYears accepts a comma separated list of years and inclusive ranges
func parseYears(list string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(to)); err != nil {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
		}
		if end < start {
			return nil, fmt.Errorf("year range %q is reversed", part)
		}
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years in %q", list)
	}
	return years, nil
}

func formatYears(years []int) string {
	if len(years) == 1 {
		return strconv.Itoa(years[0])
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	return fmt.Sprintf("%d-%d (%d years)", sorted[0], sorted[len(sorted)-1], len(sorted))
}

func outputLabel(path string, dryRun bool) string {
	if dryRun {
		return "(dry run)"
	}
	return path
}
