package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/normalize"
	"github.com/wonny/qolindex/pkg/logger"
)

var (
	// ErrEmptyDataset means no year produced a record; nothing is written
	ErrEmptyDataset = errors.New("no records collected")
	// ErrNoYears means the requested range is empty
	ErrNoYears = errors.New("no years requested")
)

// PageFetcher retrieves the ranking document of one year
type PageFetcher interface {
	FetchRankingPage(ctx context.Context, year int) ([]byte, error)
}

// DatasetWriter persists the complete dataset in one operation
type DatasetWriter interface {
	Write(records []*contracts.CountryYearRecord) error
}

// Stage names where a year failed
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
)

// YearFailure records a skipped (or aborting) year
type YearFailure struct {
	Year     int
	Stage    Stage
	Severity Severity
	Err      error
}

func (f YearFailure) Error() string {
	return fmt.Sprintf("year %d %s: %v", f.Year, f.Stage, f.Err)
}

func (f YearFailure) Unwrap() error {
	return f.Err
}

// YearReport is the outcome of one collected year
type YearReport struct {
	Year     int
	Revision string
	Records  int
	Rejected int
}

// Summary describes a run
type Summary struct {
	Years    []YearReport
	Records  []*contracts.CountryYearRecord
	Skipped  []YearFailure
	Rejected []*normalize.RowError
	Written  bool
	Duration time.Duration
}

// Collector fetches, extracts and normalizes a range of years and writes the
// combined dataset once at the end
// ⭐ SSOT: year iteration and failure policy live here only
type Collector struct {
	fetcher  PageFetcher
	writer   DatasetWriter
	schedule normalize.Schedule
	policy   Policy
	logger   *logger.Logger
	base     *logger.Logger
	now      func() time.Time
}

// NewCollector creates a Collector. A nil writer runs without persisting.
func NewCollector(
	fetcher PageFetcher,
	writer DatasetWriter,
	schedule normalize.Schedule,
	policy Policy,
	log *logger.Logger,
) *Collector {
	if policy.Classify == nil {
		policy.Classify = DefaultClassify
	}
	return &Collector{
		fetcher:  fetcher,
		writer:   writer,
		schedule: schedule,
		policy:   policy,
		logger:   log.Module("collector"),
		base:     log,
		now:      time.Now,
	}
}

// WithClock overrides the clock that stamps report_date
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Run processes years in the given order, each year once. Recoverable year failures are
// recorded in the Summary and skipped; a structural failure stops the run
// before anything is written.
func (c *Collector) Run(ctx context.Context, years []int) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	// 1. Fail fast on configuration
	years = unique(years)
	if len(years) == 0 {
		return summary, ErrNoYears
	}
	normalizers, err := c.normalizers(years)
	if err != nil {
		return summary, fmt.Errorf("validate revisions: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"first":    years[0],
		"last":     years[len(years)-1],
		"years":    len(years),
		"throttle": c.policy.Throttle.String(),
	}).Info("Starting collection")

	// 2. Years, with a quiet interval after every fetch
	quiet := rate.NewLimiter(rate.Inf, 1)
	reportDate := reportDay(c.now())

	for _, year := range years {
		if err := quiet.Wait(ctx); err != nil {
			return c.finish(summary, start), fmt.Errorf("year %d: %w", year, err)
		}

		result, failure := c.collectYear(ctx, normalizers[year], year, reportDate)
		quiet = c.quietFrom(time.Now())
		if failure != nil {
			if ctx.Err() != nil {
				failure.Severity = SeverityAbort
			} else {
				failure.Severity = c.policy.Classify(failure.Err)
			}

			log := c.logger.WithFields(map[string]interface{}{
				"year":     year,
				"stage":    string(failure.Stage),
				"severity": failure.Severity.String(),
			}).WithError(failure.Err)

			if failure.Severity == SeverityAbort {
				log.Error("Structural failure, aborting run")
				return c.finish(summary, start), *failure
			}
			log.Warn("Skipping year")
			summary.Skipped = append(summary.Skipped, *failure)
			continue
		}

		summary.Years = append(summary.Years, YearReport{
			Year:     year,
			Revision: result.Revision,
			Records:  len(result.Records),
			Rejected: len(result.Rejected),
		})
		summary.Records = append(summary.Records, result.Records...)
		summary.Rejected = append(summary.Rejected, result.Rejected...)

		c.logger.WithFields(map[string]interface{}{
			"year":     year,
			"revision": result.Revision,
			"records":  len(result.Records),
			"rejected": len(result.Rejected),
		}).Info("Year collected")
	}

	// 3. Write once
	if len(summary.Records) == 0 {
		return c.finish(summary, start), ErrEmptyDataset
	}
	if c.writer != nil {
		if err := c.writer.Write(summary.Records); err != nil {
			return c.finish(summary, start), fmt.Errorf("write dataset: %w", err)
		}
		summary.Written = true
	}

	c.finish(summary, start)
	c.logger.WithFields(map[string]interface{}{
		"records":  len(summary.Records),
		"years":    len(summary.Years),
		"skipped":  len(summary.Skipped),
		"rejected": len(summary.Rejected),
		"duration": summary.Duration.String(),
	}).Info("Collection completed")

	return summary, nil
}

func (c *Collector) collectYear(ctx context.Context, n *normalize.Normalizer, year int, reportDate time.Time) (*normalize.Result, *YearFailure) {
	doc, err := c.fetcher.FetchRankingPage(ctx, year)
	if err != nil {
		return nil, &YearFailure{Year: year, Stage: StageFetch, Err: err}
	}

	table, err := numbeo.ExtractTable(doc, n.Revision().ExtractOptions())
	if err != nil {
		return nil, &YearFailure{Year: year, Stage: StageExtract, Err: err}
	}

	result, err := n.NormalizeTable(table, year, reportDate)
	if err != nil {
		return nil, &YearFailure{Year: year, Stage: StageNormalize, Err: err}
	}
	return result, nil
}

// normalizers validates the schedule and builds one Normalizer per revision
func (c *Collector) normalizers(years []int) (map[int]*normalize.Normalizer, error) {
	if err := c.schedule.Validate(); err != nil {
		return nil, err
	}

	byRevision := make(map[string]*normalize.Normalizer)
	byYear := make(map[int]*normalize.Normalizer, len(years))
	for _, year := range years {
		rev := c.schedule.For(year)
		n, ok := byRevision[rev.Name]
		if !ok {
			var err error
			n, err = normalize.New(rev, c.base)
			if err != nil {
				return nil, err
			}
			byRevision[rev.Name] = n
		}
		byYear[year] = n
	}
	return byYear, nil
}

// quietFrom returns a limiter whose next token is one throttle interval
// after t, so the pause is measured from the end of the previous fetch
func (c *Collector) quietFrom(t time.Time) *rate.Limiter {
	if c.policy.Throttle <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(c.policy.Throttle), 1)
	l.AllowN(t, 1)
	return l
}

func (c *Collector) finish(s *Summary, start time.Time) *Summary {
	s.Duration = time.Since(start)
	return s
}

func reportDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// unique drops repeated years and keeps the first occurrence of each
func unique(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	return out
}
