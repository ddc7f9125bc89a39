package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/normalize"
	"github.com/wonny/qolindex/pkg/logger"
)

type page struct {
	doc []byte
	err error
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[int]page
	calls []int
}

func (f *fakeFetcher) FetchRankingPage(ctx context.Context, year int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, year)

	p, ok := f.pages[year]
	if !ok {
		return nil, &numbeo.StatusError{Year: year, StatusCode: http.StatusNotFound}
	}
	return p.doc, p.err
}

type fakeWriter struct {
	writes  int
	records []*contracts.CountryYearRecord
	err     error
}

func (w *fakeWriter) Write(records []*contracts.CountryYearRecord) error {
	w.writes++
	w.records = records
	return w.err
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "external", "numbeo", "testdata", name))
	require.NoError(t, err)
	return b
}

func fastPolicy() Policy {
	return Policy{Throttle: 0, Classify: DefaultClassify}
}

var fixedNow = func() time.Time { return time.Date(2024, 7, 15, 13, 45, 0, 0, time.FixedZone("KST", 9*3600)) }

func newCollector(f PageFetcher, w DatasetWriter, s normalize.Schedule, p Policy) *Collector {
	return NewCollector(f, w, s, p, logger.Nop()).WithClock(fixedNow)
}

func TestRun_SkipsYearOnStatusError(t *testing.T) {
	doc := fixture(t, "rankings_2024.html")
	fetcher := &fakeFetcher{pages: map[int]page{
		2019: {doc: doc},
		2021: {doc: doc},
	}}
	writer := &fakeWriter{}

	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2019, 2020, 2021})
	require.NoError(t, err)

	assert.Equal(t, []int{2019, 2020, 2021}, fetcher.calls, "processing continues after the failed year")

	require.Len(t, summary.Skipped, 1)
	skipped := summary.Skipped[0]
	assert.Equal(t, 2020, skipped.Year)
	assert.Equal(t, StageFetch, skipped.Stage)
	assert.Equal(t, SeveritySkip, skipped.Severity)
	var statusErr *numbeo.StatusError
	require.True(t, errors.As(skipped, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	require.Len(t, summary.Years, 2)
	assert.Equal(t, 2019, summary.Years[0].Year)
	assert.Equal(t, 2021, summary.Years[1].Year)

	assert.Equal(t, 1, writer.writes, "dataset is written once")
	require.Len(t, writer.records, 6)
	assert.True(t, summary.Written)
	for _, rec := range writer.records {
		assert.NotEqual(t, 2020, rec.Year)
	}
}

func TestRun_AbortsOnMissingTable(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{
		2022: {doc: fixture(t, "rankings_2024.html")},
		2023: {doc: []byte(`<html><body><p>We have redesigned our site</p></body></html>`)},
		2024: {doc: fixture(t, "rankings_2024.html")},
	}}
	writer := &fakeWriter{}

	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2022, 2023, 2024})
	require.Error(t, err)

	assert.ErrorIs(t, err, numbeo.ErrTableNotFound)
	var failure YearFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2023, failure.Year)
	assert.Equal(t, StageExtract, failure.Stage)
	assert.Equal(t, SeverityAbort, failure.Severity)

	assert.Equal(t, []int{2022, 2023}, fetcher.calls, "no year is fetched after the abort")
	assert.Zero(t, writer.writes, "a partial dataset is never written")
	assert.False(t, summary.Written)
}

func TestRun_AbortsOnSchemaChange(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{
		2024: {doc: []byte(`<table id="t2"><tr><th>Rank</th><th>Nation</th></tr><tr><td>1</td><td>Fiji</td></tr></table>`)},
	}}
	writer := &fakeWriter{}

	_, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2024})
	assert.ErrorIs(t, err, normalize.ErrSchema)
	assert.Zero(t, writer.writes)
}

func TestRun_AbortsOnWrongLayout(t *testing.T) {
	// a rank-column page with a climate column where a legacy page is expected
	fetcher := &fakeFetcher{pages: map[int]page{
		2013: {doc: fixture(t, "rankings_2024.html")},
		2014: {doc: fixture(t, "rankings_2012.html")},
	}}
	writer := &fakeWriter{}

	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionLegacy), fastPolicy()).
		Run(context.Background(), []int{2013, 2014})
	require.Error(t, err)
	assert.ErrorIs(t, err, normalize.ErrSchema)

	var failure YearFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2013, failure.Year)
	assert.Equal(t, StageNormalize, failure.Stage)
	assert.Equal(t, SeverityAbort, failure.Severity)

	assert.Equal(t, []int{2013}, fetcher.calls)
	assert.Zero(t, writer.writes, "a misaligned year is never persisted")
	assert.Empty(t, summary.Years)
}

func TestRun_PolicyCanSkipMissingTables(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{
		2023: {doc: []byte(`<html></html>`)},
		2024: {doc: fixture(t, "rankings_2024.html")},
	}}
	writer := &fakeWriter{}

	policy := Policy{Classify: SkipMissingTables}
	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), policy).
		Run(context.Background(), []int{2023, 2024})
	require.NoError(t, err)

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, StageExtract, summary.Skipped[0].Stage)
	assert.Len(t, writer.records, 3)
}

func TestRun_EmptyDatasetIsNotWritten(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{
		2021: {err: fmt.Errorf("dial tcp: connection refused")},
	}}
	writer := &fakeWriter{}

	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2020, 2021})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Len(t, summary.Skipped, 2)
	assert.Zero(t, writer.writes)
}

func TestRun_Cancelled(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{2024: {doc: fixture(t, "rankings_2024.html")}}}
	writer := &fakeWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(ctx, []int{2024})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
	assert.Zero(t, writer.writes)
}

func TestRun_InvalidRevisionFailsBeforeFetching(t *testing.T) {
	broken := normalize.RevisionLabeled
	broken.RankMetric = contracts.Metric("happiness_index")
	fetcher := &fakeFetcher{}

	_, err := newCollector(fetcher, &fakeWriter{}, normalize.SingleRevision(broken), fastPolicy()).
		Run(context.Background(), []int{2016})
	require.Error(t, err)
	assert.Empty(t, fetcher.calls)
}

func TestRun_NoYears(t *testing.T) {
	_, err := newCollector(&fakeFetcher{}, &fakeWriter{}, normalize.DefaultSchedule(), fastPolicy()).
		Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoYears)
}

func TestRun_UsesScheduledRevisionPerYear(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{
		2012: {doc: fixture(t, "rankings_2012.html")},
		2024: {doc: fixture(t, "rankings_2024.html")},
	}}
	writer := &fakeWriter{}

	summary, err := newCollector(fetcher, writer, normalize.DefaultSchedule(), fastPolicy()).
		Run(context.Background(), []int{2024, 2012, 2024})
	require.NoError(t, err)

	assert.Equal(t, []int{2024, 2012}, fetcher.calls, "years are de-duplicated in the requested order")
	require.Len(t, summary.Years, 2)
	assert.Equal(t, "current", summary.Years[0].Revision)
	assert.Equal(t, "legacy", summary.Years[1].Revision)

	require.Len(t, writer.records, 5)
	assert.Equal(t, "Luxembourg", writer.records[0].Country)
	assert.Equal(t, "Switzerland", writer.records[3].Country)
}

func TestRun_ReportDateIsRunDay(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{2024: {doc: fixture(t, "rankings_2024.html")}}}
	writer := &fakeWriter{}

	_, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2024})
	require.NoError(t, err)

	want := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	for _, rec := range writer.records {
		assert.Equal(t, want, rec.ReportDate)
		assert.Equal(t, 2024, rec.Year, "year is the ranking year")
	}
}

func TestRun_IdempotentExceptReportDate(t *testing.T) {
	pages := map[int]page{
		2012: {doc: fixture(t, "rankings_2012.html")},
		2024: {doc: fixture(t, "rankings_2024.html")},
	}

	first := &fakeWriter{}
	_, err := newCollector(&fakeFetcher{pages: pages}, first, normalize.DefaultSchedule(), fastPolicy()).
		Run(context.Background(), []int{2012, 2024})
	require.NoError(t, err)

	second := &fakeWriter{}
	later := func() time.Time { return fixedNow().AddDate(0, 1, 0) }
	_, err = NewCollector(&fakeFetcher{pages: pages}, second, normalize.DefaultSchedule(), fastPolicy(), logger.Nop()).
		WithClock(later).
		Run(context.Background(), []int{2012, 2024})
	require.NoError(t, err)

	ignoreReportDate := cmpopts.IgnoreFields(contracts.CountryYearRecord{}, "ReportDate")
	if diff := cmp.Diff(first.records, second.records, ignoreReportDate); diff != "" {
		t.Errorf("re-run differs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.records[0].ReportDate, second.records[0].ReportDate)
}

func TestRun_WriteError(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{2024: {doc: fixture(t, "rankings_2024.html")}}}
	writer := &fakeWriter{err: errors.New("disk full")}

	summary, err := newCollector(fetcher, writer, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2024})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, summary.Written)
}

func TestRun_NilWriterIsDryRun(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]page{2024: {doc: fixture(t, "rankings_2024.html")}}}

	summary, err := newCollector(fetcher, nil, normalize.SingleRevision(normalize.RevisionCurrent), fastPolicy()).
		Run(context.Background(), []int{2024})
	require.NoError(t, err)
	assert.Len(t, summary.Records, 3)
	assert.False(t, summary.Written)
}

func TestRun_Throttle(t *testing.T) {
	doc := fixture(t, "rankings_2024.html")
	fetcher := &fakeFetcher{pages: map[int]page{2022: {doc: doc}, 2023: {doc: doc}, 2024: {doc: doc}}}

	throttle := 40 * time.Millisecond
	start := time.Now()
	_, err := newCollector(fetcher, nil, normalize.SingleRevision(normalize.RevisionCurrent), Policy{Throttle: throttle}).
		Run(context.Background(), []int{2022, 2023, 2024})
	require.NoError(t, err)

	// the first year is fetched immediately, the other two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 2*throttle-5*time.Millisecond)
}

type slowFetcher struct {
	mu      sync.Mutex
	doc     []byte
	latency time.Duration
	starts  []time.Time
	ends    []time.Time
}

func (f *slowFetcher) FetchRankingPage(ctx context.Context, year int) ([]byte, error) {
	f.mu.Lock()
	f.starts = append(f.starts, time.Now())
	f.mu.Unlock()

	time.Sleep(f.latency)

	f.mu.Lock()
	f.ends = append(f.ends, time.Now())
	f.mu.Unlock()
	return f.doc, nil
}

func TestRun_ThrottleIsQuietIntervalAfterEachFetch(t *testing.T) {
	throttle := 40 * time.Millisecond
	fetcher := &slowFetcher{doc: fixture(t, "rankings_2024.html"), latency: 60 * time.Millisecond}

	_, err := newCollector(fetcher, nil, normalize.SingleRevision(normalize.RevisionCurrent), Policy{Throttle: throttle}).
		Run(context.Background(), []int{2022, 2023, 2024})
	require.NoError(t, err)

	require.Len(t, fetcher.starts, 3)
	for i := 1; i < len(fetcher.starts); i++ {
		gap := fetcher.starts[i].Sub(fetcher.ends[i-1])
		assert.GreaterOrEqual(t, gap, throttle-2*time.Millisecond, "quiet gap before fetch %d", i+1)
	}
}

func TestDefaultClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"status", &numbeo.StatusError{Year: 2020, StatusCode: 404}, SeveritySkip},
		{"network", errors.New("connection reset by peer"), SeveritySkip},
		{"timeout", context.DeadlineExceeded, SeveritySkip},
		{"table missing", fmt.Errorf("wrap: %w", numbeo.ErrTableNotFound), SeverityAbort},
		{"no header", numbeo.ErrNoHeader, SeverityAbort},
		{"schema", fmt.Errorf("year 2020: %w", normalize.ErrSchema), SeverityAbort},
		{"cancelled", context.Canceled, SeverityAbort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultClassify(tt.err))
		})
	}

	assert.Equal(t, SeveritySkip, SkipMissingTables(numbeo.ErrTableNotFound))
	assert.Equal(t, SeverityAbort, SkipMissingTables(normalize.ErrSchema))
	assert.Equal(t, "abort", SeverityAbort.String())
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 2*time.Second, p.Throttle)
	require.NotNil(t, p.Classify)
}
