package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/qolindex/internal/contracts"
)

const dateLayout = "2006-01-02"

var (
	// ErrHeader means the file header is not exactly Columns
	ErrHeader = errors.New("dataset header mismatch")
	// ErrMalformed means a cell cannot be read back
	ErrMalformed = errors.New("malformed dataset cell")
	// ErrSentinelInFile means a source placeholder leaked into the artifact
	ErrSentinelInFile = errors.New("placeholder token in dataset")
	// ErrDuplicateKey means a (country, year) pair appears twice
	ErrDuplicateKey = errors.New("duplicate country and year")
)

// Columns is the artifact header, in order
// ⭐ SSOT: the flat file schema is declared here only
var Columns = buildColumns()

func buildColumns() []string {
	cols := []string{"country", "year", "report_date"}
	for _, m := range contracts.AllMetrics {
		cols = append(cols, string(m))
	}
	return append(cols, "rank")
}

// leaked placeholders; a real value is never written this way
var sentinelTokens = map[string]bool{"N/A": true, "-": true}

// Encode writes records as CSV with the Columns header. Null values are empty
// cells.
func Encode(w io.Writer, records []*contracts.CountryYearRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Columns))
	for _, r := range records {
		row = row[:0]
		row = append(row, r.Country, strconv.Itoa(r.Year), formatDate(r.ReportDate))
		for _, m := range contracts.AllMetrics {
			row = append(row, formatFloat(r.Value(m)))
		}
		row = append(row, formatInt(r.Rank))

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s %d: %w", r.Country, r.Year, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// CSVWriter persists the dataset to Path, replacing any previous file in a
// single rename
type CSVWriter struct {
	Path string
}

// NewCSVWriter creates a writer for path
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{Path: path}
}

// Write encodes records into a temporary file next to Path and renames it
// over Path. Readers see either the old file or the new one.
func (w *CSVWriter) Write(records []*contracts.CountryYearRecord) (err error) {
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, records); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("replace %s: %w", w.Path, err)
	}
	return nil
}

// Load reads the artifact at path
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read decodes an artifact. The header must be exactly Columns and no cell
// may hold a source placeholder.
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	for i, col := range Columns {
		if strings.TrimPrefix(header[i], "\ufeff") != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i+1, header[i], col)
		}
	}

	var records []*contracts.CountryYearRecord
	seen := make(map[string]int)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		key := fmt.Sprintf("%s|%d", rec.Country, rec.Year)
		if first, dup := seen[key]; dup {
			return nil, fmt.Errorf("line %d: %w: %s %d (first at line %d)", line, ErrDuplicateKey, rec.Country, rec.Year, first)
		}
		seen[key] = line
		records = append(records, rec)
	}

	return newDataset(records), nil
}

func decodeRow(row []string) (*contracts.CountryYearRecord, error) {
	for i, cell := range row {
		if sentinelTokens[strings.TrimSpace(cell)] {
			return nil, fmt.Errorf("%w: %s=%q", ErrSentinelInFile, Columns[i], cell)
		}
	}

	rec := &contracts.CountryYearRecord{Country: row[0]}
	if rec.Country == "" {
		return nil, fmt.Errorf("%w: empty country", ErrMalformed)
	}

	year, err := strconv.Atoi(row[1])
	if err != nil {
		return nil, fmt.Errorf("%w: year=%q", ErrMalformed, row[1])
	}
	rec.Year = year

	if row[2] != "" {
		d, err := time.Parse(dateLayout, row[2])
		if err != nil {
			return nil, fmt.Errorf("%w: report_date=%q", ErrMalformed, row[2])
		}
		rec.ReportDate = d
	}

	for i, m := range contracts.AllMetrics {
		v, err := parseFloat(row[3+i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrMalformed, m, row[3+i])
		}
		rec.SetValue(m, v)
	}

	rankCell := row[len(row)-1]
	if rankCell != "" {
		rank, err := strconv.Atoi(rankCell)
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("%w: rank=%q", ErrMalformed, rankCell)
		}
		rec.Rank = contracts.Int(rank)
	}

	return rec, nil
}

func parseFloat(cell string) (*float64, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ErrMalformed
	}
	return contracts.Float(v), nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
