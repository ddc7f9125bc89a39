package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/qolindex/internal/contracts"
	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/ranking"
	"github.com/wonny/qolindex/pkg/logger"
)

// Normalizer turns extracted ranking rows into typed records under one
// format revision
// ⭐ SSOT: cell typing, placeholder handling and rank policy happen here only
type Normalizer struct {
	rev    FormatRevision
	logger *logger.Logger
}

// Result is the outcome of one table
type Result struct {
	Year     int
	Revision string
	Records  []*contracts.CountryYearRecord
	Rejected []*RowError
}

// New creates a Normalizer for rev. The revision is validated up front.
func New(rev FormatRevision, log *logger.Logger) (*Normalizer, error) {
	if err := Validate(rev); err != nil {
		return nil, err
	}
	return &Normalizer{
		rev:    rev,
		logger: log.Module("normalizer"),
	}, nil
}

// Revision returns the revision the normalizer applies
func (n *Normalizer) Revision() FormatRevision {
	return n.rev
}

// NormalizeTable normalizes every row of table for year.
// Bad rows are rejected individually. A header that cannot be mapped, or a
// table in which no row has the header's width, is ErrSchema and fails the
// whole table.
func (n *Normalizer) NormalizeTable(table *numbeo.Table, year int, reportDate time.Time) (*Result, error) {
	// 1. Column mapping
	cols, err := n.columns(table.Header)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}

	result := &Result{
		Year:     year,
		Revision: n.rev.Name,
		Records:  make([]*contracts.CountryYearRecord, 0, len(table.Rows)),
	}

	// 2. Rows
	seen := make(map[string]int, len(table.Rows))
	misaligned := 0
	for i, row := range table.Rows {
		rec, rowErr := n.normalizeRow(cols, row.Cells, year, i)
		if rowErr != nil && errors.Is(rowErr.Err, ErrCellCount) {
			misaligned++
		}
		if rowErr == nil {
			if first, dup := seen[rec.Country]; dup {
				rowErr = &RowError{
					Year: year, RowIndex: i, Column: string(FieldCountry), Value: rec.Country,
					Err: fmt.Errorf("%w (first seen at row %d)", ErrDuplicateCountry, first),
				}
			}
		}
		if rowErr != nil {
			n.logger.WithFields(map[string]interface{}{
				"year":   year,
				"row":    rowErr.RowIndex,
				"column": rowErr.Column,
				"value":  rowErr.Value,
			}).WithError(rowErr.Err).Warn("Row rejected")
			result.Rejected = append(result.Rejected, rowErr)
			continue
		}

		seen[rec.Country] = i
		rec.ReportDate = reportDate
		result.Records = append(result.Records, rec)
	}

	// every row disagrees with the header width: the layout is wrong, not the rows
	if len(table.Rows) > 0 && misaligned == len(table.Rows) {
		return nil, fmt.Errorf("year %d: %w: no row has the %d columns of the header (revision %s)",
			year, ErrSchema, len(cols), n.rev.Name)
	}

	// 3. Rank policy
	if err := n.applyRank(result.Records); err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}

	n.logger.WithFields(map[string]interface{}{
		"year":     year,
		"revision": n.rev.Name,
		"records":  len(result.Records),
		"rejected": len(result.Rejected),
	}).Debug("Table normalized")

	return result, nil
}

// NormalizeRow normalizes a single row against header. In sourced rank mode
// the row's rank is its 1-based position (rowIndex+1); in computed mode the
// rank is left nil because it needs the whole year.
// The returned error is ErrSchema for an unusable header, *RowError otherwise.
func (n *Normalizer) NormalizeRow(header []string, cells []string, year, rowIndex int) (*contracts.CountryYearRecord, error) {
	cols, err := n.columns(header)
	if err != nil {
		return nil, err
	}

	rec, rowErr := n.normalizeRow(cols, cells, year, rowIndex)
	if rowErr != nil {
		return nil, rowErr
	}
	if n.rev.RankMode == RankSourced {
		rec.Rank = contracts.Int(rowIndex + 1)
	}
	return rec, nil
}

// columns resolves the field of every cell position. An empty field means
// the column is not stored.
func (n *Normalizer) columns(header []string) ([]Field, error) {
	if len(n.rev.FixedOrder) > 0 {
		if len(header) != len(n.rev.FixedOrder) {
			return nil, fmt.Errorf("%w: header has %d columns, revision %s reads %d by position",
				ErrSchema, len(header), n.rev.Name, len(n.rev.FixedOrder))
		}
		return n.rev.FixedOrder, nil
	}

	cols := make([]Field, len(header))
	used := make(map[Field]string, len(header))
	var unknown []string

	for i, label := range header {
		f, ok := n.rev.Labels.Lookup(label)
		if !ok {
			unknown = append(unknown, label)
			continue
		}
		if prev, dup := used[f]; dup {
			return nil, fmt.Errorf("%w: labels %q and %q both map to %s", ErrSchema, prev, label, f)
		}
		used[f] = label
		cols[i] = f
	}

	if _, ok := used[FieldCountry]; !ok {
		return nil, fmt.Errorf("%w: no country column in header %q (labels %s)", ErrSchema, header, n.rev.Labels.Version)
	}

	if len(unknown) > 0 {
		n.logger.WithFields(map[string]interface{}{
			"revision": n.rev.Name,
			"labels":   strings.Join(unknown, ", "),
		}).Warn("Ignoring unknown columns")
	}

	return cols, nil
}

func (n *Normalizer) normalizeRow(cols []Field, cells []string, year, rowIndex int) (*contracts.CountryYearRecord, *RowError) {
	if len(cells) != len(cols) {
		return nil, &RowError{
			Year: year, RowIndex: rowIndex, Value: strings.Join(cells, "|"),
			Err: fmt.Errorf("%w: %d cells, %d columns", ErrCellCount, len(cells), len(cols)),
		}
	}

	rec := &contracts.CountryYearRecord{Year: year}

	for i, f := range cols {
		raw := cells[i]

		switch f {
		case "", FieldRank:
			// rank comes from the rank policy, never from the cell
			continue
		case FieldCountry:
			country := strings.Join(strings.Fields(raw), " ")
			if country == "" {
				return nil, &RowError{Year: year, RowIndex: rowIndex, Column: string(f), Value: raw, Err: ErrEmptyCountry}
			}
			rec.Country = country
			continue
		}

		m, ok := f.Metric()
		if !ok {
			continue
		}
		v, err := n.rev.Sentinels.Parse(raw)
		if err != nil {
			return nil, &RowError{Year: year, RowIndex: rowIndex, Column: string(f), Value: raw, Err: err}
		}
		rec.SetValue(m, v)
	}

	return rec, nil
}

func (n *Normalizer) applyRank(records []*contracts.CountryYearRecord) error {
	switch n.rev.RankMode {
	case RankSourced:
		ranking.Positional(records)
		return nil
	case RankComputed:
		return ranking.ApplyByYear(records, n.rev.RankMetric)
	}
	return fmt.Errorf("%w: rank mode %q", ErrInvalidRevision, n.rev.RankMode)
}

// Parse types one cell. NotAvailable becomes nil, NoData becomes 0, anything
// else must be a finite number (thousands separators allowed).
func (s Sentinels) Parse(raw string) (*float64, error) {
	cell := strings.TrimSpace(raw)

	switch cell {
	case s.NotAvailable:
		return nil, nil
	case s.NoData:
		return contracts.Float(0), nil
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ErrNotNumeric
	}
	return contracts.Float(v), nil
}
