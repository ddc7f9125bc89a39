package normalize

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema means the table header cannot be mapped onto the record schema.
	// It is structural: the run must stop.
	ErrSchema = errors.New("table schema not understood")

	// ErrUnknownRevision is returned for an unregistered revision name
	ErrUnknownRevision = errors.New("unknown format revision")

	// ErrInvalidRevision is a revision configuration mistake
	ErrInvalidRevision = errors.New("invalid format revision")

	// Cell-level causes carried by RowError
	ErrNotNumeric       = errors.New("not a number")
	ErrEmptyCountry     = errors.New("empty country")
	ErrDuplicateCountry = errors.New("duplicate country in year")
	ErrCellCount        = errors.New("cell count does not match columns")
)

// RowError rejects one source row. It names the year, the 0-based data-row
// index, the offending column and the raw cell value, so the failure can be
// diagnosed without fetching again.
type RowError struct {
	Year     int
	RowIndex int
	Column   string
	Value    string
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("year %d row %d column %q value %q: %v",
		e.Year, e.RowIndex, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
