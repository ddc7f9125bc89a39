package collector

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/qolindex/internal/external/numbeo"
	"github.com/wonny/qolindex/internal/normalize"
)

// Severity decides what a year failure does to the run
type Severity int

const (
	// SeveritySkip drops the year and continues with the next one
	SeveritySkip Severity = iota
	// SeverityAbort stops the run; nothing is written
	SeverityAbort
)

func (s Severity) String() string {
	if s == SeverityAbort {
		return "abort"
	}
	return "skip"
}

// DefaultThrottle is the pause between two year fetches
const DefaultThrottle = 2 * time.Second

// Policy holds the tunable parts of a run
type Policy struct {
	Throttle time.Duration
	Classify func(error) Severity
}

// DefaultPolicy throttles by DefaultThrottle and classifies with DefaultClassify
func DefaultPolicy() Policy {
	return Policy{
		Throttle: DefaultThrottle,
		Classify: DefaultClassify,
	}
}

// DefaultClassify treats HTTP status and network failures as recoverable
// and anything that means the page format changed as structural.
// A missing table aborts: an unannounced redesign must not silently produce
// an empty year.
func DefaultClassify(err error) Severity {
	switch {
	case errors.Is(err, context.Canceled):
		return SeverityAbort
	case errors.Is(err, numbeo.ErrTableNotFound),
		errors.Is(err, numbeo.ErrNoHeader),
		errors.Is(err, normalize.ErrSchema):
		return SeverityAbort
	}
	// *numbeo.StatusError, timeouts, connection errors
	return SeveritySkip
}

// SkipMissingTables is a Classify that also tolerates years without a
// ranking table, for ranges that reach into years the site never published
func SkipMissingTables(err error) Severity {
	if errors.Is(err, numbeo.ErrTableNotFound) {
		return SeveritySkip
	}
	return DefaultClassify(err)
}
