// Package trends talks to the external search-interest source.
//
// The pipeline only depends on Connector and Source; Client is the Google
// Trends implementation used in production.
package trends

import (
	"context"
	"time"
)

// Cell is one term's value at one point in time.
type Cell struct {
	Value     int
	Formatted string
}

// Row is one timestamp of an interest table. Cells holds only the terms the
// source reported data for at that timestamp.
type Row struct {
	Time  time.Time
	Cells map[string]Cell
}

// Cell returns the term's cell and whether the row carries data for it.
func (r Row) Cell(term string) (Cell, bool) {
	c, ok := r.Cells[term]
	return c, ok
}

// Table is a time-indexed interest table with one column per requested term.
// Rows are in ascending time order, as returned by the source.
type Table struct {
	Columns []string
	Rows    []Row
	// Partial is set when the source flagged trailing rows as incomplete.
	Partial bool
}

// Empty reports whether the table carries no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// HasColumn reports whether term is one of the table's columns.
func (t *Table) HasColumn(term string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == term {
			return true
		}
	}
	return false
}

// RankedQuery is one related query reported for a term.
type RankedQuery struct {
	Query string
	Value int
}

// Source is an established session with the trends source.
type Source interface {
	// InterestOverTime returns the interest table for up to five terms.
	InterestOverTime(ctx context.Context, terms []string, timeframe, geo string) (*Table, error)
	// RisingQueries returns the rising related queries for a single term.
	// A term without rising data yields an empty slice and no error.
	RisingQueries(ctx context.Context, term, timeframe, geo string) ([]RankedQuery, error)
}

// Connector opens sessions with the trends source.
type Connector interface {
	Connect(ctx context.Context) (Source, error)
}
