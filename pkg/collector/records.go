package collector

import (
	"strconv"
	"time"

	"trends-go/pkg/trends"
)

// Collection receives every interest and rising-query record.
const Collection = "google_trends_data"

// Record types.
const (
	TypeInterestOverTime = "interest_over_time"
	TypeRisingQueries    = "rising_queries"
)

// BreakoutThreshold is the value from which a rising query is reported as
// "Breakout" instead of a percentage.
const BreakoutThreshold = 250000

// InterestPoint is one timestamped value of an interest record.
type InterestPoint struct {
	Date           time.Time `json:"date"`
	Value          int       `json:"value"`
	FormattedValue string    `json:"formattedValue"`
}

// InterestRecord is the interest series of one term over one run.
type InterestRecord struct {
	Term      string          `json:"term"`
	Geo       string          `json:"geo"`
	Type      string          `json:"type"`
	Timeframe string          `json:"timeframe"`
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Data      []InterestPoint `json:"data"`
}

// RisingPoint is one rising related query.
type RisingPoint struct {
	Query          string `json:"query"`
	Value          int    `json:"value"`
	FormattedValue string `json:"formattedValue"`
}

// RisingQueryRecord holds the rising related queries of one term.
type RisingQueryRecord struct {
	Term      string        `json:"term"`
	Geo       string        `json:"geo"`
	Type      string        `json:"type"`
	Timeframe string        `json:"timeframe"`
	RunID     string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Data      []RisingPoint `json:"data"`
}

// FormatRisingValue renders a rising query value the way the source shows it.
func FormatRisingValue(v int) string {
	if v >= BreakoutThreshold {
		return "Breakout"
	}
	return "+" + strconv.Itoa(v) + "%"
}

// interestPoints extracts term's column, skipping rows without data for it.
func interestPoints(table *trends.Table, term string) []InterestPoint {
	points := make([]InterestPoint, 0, len(table.Rows))
	for _, row := range table.Rows {
		cell, ok := row.Cell(term)
		if !ok {
			continue
		}
		points = append(points, InterestPoint{
			Date:           row.Time,
			Value:          cell.Value,
			FormattedValue: cell.Formatted,
		})
	}
	return points
}

func risingPoints(queries []trends.RankedQuery) []RisingPoint {
	points := make([]RisingPoint, 0, len(queries))
	for _, q := range queries {
		points = append(points, RisingPoint{
			Query:          q.Query,
			Value:          q.Value,
			FormattedValue: FormatRisingValue(q.Value),
		})
	}
	return points
}
