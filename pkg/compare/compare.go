// Package compare answers ad-hoc interest comparisons between up to five
// terms with a single request to the trends source. Nothing is stored.
package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trends-go/pkg/batch"
	"trends-go/pkg/logger"
	"trends-go/pkg/terms"
	"trends-go/pkg/trends"
)

// ValidationError reports invalid comparison input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request is a comparison query as received from the caller.
type Request struct {
	Terms     string
	StartDate string
	EndDate   string
	Geo       string
}

// Point is one day of a term's series.
type Point struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// Result maps each term to its ordered series.
type Result map[string][]Point

// Service runs comparisons.
type Service struct {
	connector  trends.Connector
	defaultGeo string
	log        *logger.Logger
}

// NewService returns a Service. An empty defaultGeo means "BR".
func NewService(connector trends.Connector, defaultGeo string) *Service {
	if defaultGeo == "" {
		defaultGeo = "BR"
	}
	return &Service{
		connector:  connector,
		defaultGeo: defaultGeo,
		log:        logger.GetLogger().WithField("component", "compare"),
	}
}

// Compare validates req, fetches one interest table for all terms and maps
// each returned column to a dated series. An empty or partial table yields an
// empty Result.
func (s *Service) Compare(ctx context.Context, req Request) (Result, error) {
	list, timeframe, err := validate(req)
	if err != nil {
		return nil, err
	}
	geo := strings.ToUpper(strings.TrimSpace(req.Geo))
	if geo == "" {
		geo = s.defaultGeo
	}

	src, err := s.connector.Connect(ctx)
	if err != nil {
		if !errors.Is(err, trends.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", trends.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	table, err := src.InterestOverTime(ctx, list, timeframe, geo)
	if err != nil {
		s.log.WithError(err).WithField("terms", list).Error("Comparison request failed")
		return nil, fmt.Errorf("compare %v: %w", list, err)
	}

	result := Result{}
	if table.Empty() || table.Partial {
		s.log.WithField("terms", list).WithField("partial", table.Partial).Debug("Comparison returned no complete data")
		return result, nil
	}

	for _, term := range list {
		if !table.HasColumn(term) {
			continue
		}
		points := make([]Point, 0, len(table.Rows))
		for _, row := range table.Rows {
			cell, ok := row.Cell(term)
			if !ok {
				continue
			}
			points = append(points, Point{
				Date:  row.Time.UTC().Format(time.DateOnly),
				Value: cell.Value,
			})
		}
		result[term] = points
	}
	return result, nil
}

// validate checks req before any upstream call and returns the term list and
// the timeframe string.
func validate(req Request) ([]string, string, error) {
	list := terms.Split(req.Terms)
	if len(list) == 0 {
		return nil, "", &ValidationError{Field: "terms", Reason: "at least one term is required"}
	}
	if len(list) > batch.TermLimit {
		return nil, "", &ValidationError{
			Field:  "terms",
			Reason: fmt.Sprintf("at most %d terms can be compared, got %d", batch.TermLimit, len(list)),
		}
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, "", err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, "", err
	}
	if start.After(end) {
		return nil, "", &ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}

	return list, start.Format(time.DateOnly) + " " + end.Format(time.DateOnly), nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &ValidationError{Field: field, Reason: "is required"}
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: "must be formatted as YYYY-MM-DD"}
	}
	return t, nil
}
