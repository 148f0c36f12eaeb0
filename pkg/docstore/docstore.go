// Package docstore is a small document store: named collections of JSON
// documents addressed by string ids.
//
// Three backends are provided. The memory store is used by tests and
// throwaway runs, SQLite and bbolt persist to a single file.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrPrecondition is returned by Update when the stored document does not
	// satisfy the given conditions.
	ErrPrecondition = errors.New("docstore: precondition failed")
	// ErrInvalidField is returned for filter fields that are not plain names.
	ErrInvalidField = errors.New("docstore: invalid field name")
)

// Store is the document store capability used by the pipeline. All
// implementations are safe for concurrent use.
type Store interface {
	// Add stores doc under a generated id and returns the id.
	Add(ctx context.Context, collection string, doc any) (string, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, doc any) error
	// Update merges fields into an existing document. When conds are given
	// the update is applied only if the current document matches all of
	// them, otherwise ErrPrecondition is returned.
	Update(ctx context.Context, collection, id string, fields map[string]any, conds ...Filter) error
	// Get decodes the document into dest.
	Get(ctx context.Context, collection, id string, dest any) error
	// Find returns the documents matching every filter.
	Find(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Close() error
}

// Document is a stored document in its JSON form.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into dest.
func (d Document) Decode(dest any) error {
	if err := json.Unmarshal(d.Data, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter is an equality condition on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Where builds a Filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
	}
	return nil
}

// NewID returns a new lexically sortable document id.
func NewID() string {
	return ulid.Make().String()
}

// Config selects and configures a backend.
type Config struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Open returns the backend named by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bolt", "bbolt":
		s, err := NewBoltStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
