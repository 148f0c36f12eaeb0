// Package terms manages the set of tracked search terms stored in the
// trends_terms collection.
package terms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
	"trends-go/pkg/utils"
)

// Collection holds one document per tracked term.
const Collection = "trends_terms"

// Term is a tracked term document.
type Term struct {
	Term      string    `json:"term"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize trims term and converts it to Unicode NFC so the same text typed
// on different systems maps to one term.
func Normalize(term string) string {
	return norm.NFC.String(strings.TrimSpace(term))
}

// Clean normalizes every entry, drops empty ones and removes duplicates while
// keeping the first occurrence order.
func Clean(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, raw := range list {
		term := Normalize(raw)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// Split parses a comma-separated term list.
func Split(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return []string{}
	}
	return Clean(strings.Split(csv, ","))
}

// Repository reads and writes tracked terms.
type Repository struct {
	store docstore.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewRepository returns a Repository over store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{
		store: store,
		log:   logger.GetLogger().WithField("component", "terms"),
		now:   time.Now,
	}
}

// Active returns the active terms in alphabetical order.
func (r *Repository) Active(ctx context.Context) ([]string, error) {
	docs, err := r.store.Find(ctx, Collection, docstore.Where("is_active", true))
	if err != nil {
		return nil, fmt.Errorf("load active terms: %w", err)
	}

	list := make([]string, 0, len(docs))
	for _, doc := range docs {
		var t Term
		if err := doc.Decode(&t); err != nil {
			r.log.WithError(err).WithField("id", doc.ID).Warn("Skipping unreadable term document")
			continue
		}
		list = append(list, t.Term)
	}

	active := Clean(list)
	sort.Strings(active)
	return active, nil
}

// Upsert writes terms keyed by their hashed id and returns how many were
// written.
func (r *Repository) Upsert(ctx context.Context, list []Term) (int, error) {
	written := 0
	for _, t := range list {
		t.Term = Normalize(t.Term)
		if t.Term == "" {
			continue
		}
		t.UpdatedAt = r.now().UTC()

		id := utils.TermID(t.Term)
		if err := r.store.Set(ctx, Collection, id, t); err != nil {
			return written, fmt.Errorf("store term %q: %w", t.Term, err)
		}
		r.log.WithFields(map[string]interface{}{
			"term_id": utils.TermIDShort(t.Term),
			"active":  t.IsActive,
		}).Debug("Term stored")
		written++
	}
	return written, nil
}

// Import loads a YAML terms file and upserts its entries.
func (r *Repository) Import(ctx context.Context, path string) (int, error) {
	list, err := LoadFile(path)
	if err != nil {
		return 0, err
	}

	n, err := r.Upsert(ctx, list)
	if err != nil {
		return n, err
	}
	r.log.WithField("path", path).WithField("terms", n).Info("Terms imported")
	return n, nil
}
