package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

type testDoc struct {
	Term     string `json:"term"`
	IsActive bool   `json:"is_active"`
	Count    int    `json:"count"`
	Status   string `json:"status,omitempty"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "docs.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	boltStore, err := NewBoltStore(filepath.Join(dir, "docs.bolt"))
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
		"bolt":   boltStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Add(ctx, "terms", testDoc{Term: "alpha", IsActive: true, Count: 3})
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if id == "" {
				t.Fatal("Expected generated id")
			}

			var got testDoc
			if err := store.Get(ctx, "terms", id, &got); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Term != "alpha" || !got.IsActive || got.Count != 3 {
				t.Errorf("Unexpected document: %+v", got)
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got testDoc
			if err := store.Get(ctx, "nothing", "missing", &got); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if err := store.Update(ctx, "nothing", "missing", map[string]any{"count": 1}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound from Update, got %v", err)
			}
		})
	}
}

func TestStore_SetReplaces(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "terms", "t1", testDoc{Term: "alpha", Count: 1}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := store.Set(ctx, "terms", "t1", testDoc{Term: "beta", Count: 2}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			docs, err := store.Find(ctx, "terms")
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("Expected 1 document, got %d", len(docs))
			}
			var got testDoc
			if err := docs[0].Decode(&got); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Term != "beta" || got.Count != 2 {
				t.Errorf("Expected replaced document, got %+v", got)
			}
		})
	}
}

func TestStore_Find(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed := []testDoc{
				{Term: "alpha", IsActive: true, Count: 1},
				{Term: "beta", IsActive: false, Count: 2},
				{Term: "gamma", IsActive: true, Count: 2},
			}
			for _, d := range seed {
				if _, err := store.Add(ctx, "terms", d); err != nil {
					t.Fatalf("Add failed: %v", err)
				}
			}

			tests := []struct {
				name    string
				filters []Filter
				want    []string
			}{
				{"all", nil, []string{"alpha", "beta", "gamma"}},
				{"bool", []Filter{Where("is_active", true)}, []string{"alpha", "gamma"}},
				{"number", []Filter{Where("count", 2)}, []string{"beta", "gamma"}},
				{"combined", []Filter{Where("is_active", true), Where("count", 2)}, []string{"gamma"}},
				{"string", []Filter{Where("term", "beta")}, []string{"beta"}},
				{"no match", []Filter{Where("term", "delta")}, nil},
			}

			for _, tt := range tests {
				docs, err := store.Find(ctx, "terms", tt.filters...)
				if err != nil {
					t.Fatalf("%s: Find failed: %v", tt.name, err)
				}
				got := make(map[string]bool)
				for _, d := range docs {
					var td testDoc
					if err := d.Decode(&td); err != nil {
						t.Fatalf("%s: Decode failed: %v", tt.name, err)
					}
					got[td.Term] = true
				}
				if len(got) != len(tt.want) {
					t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
					continue
				}
				for _, w := range tt.want {
					if !got[w] {
						t.Errorf("%s: expected %q in result %v", tt.name, w, got)
					}
				}
			}
		})
	}
}

func TestStore_FindEmptyCollection(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			docs, err := store.Find(ctx, "empty")
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if docs == nil || len(docs) != 0 {
				t.Errorf("Expected empty non-nil slice, got %#v", docs)
			}
		})
	}
}

func TestStore_UpdateWithConditions(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "runs", "r1", testDoc{Term: "run", Status: "started"}); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			err := store.Update(ctx, "runs", "r1",
				map[string]any{"status": "completed", "count": 4},
				Where("status", "started"))
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}

			err = store.Update(ctx, "runs", "r1",
				map[string]any{"status": "failed"},
				Where("status", "started"))
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("Expected ErrPrecondition, got %v", err)
			}

			var got testDoc
			if err := store.Get(ctx, "runs", "r1", &got); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Status != "completed" || got.Count != 4 || got.Term != "run" {
				t.Errorf("Unexpected document after update: %+v", got)
			}
		})
	}
}

func TestStore_InvalidField(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Find(ctx, "terms", Where("term') OR 1=1 --", "x"))
			if !errors.Is(err, ErrInvalidField) {
				t.Errorf("Expected ErrInvalidField, got %v", err)
			}
		})
	}
}

func TestStore_RejectsNonObjects(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Add(ctx, "terms", []string{"a"}); err == nil {
				t.Error("Expected error for non-object document")
			}
		})
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := store.Add(ctx, "data", testDoc{Term: "t", Count: i}); err != nil {
						t.Errorf("Add failed: %v", err)
					}
				}(i)
			}
			wg.Wait()

			docs, err := store.Find(ctx, "data")
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if len(docs) != 20 {
				t.Errorf("Expected 20 documents, got %d", len(docs))
			}
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Driver: "memory"}, false},
		{Config{Driver: "sqlite", Path: filepath.Join(dir, "a.db")}, false},
		{Config{Driver: "bolt", Path: filepath.Join(dir, "a.bolt")}, false},
		{Config{Driver: "sqlite"}, true},
		{Config{Driver: "mongo"}, true},
	}

	for _, tt := range tests {
		store, err := Open(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("Open(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
		if store != nil {
			_ = store.Close()
		}
	}
}
