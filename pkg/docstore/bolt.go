package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore maps each collection to a bbolt bucket keyed by document id.
// Find returns documents in key order.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bbolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt store: create directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := NewID()
	if err := s.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *BoltStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("set %s/%s: %w", collection, id, err)
		}
		return b.Put([]byte(id), data)
	})
}

func (s *BoltStore) Update(ctx context.Context, collection, id string, fields map[string]any, conds ...Filter) error {
	if err := validateFilters(conds); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		ok, err := matches(data, conds)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPrecondition
		}

		merged, err := merge(data, fields)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), merged)
	})
}

func (s *BoltStore) Get(ctx context.Context, collection, id string, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		// Values are only valid for the lifetime of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return err
	}
	return Document{ID: id, Data: data}.Decode(dest)
}

func (s *BoltStore) Find(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := []Document{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			ok, err := matches(v, filters)
			if err != nil || !ok {
				return err
			}
			docs = append(docs, Document{
				ID:   string(k),
				Data: append([]byte(nil), v...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return docs, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
