package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/xid"

	"github.com/dvillela/propex/internal/domain"
)

// ActivityStore is the append-only audit sink, persisted in pebble.
// Keys are xid strings, which sort by creation time, so a forward scan
// replays the audit trail in order. Writes are best-effort from the
// caller's point of view: settlement logs append failures and moves on.
type ActivityStore struct {
	db *pebble.DB
}

// OpenActivityStore opens (or creates) the audit log at path.
func OpenActivityStore(path string) (*ActivityStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open activity store: %w", err)
	}
	return &ActivityStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ActivityStore) Close() error { return s.db.Close() }

// Append writes one audit record. An empty ID is assigned here.
func (s *ActivityStore) Append(a domain.Activity) error {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	val, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if err := s.db.Set([]byte(a.ID), val, pebble.NoSync); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *ActivityStore) Recent(limit int) ([]domain.Activity, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}
	defer iter.Close()

	var out []domain.Activity
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var a domain.Activity
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
