// Package snapshot retains the two most recent normalized snapshots per
// account, the reference material for every differencing pass.
package snapshot

import (
	"fmt"

	"github.com/tornwatch/tornwatch/internal/models"
	"github.com/tornwatch/tornwatch/internal/storage"
)

type pair struct {
	prev *models.Snapshot
	curr *models.Snapshot
}

// Store keeps the (previous, current) snapshot pair per account in memory and
// mirrors the pair to storage so a restart keeps its baseline. Older
// snapshots are discarded, not archived.
type Store struct {
	storage *storage.Storage
	pairs   map[string]*pair
	loaded  map[string]bool
}

// NewStore returns a store backed by st. A nil st keeps the pairs purely in
// memory, which the detector tests rely on.
func NewStore(st *storage.Storage) *Store {
	return &Store{
		storage: st,
		pairs:   make(map[string]*pair),
		loaded:  make(map[string]bool),
	}
}

// Push records curr as the account's newest snapshot and returns the
// displaced snapshot to diff against (nil on the very first poll). The
// returned error reports a persistence failure only; the in-memory pair has
// already advanced, so callers may log and continue.
func (s *Store) Push(curr *models.Snapshot) (*models.Snapshot, error) {
	if err := curr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	s.ensureLoaded(curr.AccountID)

	p, ok := s.pairs[curr.AccountID]
	if !ok {
		p = &pair{}
		s.pairs[curr.AccountID] = p
	}

	prev := p.curr
	p.prev = p.curr
	p.curr = curr

	if s.storage != nil {
		if err := s.storage.SaveSnapshot(curr); err != nil {
			return prev, fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}
	return prev, nil
}

// Current returns the account's newest snapshot, nil when never polled.
func (s *Store) Current(accountID string) *models.Snapshot {
	s.ensureLoaded(accountID)
	if p, ok := s.pairs[accountID]; ok {
		return p.curr
	}
	return nil
}

// Previous returns the snapshot before the current one, nil when unavailable.
func (s *Store) Previous(accountID string) *models.Snapshot {
	s.ensureLoaded(accountID)
	if p, ok := s.pairs[accountID]; ok {
		return p.prev
	}
	return nil
}

func (s *Store) ensureLoaded(accountID string) {
	if s.loaded[accountID] || s.storage == nil {
		s.loaded[accountID] = true
		return
	}
	s.loaded[accountID] = true

	snaps, err := s.storage.LoadSnapshots(accountID)
	if err != nil || len(snaps) == 0 {
		return
	}
	p := &pair{}
	if len(snaps) >= 2 {
		p.prev = snaps[len(snaps)-2]
	}
	p.curr = snaps[len(snaps)-1]
	s.pairs[accountID] = p
}
