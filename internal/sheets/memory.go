package sheets

import (
	"context"
	"sync"
)

// MemoryStore keeps sheets in process memory. Used for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[Sheet][]Row
}

// NewMemoryStore constructs a store pre-populated with seed rows.
func NewMemoryStore(seed map[Sheet][]Row) *MemoryStore {
	s := &MemoryStore{sheets: make(map[Sheet][]Row, len(seed))}
	for sheet, rows := range seed {
		s.sheets[sheet] = CloneRows(rows)
	}
	return s
}

// Fetch returns a copy of the sheet rows.
func (s *MemoryStore) Fetch(ctx context.Context, sheet Sheet) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !sheet.Valid() {
		return nil, ErrUnknownSheet
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneRows(s.sheets[sheet]), nil
}

// Post applies an insert or update batch atomically.
func (s *MemoryStore) Post(ctx context.Context, sheet Sheet, mode Mode, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPost(sheet, mode, rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == ModeInsert {
		s.sheets[sheet] = append(s.sheets[sheet], CloneRows(rows)...)
		return nil
	}
	updated, err := applyUpdate(sheet, s.sheets[sheet], rows)
	if err != nil {
		return err
	}
	s.sheets[sheet] = updated
	return nil
}
