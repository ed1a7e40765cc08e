package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// MemStore is the in-memory Store implementation.
//
// A writable transaction operates on a copy of the member state and the
// copy replaces the live state only when the transaction function
// returns nil. An error from the function discards the copy, which
// gives the same all-or-nothing behavior as a rolled-back SQL
// transaction. Update calls are serialized by the write lock, which is
// exactly the "one applyOutcome call is one atomic operation"
// discipline the engine requires.
type MemStore struct {
	mu     sync.RWMutex
	state  memState
	closed bool
}

// memState holds both lookup directions. byRank is kept strictly in
// sync with byID so rank uniqueness is enforced at the point of write.
type memState struct {
	byID   map[string]model.Member
	byRank map[int]string
}

func (s memState) clone() memState {
	c := memState{
		byID:   make(map[string]model.Member, len(s.byID)),
		byRank: make(map[int]string, len(s.byRank)),
	}
	for id, m := range s.byID {
		c.byID[id] = m
	}
	for r, id := range s.byRank {
		c.byRank[r] = id
	}
	return c
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithMembers seeds the store with an initial set of members. Seeding
// bypasses uniqueness checks; callers are expected to hand over a valid
// permutation (tests and the simulator do).
func WithMembers(members []model.Member) MemOption {
	return func(s *MemStore) {
		for _, m := range members {
			s.state.byID[m.ID] = m
			s.state.byRank[m.Rank] = m.ID
		}
	}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		state: memState{
			byID:   make(map[string]model.Member),
			byRank: make(map[int]string),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn against a copy of the state and commits the copy on success.
func (s *MemStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	tx := &memTx{state: &staged}
	if err := fn(tx); err != nil {
		return err
	}

	s.state = staged
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	return nil
}

// View runs fn against the live state under a read lock.
func (s *MemStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(&memTx{state: &s.state, readOnly: true})
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	return err
}

// Close marks the store closed; subsequent transactions fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// memTx implements Tx over a memState.
type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) ListByRank(_ context.Context) ([]model.Member, error) {
	members := make([]model.Member, 0, len(t.state.byID))
	for _, m := range t.state.byID {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Rank < members[j].Rank
	})
	return members, nil
}

func (t *memTx) Get(_ context.Context, id string) (model.Member, error) {
	m, ok := t.state.byID[id]
	if !ok {
		return model.Member{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return m, nil
}

func (t *memTx) ByRank(_ context.Context, rank int) (model.Member, error) {
	id, ok := t.state.byRank[rank]
	if !ok {
		return model.Member{}, fmt.Errorf("rank %d: %w", rank, ErrNotFound)
	}
	return t.state.byID[id], nil
}

func (t *memTx) SetRank(_ context.Context, id string, rank int) error {
	if t.readOnly {
		return ErrReadOnly
	}
	m, ok := t.state.byID[id]
	if !ok {
		return fmt.Errorf("set rank for %q: %w", id, ErrNotFound)
	}
	if holder, taken := t.state.byRank[rank]; taken && holder != id {
		return fmt.Errorf("set rank %d for %q: held by %q: %w", rank, id, holder, ErrDuplicateRank)
	}

	delete(t.state.byRank, m.Rank)
	m.Rank = rank
	t.state.byID[id] = m
	t.state.byRank[rank] = id
	return nil
}

func (t *memTx) Insert(_ context.Context, m model.Member) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if _, exists := t.state.byID[m.ID]; exists {
		return fmt.Errorf("insert %q: %w", m.ID, ErrDuplicateID)
	}
	if holder, taken := t.state.byRank[m.Rank]; taken {
		return fmt.Errorf("insert %q at rank %d: held by %q: %w", m.ID, m.Rank, holder, ErrDuplicateRank)
	}
	t.state.byID[m.ID] = m
	t.state.byRank[m.Rank] = m.ID
	return nil
}

func (t *memTx) Delete(_ context.Context, id string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	m, ok := t.state.byID[id]
	if !ok {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	delete(t.state.byID, id)
	delete(t.state.byRank, m.Rank)
	return nil
}

func (t *memTx) Count(_ context.Context) (int, error) {
	return len(t.state.byID), nil
}
