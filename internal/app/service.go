// Package service provides the core business service for the club
// ladder: member lifecycle, match application, and integrity tooling.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// ErrDuplicateMatch marks a match ID that was already applied; the
// ladder is untouched for such calls.
var ErrDuplicateMatch = errors.New("match already applied")

// Store backends selectable via configuration.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Service implements the ladder operations on top of a ranked-member
// store. All rank mutations go through the ranking engine or reuse its
// safe-write discipline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	engine  *ranking.Engine
	deduper dedupe.Deduper

	// Configuration
	backend         string
	postgresDSN     string
	dedupeSize      int
	placeholderBase int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a pre-built store, overriding the backend setting.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBackend selects the store backend: memory or postgres.
func WithBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" {
			s.backend = backend
		}
	}
}

// WithPostgresDSN sets the DSN used by the postgres backend.
func WithPostgresDSN(dsn string) Option {
	return func(s *Service) {
		s.postgresDSN = dsn
	}
}

// WithDedupeSize sets the size of the match deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithPlaceholderBase sets the first staging rank used by the engine.
func WithPlaceholderBase(base int) Option {
	return func(s *Service) {
		if base < 0 {
			s.placeholderBase = base
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		backend:         BackendMemory,
		dedupeSize:      50_000,
		placeholderBase: -1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store, engine, and deduper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting ladder service...")

	if s.store == nil {
		switch s.backend {
		case BackendMemory:
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		case BackendPostgres:
			store, err := repository.NewPGStore(ctx, s.postgresDSN)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using postgres store")
		default:
			return fmt.Errorf("unknown store backend %q", s.backend)
		}
	}

	s.engine = ranking.New(s.store,
		ranking.WithPlaceholderBase(s.placeholderBase),
		ranking.WithLogger(s.logger),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)

	s.started = true
	s.logger.Info(ctx, "ladder service started",
		logger.String("backend", s.backend),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ladder service...")
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "ladder service stopped")
}

// ApplyOutcome applies a match outcome through the ranking engine. A
// non-empty MatchID makes the call idempotent: a repeated ID returns
// ErrDuplicateMatch without touching the ladder. An engine failure
// unrecords the ID so the match can be retried.
func (s *Service) ApplyOutcome(ctx context.Context, out model.MatchOutcome) (model.RankChange, error) {
	if out.MatchID != "" && s.deduper.SeenAndRecord(ctx, out.MatchID) {
		s.logger.Debug(ctx, "duplicate match, skipping",
			logger.String("matchID", out.MatchID),
		)
		metrics.RecordMatchDuplicate()
		return model.RankChange{}, fmt.Errorf("match %q: %w", out.MatchID, ErrDuplicateMatch)
	}

	change, err := s.engine.ApplyOutcome(ctx, out)
	if err != nil {
		if out.MatchID != "" {
			s.deduper.Unrecord(ctx, out.MatchID)
		}
		metrics.RecordMatchError()
		return model.RankChange{}, err
	}

	s.logger.Info(ctx, "match applied",
		logger.String("a", out.A),
		logger.String("b", out.B),
		logger.String("outcome", string(out.Outcome)),
		logger.Int("aBefore", change.ABefore),
		logger.Int("aAfter", change.AAfter),
		logger.Int("bBefore", change.BBefore),
		logger.Int("bAfter", change.BAfter),
	)
	return change, nil
}

// Standings returns all members ordered by rank, best first.
func (s *Service) Standings(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		members, err = tx.ListByRank(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.UpdateMemberCount(len(members))
	return members, nil
}

// Member returns the member with the given identity.
func (s *Service) Member(ctx context.Context, id string) (model.Member, error) {
	var m model.Member
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		m, err = tx.Get(ctx, id)
		return err
	})
	return m, err
}

// MemberByRank returns the member currently holding rank.
func (s *Service) MemberByRank(ctx context.Context, rank int) (model.Member, error) {
	var m model.Member
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		m, err = tx.ByRank(ctx, rank)
		return err
	})
	return m, err
}

// AddMember appends a new member at the bottom of the ladder (rank N+1).
func (s *Service) AddMember(ctx context.Context, name string) (model.Member, error) {
	m := model.Member{
		ID:   uuid.NewString(),
		Name: name,
	}
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		n, err := tx.Count(ctx)
		if err != nil {
			return err
		}
		m.Rank = n + 1
		return tx.Insert(ctx, m)
	})
	if err != nil {
		return model.Member{}, err
	}

	s.logger.Info(ctx, "member added",
		logger.String("id", m.ID),
		logger.Int("rank", m.Rank),
	)
	return m, nil
}

// RemoveMember deletes a member and closes the vacated rank slot by
// shifting every member below it up by one. Shifting in ascending rank
// order writes each member into a slot that was just vacated, so no
// write ever collides with a held rank.
func (s *Service) RemoveMember(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		m, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}

		members, err := tx.ListByRank(ctx)
		if err != nil {
			return err
		}
		for _, other := range members {
			if other.Rank > m.Rank {
				if err := tx.SetRank(ctx, other.ID, other.Rank-1); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "member removed and ranks adjusted",
		logger.String("id", id),
	)
	return nil
}

// ValidateIntegrity reports whether ranks form the exact sequence 1..N.
func (s *Service) ValidateIntegrity(ctx context.Context) (bool, error) {
	return s.engine.ValidateIntegrity(ctx)
}

// Repair reassigns dense ranks, preserving relative order.
func (s *Service) Repair(ctx context.Context) error {
	return s.engine.Repair(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"backend":    s.backend,
		"dedupeSize": s.dedupeSize,
	}

	if s.started {
		ctx := context.Background()
		var count int
		err := s.store.View(ctx, func(tx repository.Tx) error {
			var err error
			count, err = tx.Count(ctx)
			return err
		})
		if err == nil {
			stats["members"] = count
			metrics.UpdateMemberCount(count)
		}
		stats["trackedMatches"] = s.deduper.Size()
	}

	return stats
}
