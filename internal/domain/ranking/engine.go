// Package ranking implements the ladder's rank permutation engine.
//
// Ranks form a dense permutation 1..N. Applying a match outcome moves
// some members between existing rank slots without ever creating a
// duplicate or a gap; because the store enforces rank uniqueness at the
// point of write, multi-member moves are staged through unique negative
// placeholder ranks and finalized in a second pass.
package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// defaultPlaceholderBase is the first temporary rank used while staging
// a permutation update; subsequent placeholders decrement from here.
const defaultPlaceholderBase = -1000

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPlaceholderBase sets the first staging rank. Must be negative so
// placeholders stay disjoint from all real ranks.
func WithPlaceholderBase(base int) Option {
	return func(e *Engine) {
		if base < 0 {
			e.placeholderBase = base
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine computes and applies rank permutations. It holds no state
// between invocations; each call is a self-contained read-compute-write
// cycle inside one store transaction.
type Engine struct {
	store           repository.Store
	placeholderBase int
	log             logger.Logger
}

// New constructs an Engine over the given store.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		placeholderBase: defaultPlaceholderBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get()
	}
	return e
}

// ApplyOutcome applies a match outcome and returns the before/after
// ranks of both participants. Higher/lower is resolved from the
// supplied before-ranks only, so the computation is deterministic
// against the input even if the store has drifted since the match was
// recorded. The global 1..N invariant holds when the call returns; on
// error no writes survive.
func (e *Engine) ApplyOutcome(ctx context.Context, out model.MatchOutcome) (model.RankChange, error) {
	if out.A == out.B {
		return model.RankChange{}, fmt.Errorf("participants %q and %q: %w", out.A, out.B, ErrSameParticipant)
	}
	if !out.Outcome.Valid() {
		return model.RankChange{}, fmt.Errorf("outcome %q: %w", out.Outcome, ErrUnknownOutcome)
	}

	change := &changeTracker{
		a: out.A,
		b: out.B,
		change: model.RankChange{
			ABefore: out.RankA,
			BBefore: out.RankB,
			AAfter:  out.RankA,
			BAfter:  out.RankB,
		},
	}

	err := e.store.Update(ctx, func(tx repository.Tx) error {
		// Both participants must exist before any writes happen.
		if _, err := tx.Get(ctx, out.A); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, out.B); err != nil {
			return err
		}

		// Equal before-ranks cannot occur under the invariant; treat
		// the input as already consistent and change nothing.
		if out.RankA == out.RankB {
			e.log.Warn(ctx, "equal before-ranks; no changes",
				logger.String("a", out.A),
				logger.Int("rank", out.RankA),
			)
			metrics.RecordMatchApplied(metrics.CaseNoChange)
			return nil
		}

		hi, lo := out.A, out.B
		hiRank, loRank := out.RankA, out.RankB
		if out.RankB < out.RankA {
			hi, lo = out.B, out.A
			hiRank, loRank = out.RankB, out.RankA
		}

		hiWins := (out.Outcome == model.OutcomeAWins && hi == out.A) ||
			(out.Outcome == model.OutcomeBWins && hi == out.B)

		switch {
		case hiWins:
			e.log.Info(ctx, "higher-ranked participant wins; no rank changes",
				logger.Int("hiRank", hiRank),
				logger.Int("loRank", loRank),
			)
			metrics.RecordMatchApplied(metrics.CaseNoChange)
			return nil

		case out.Outcome == model.OutcomeDraw:
			return e.applyDraw(ctx, tx, change, lo, hiRank, loRank)

		default: // upset: lower-ranked participant wins
			return e.applyUpset(ctx, tx, change, hi, lo, hiRank, loRank)
		}
	})
	if err != nil {
		return model.RankChange{}, err
	}
	return change.change, nil
}

// changeTracker maps hi/lo moves back onto the A/B participants of the
// originating match so the result reports both sides exactly.
type changeTracker struct {
	a, b   string
	change model.RankChange
}

func (t *changeTracker) setAfter(id string, rank int) {
	switch id {
	case t.a:
		t.change.AAfter = rank
	case t.b:
		t.change.BAfter = rank
	}
}

// applyDraw handles the draw case: the lower-ranked participant gains
// one position by exchanging ranks with whoever holds the slot above,
// unless the participants are adjacent.
func (e *Engine) applyDraw(ctx context.Context, tx repository.Tx, change *changeTracker, lo string, hiRank, loRank int) error {
	if loRank-hiRank == 1 {
		e.log.Info(ctx, "draw between adjacent ranks; no changes",
			logger.Int("hiRank", hiRank),
			logger.Int("loRank", loRank),
		)
		metrics.RecordMatchApplied(metrics.CaseNoChange)
		return nil
	}

	target := loRank - 1
	displaced, err := tx.ByRank(ctx, target)
	if errors.Is(err, repository.ErrNotFound) {
		// Cannot happen while the invariant holds; degrade to a no-op
		// rather than failing the match.
		e.log.Warn(ctx, "no member at draw target rank; no changes",
			logger.Int("target", target),
		)
		metrics.RecordMatchApplied(metrics.CaseNoChange)
		return nil
	}
	if err != nil {
		return err
	}

	e.log.Info(ctx, "draw exchange",
		logger.String("lo", lo),
		logger.Int("loRank", loRank),
		logger.Int("target", target),
		logger.String("displaced", displaced.ID),
	)
	if err := e.stage(ctx, tx, map[string]int{
		displaced.ID: loRank,
		lo:           target,
	}); err != nil {
		return err
	}

	change.setAfter(lo, target)
	metrics.RecordMatchApplied(metrics.CaseDrawExchange)
	return nil
}

// applyUpset handles a win by the lower-ranked participant. Adjacent
// ranks swap; otherwise the loser drops one slot, the winner climbs by
// half the rank difference, and the members in between shift by one to
// keep the permutation dense.
func (e *Engine) applyUpset(ctx context.Context, tx repository.Tx, change *changeTracker, hi, lo string, hiRank, loRank int) error {
	diff := loRank - hiRank
	if diff == 1 {
		e.log.Info(ctx, "adjacent upset; swapping ranks",
			logger.Int("hiRank", hiRank),
			logger.Int("loRank", loRank),
		)
		if err := e.stage(ctx, tx, map[string]int{
			hi: loRank,
			lo: hiRank,
		}); err != nil {
			return err
		}
		change.setAfter(hi, loRank)
		change.setAfter(lo, hiRank)
		metrics.RecordMatchApplied(metrics.CaseSwap)
		return nil
	}

	moveUp := diff / 2
	newLo := loRank - moveUp
	newHi := hiRank + 1
	if newHi >= newLo {
		// diff == 2 only: the winner lands directly below the loser.
		// Dropping the loser a slot as well would put both on the same
		// rank, so the loser keeps its slot.
		newHi = hiRank
	}

	e.log.Info(ctx, "upset reshuffle",
		logger.String("winner", lo),
		logger.Int("loRank", loRank),
		logger.Int("newLo", newLo),
		logger.String("loser", hi),
		logger.Int("hiRank", hiRank),
		logger.Int("newHi", newHi),
	)

	// The two displacement bands overlap the participants' original
	// slots, so every target is computed from a full snapshot before
	// any write happens; in-place updates would collide mid-sequence.
	members, err := tx.ListByRank(ctx)
	if err != nil {
		return err
	}

	targets := make(map[string]int, len(members))
	for _, m := range members {
		switch {
		case m.ID == hi:
			targets[m.ID] = newHi
		case m.ID == lo:
			targets[m.ID] = newLo
		case m.Rank > hiRank && m.Rank <= newHi:
			// The loser vacated its slot dropping one position; whoever
			// held the loser's new slot closes up by one. Members
			// between newHi and newLo are untouched: shifting the whole
			// (hiRank, newLo) band would collide with the loser's new
			// rank and break the permutation.
			targets[m.ID] = m.Rank - 1
		case m.Rank >= newLo && m.Rank < loRank:
			// Make room for the winner's upward move.
			targets[m.ID] = m.Rank + 1
		default:
			targets[m.ID] = m.Rank
		}
	}

	if err := e.stageAll(ctx, tx, members, targets); err != nil {
		return err
	}

	change.setAfter(hi, newHi)
	change.setAfter(lo, newLo)
	metrics.RecordMatchApplied(metrics.CaseReshuffle)
	return nil
}

// stage applies a small assignment map using the two-phase discipline.
// The members involved are read from the store to learn their current
// ranks, then staged like any other assignment.
func (e *Engine) stage(ctx context.Context, tx repository.Tx, targets map[string]int) error {
	members := make([]model.Member, 0, len(targets))
	for id := range targets {
		m, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		members = append(members, m)
	}
	return e.stageAll(ctx, tx, members, targets)
}

// stageAll writes the assignment map in two phases: every member whose
// target differs from its current rank first moves to a unique negative
// placeholder, then to its final rank. Members already on their target
// are never written, so no instant exists where two members share a
// rank.
func (e *Engine) stageAll(ctx context.Context, tx repository.Tx, members []model.Member, targets map[string]int) error {
	placeholder := e.placeholderBase
	staged := make([]model.Member, 0, len(members))
	for _, m := range members {
		target, ok := targets[m.ID]
		if !ok || target == m.Rank {
			continue
		}
		if err := tx.SetRank(ctx, m.ID, placeholder); err != nil {
			return fmt.Errorf("stage %q: %w", m.ID, err)
		}
		placeholder--
		staged = append(staged, m)
	}
	for _, m := range staged {
		if err := tx.SetRank(ctx, m.ID, targets[m.ID]); err != nil {
			return fmt.Errorf("finalize %q: %w", m.ID, err)
		}
	}
	metrics.RecordStagedWrites(len(staged))
	return nil
}

// ValidateIntegrity reports whether the stored ranks form the exact
// sequence 1..N. It never mutates anything; drift is surfaced loudly
// and fixed only by an explicit Repair call.
func (e *Engine) ValidateIntegrity(ctx context.Context) (bool, error) {
	ok := true
	err := e.store.View(ctx, func(tx repository.Tx) error {
		members, err := tx.ListByRank(ctx)
		if err != nil {
			return err
		}
		for i, m := range members {
			if m.Rank != i+1 {
				e.log.Error(ctx, "ranking integrity check failed",
					logger.String("member", m.ID),
					logger.Int("rank", m.Rank),
					logger.Int("expected", i+1),
				)
				ok = false
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	metrics.RecordIntegrityCheck(ok)
	return ok, nil
}

// Repair reassigns rank i+1 to the i-th member of the rank-ordered
// list, fixing any accumulated gaps without disturbing relative order.
// Idempotent: repairing a valid ladder writes nothing.
func (e *Engine) Repair(ctx context.Context) error {
	err := e.store.Update(ctx, func(tx repository.Tx) error {
		members, err := tx.ListByRank(ctx)
		if err != nil {
			return err
		}
		targets := make(map[string]int, len(members))
		for i, m := range members {
			targets[m.ID] = i + 1
			if m.Rank != i+1 {
				e.log.Info(ctx, "repairing rank",
					logger.String("member", m.ID),
					logger.Int("from", m.Rank),
					logger.Int("to", i+1),
				)
			}
		}
		return e.stageAll(ctx, tx, members, targets)
	})
	if err != nil {
		return err
	}
	metrics.RecordRepair()
	return nil
}
