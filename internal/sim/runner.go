package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

// outcomes to draw from; draws are as likely as either win.
var outcomes = []model.Outcome{ //nolint:gochecknoglobals // static outcome pool
	model.OutcomeAWins,
	model.OutcomeBWins,
	model.OutcomeDraw,
}

// Run seeds a ladder and applies randomized matches until the configured
// count is reached or ctx is done. After every match the full 1..N
// invariant is validated; a violation stops the run immediately.
func Run(ctx context.Context, svc *service.Service, cfg *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible simulation, not crypto

	log := logger.Get().Named("sim")
	log.Info(ctx, "starting ladder simulation",
		logger.Int("members", cfg.Members),
		logger.Int("matches", cfg.Matches),
		logger.String("interval", cfg.Interval.String()),
		logger.Any("seed", cfg.Seed),
	)

	if err := seedMembers(ctx, svc, cfg, rng, stats); err != nil {
		return stats, fmt.Errorf("seeding failed: %w", err)
	}

	if ok, err := svc.ValidateIntegrity(ctx); err != nil {
		return stats, fmt.Errorf("initial integrity check: %w", err)
	} else if !ok {
		return stats, errors.New("seeded ladder failed integrity check")
	}

	if err := playMatches(ctx, svc, cfg, rng, stats, log); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	report(ctx, log, stats)
	return stats, nil
}

// seedMembers fills the ladder to the configured size. AddMember
// appends at rank N+1, so the seeded ladder is a valid permutation by
// construction.
func seedMembers(ctx context.Context, svc *service.Service, cfg *Config, rng *rand.Rand, stats *Stats) error {
	for i := 0; i < cfg.Members; i++ {
		if _, err := svc.AddMember(ctx, memberName(rng)); err != nil {
			return err
		}
		stats.MembersSeeded++
	}
	return nil
}

// playMatches runs the main simulation loop.
func playMatches(ctx context.Context, svc *service.Service, cfg *Config, rng *rand.Rand, stats *Stats, log logger.Logger) error {
	for i := 0; cfg.Matches == 0 || i < cfg.Matches; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		standings, err := svc.Standings(ctx)
		if err != nil {
			return fmt.Errorf("standings: %w", err)
		}
		if len(standings) < 2 {
			return errors.New("not enough members to play")
		}

		a := standings[rng.Intn(len(standings))]
		b := standings[rng.Intn(len(standings))]
		for b.ID == a.ID {
			b = standings[rng.Intn(len(standings))]
		}

		out := model.MatchOutcome{
			MatchID: uuid.NewString(),
			A:       a.ID,
			B:       b.ID,
			RankA:   a.Rank,
			RankB:   b.Rank,
			Outcome: outcomes[rng.Intn(len(outcomes))],
		}

		change, err := svc.ApplyOutcome(ctx, out)
		switch {
		case errors.Is(err, service.ErrDuplicateMatch):
			stats.Duplicates++
			continue
		case err != nil:
			stats.Failures++
			log.Error(ctx, "match application failed",
				logger.String("a", out.A),
				logger.String("b", out.B),
				logger.Error(err),
			)
			continue
		}

		stats.MatchesApplied++
		if change.Moved() {
			stats.MatchesMoved++
		} else {
			stats.MatchesNoChange++
		}

		ok, err := svc.ValidateIntegrity(ctx)
		if err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}
		if !ok {
			stats.IntegrityFails++
			return fmt.Errorf("integrity violated after match %d (a=%s rank %d->%d, b=%s rank %d->%d, outcome %s)",
				i+1, out.A, change.ABefore, change.AAfter, out.B, change.BBefore, change.BAfter, out.Outcome)
		}

		if cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.Interval):
			}
		}
	}
	return nil
}

// report logs the final simulation statistics.
func report(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "simulation finished",
		logger.Int("membersSeeded", stats.MembersSeeded),
		logger.Int("matchesApplied", stats.MatchesApplied),
		logger.Int("moved", stats.MatchesMoved),
		logger.Int("noChange", stats.MatchesNoChange),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failures", stats.Failures),
		logger.String("duration", stats.Duration.String()),
	)
}
