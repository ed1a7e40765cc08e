package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/okian/ladder/internal/adapters/repository"
	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// startedService builds a service over a seeded in-memory store.
func startedService(ctx context.Context, n int) (*service.Service, error) {
	members := make([]model.Member, 0, n)
	for i := 1; i <= n; i++ {
		members = append(members, model.Member{
			ID:   fmt.Sprintf("m%d", i),
			Name: fmt.Sprintf("Member %d", i),
			Rank: i,
		})
	}
	svc := service.New(
		service.WithStore(repository.NewMemStore(repository.WithMembers(members))),
	)
	return svc, svc.Start(ctx)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service on the memory backend", t, func() {
		svc := service.New(service.WithBackend(service.BackendMemory))

		Convey("When it starts", func() {
			err := svc.Start(ctx)

			Convey("Then it is running and starting again is a no-op", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)

				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["backend"], ShouldEqual, service.BackendMemory)

				svc.Stop()
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})

	Convey("Given an unknown backend", t, func() {
		svc := service.New(service.WithBackend("etcd"))

		Convey("Then Start fails", func() {
			So(svc.Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestServiceApplyOutcome(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with six members", t, func() {
		svc, err := startedService(ctx, 6)
		So(err, ShouldBeNil)
		defer svc.Stop()

		Convey("When a match with an ID is applied twice", func() {
			out := model.MatchOutcome{
				MatchID: "match-1",
				A:       "m2", B: "m5", RankA: 2, RankB: 5,
				Outcome: model.OutcomeBWins,
			}
			first, firstErr := svc.ApplyOutcome(ctx, out)
			_, secondErr := svc.ApplyOutcome(ctx, out)

			Convey("Then only the first application moves ranks", func() {
				So(firstErr, ShouldBeNil)
				So(first.Moved(), ShouldBeTrue)
				So(secondErr, ShouldWrap, service.ErrDuplicateMatch)

				// m5 won with diff 3: m5 -> 4, m2 -> 3.
				m5, err := svc.Member(ctx, "m5")
				So(err, ShouldBeNil)
				So(m5.Rank, ShouldEqual, 4)
				m2, err := svc.Member(ctx, "m2")
				So(err, ShouldBeNil)
				So(m2.Rank, ShouldEqual, 3)
			})
		})

		Convey("When a match without an ID is applied twice", func() {
			// Both sides swap back and forth: no dedupe without an ID.
			_, err1 := svc.ApplyOutcome(ctx, model.MatchOutcome{
				A: "m1", B: "m2", RankA: 1, RankB: 2, Outcome: model.OutcomeBWins,
			})
			_, err2 := svc.ApplyOutcome(ctx, model.MatchOutcome{
				A: "m1", B: "m2", RankA: 2, RankB: 1, Outcome: model.OutcomeAWins,
			})

			Convey("Then both are applied", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				m1, err := svc.Member(ctx, "m1")
				So(err, ShouldBeNil)
				So(m1.Rank, ShouldEqual, 1)
			})
		})

		Convey("When a match with an ID fails in the engine", func() {
			out := model.MatchOutcome{
				MatchID: "match-ghost",
				A:       "m1", B: "ghost", RankA: 1, RankB: 4,
				Outcome: model.OutcomeBWins,
			}
			_, err := svc.ApplyOutcome(ctx, out)

			Convey("Then the ID is released for retry", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
				// Retrying must not be rejected as a duplicate.
				_, retryErr := svc.ApplyOutcome(ctx, out)
				So(retryErr, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}

func TestServiceMemberLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with four members", t, func() {
		svc, err := startedService(ctx, 4)
		So(err, ShouldBeNil)
		defer svc.Stop()

		Convey("When a member is added", func() {
			added, err := svc.AddMember(ctx, "Nona")

			Convey("Then it enters at the bottom of the ladder", func() {
				So(err, ShouldBeNil)
				So(added.ID, ShouldNotBeEmpty)
				So(added.Rank, ShouldEqual, 5)

				ok, err := svc.ValidateIntegrity(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a mid-ladder member is removed", func() {
			err := svc.RemoveMember(ctx, "m2")

			Convey("Then everyone below shifts up and ranks stay dense", func() {
				So(err, ShouldBeNil)

				standings, err := svc.Standings(ctx)
				So(err, ShouldBeNil)
				So(standings, ShouldHaveLength, 3)
				So(standings[0].ID, ShouldEqual, "m1")
				So(standings[1].ID, ShouldEqual, "m3")
				So(standings[1].Rank, ShouldEqual, 2)
				So(standings[2].ID, ShouldEqual, "m4")
				So(standings[2].Rank, ShouldEqual, 3)

				ok, err := svc.ValidateIntegrity(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When an unknown member is removed", func() {
			err := svc.RemoveMember(ctx, "ghost")

			Convey("Then the call fails and nothing shifts", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
				standings, serr := svc.Standings(ctx)
				So(serr, ShouldBeNil)
				So(standings, ShouldHaveLength, 4)
			})
		})

		Convey("When a rank is looked up directly", func() {
			m, err := svc.MemberByRank(ctx, 3)

			Convey("Then the holder is returned", func() {
				So(err, ShouldBeNil)
				So(m.ID, ShouldEqual, "m3")
			})
		})

		Convey("When stats are gathered", func() {
			stats := svc.GetStats()

			Convey("Then they reflect the current ladder", func() {
				So(stats["members"], ShouldEqual, 4)
				So(stats["started"], ShouldBeTrue)
			})
		})
	})
}

func TestServiceRepair(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a drifted store", t, func() {
		svc := service.New(
			service.WithStore(repository.NewMemStore(repository.WithMembers([]model.Member{
				{ID: "a", Rank: 3},
				{ID: "b", Rank: 6},
			}))),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then validation fails until Repair runs", func() {
			ok, err := svc.ValidateIntegrity(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			So(svc.Repair(ctx), ShouldBeNil)

			ok, err = svc.ValidateIntegrity(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})
}
