package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/ladder/internal/adapters/repository"
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

func TestMemStore_Transactions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store seeded with three members", t, func() {
		store := repository.NewMemStore(repository.WithMembers([]model.Member{
			{ID: "a", Name: "Anna", Rank: 1},
			{ID: "b", Name: "Boris", Rank: 2},
			{ID: "c", Name: "Clara", Rank: 3},
		}))

		Convey("When a view reads by rank", func() {
			var members []model.Member
			err := store.View(ctx, func(tx repository.Tx) error {
				var err error
				members, err = tx.ListByRank(ctx)
				return err
			})

			Convey("Then members come back ordered best first", func() {
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 3)
				So(members[0].ID, ShouldEqual, "a")
				So(members[2].ID, ShouldEqual, "c")
			})
		})

		Convey("When an update succeeds", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.Insert(ctx, model.Member{ID: "d", Rank: 4})
			})

			Convey("Then the write is visible afterwards", func() {
				So(err, ShouldBeNil)
				var m model.Member
				verr := store.View(ctx, func(tx repository.Tx) error {
					var err error
					m, err = tx.Get(ctx, "d")
					return err
				})
				So(verr, ShouldBeNil)
				So(m.Rank, ShouldEqual, 4)
			})
		})

		Convey("When an update fails midway", func() {
			boom := errors.New("boom")
			err := store.Update(ctx, func(tx repository.Tx) error {
				if err := tx.SetRank(ctx, "a", 9); err != nil {
					return err
				}
				return boom
			})

			Convey("Then none of its writes survive", func() {
				So(err, ShouldEqual, boom)
				var m model.Member
				verr := store.View(ctx, func(tx repository.Tx) error {
					var err error
					m, err = tx.Get(ctx, "a")
					return err
				})
				So(verr, ShouldBeNil)
				So(m.Rank, ShouldEqual, 1)
			})
		})

		Convey("When a write targets a held rank", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, "a", 2)
			})

			Convey("Then the write fails loudly instead of coalescing", func() {
				So(err, ShouldWrap, repository.ErrDuplicateRank)
			})
		})

		Convey("When a member is re-written to its own rank", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, "a", 1)
			})

			Convey("Then the self-assignment is allowed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When an insert reuses an existing identity", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.Insert(ctx, model.Member{ID: "a", Rank: 9})
			})

			Convey("Then the insert is rejected", func() {
				So(err, ShouldWrap, repository.ErrDuplicateID)
			})
		})

		Convey("When a view attempts a write", func() {
			err := store.View(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, "a", 5)
			})

			Convey("Then the transaction is read-only", func() {
				So(err, ShouldWrap, repository.ErrReadOnly)
			})
		})

		Convey("When a member is deleted", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.Delete(ctx, "b")
			})

			Convey("Then lookups by id and by rank both miss", func() {
				So(err, ShouldBeNil)
				verr := store.View(ctx, func(tx repository.Tx) error {
					if _, err := tx.Get(ctx, "b"); !errors.Is(err, repository.ErrNotFound) {
						return errors.New("expected not found by id")
					}
					if _, err := tx.ByRank(ctx, 2); !errors.Is(err, repository.ErrNotFound) {
						return errors.New("expected not found by rank")
					}
					n, err := tx.Count(ctx)
					if err != nil {
						return err
					}
					So(n, ShouldEqual, 2)
					return nil
				})
				So(verr, ShouldBeNil)
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then both transaction kinds fail", func() {
				uerr := store.Update(ctx, func(repository.Tx) error { return nil })
				verr := store.View(ctx, func(repository.Tx) error { return nil })
				So(uerr, ShouldWrap, repository.ErrClosed)
				So(verr, ShouldWrap, repository.ErrClosed)
			})
		})
	})
}

func TestMemStore_StagedRewrite(t *testing.T) {
	ctx := context.Background()

	Convey("Given two members whose ranks must be exchanged", t, func() {
		store := repository.NewMemStore(repository.WithMembers([]model.Member{
			{ID: "a", Rank: 1},
			{ID: "b", Rank: 2},
		}))

		Convey("When the exchange is written directly", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, "a", 2)
			})

			Convey("Then the collision surfaces", func() {
				So(err, ShouldWrap, repository.ErrDuplicateRank)
			})
		})

		Convey("When the exchange goes through placeholders", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				if err := tx.SetRank(ctx, "a", -1); err != nil {
					return err
				}
				if err := tx.SetRank(ctx, "b", 1); err != nil {
					return err
				}
				return tx.SetRank(ctx, "a", 2)
			})

			Convey("Then it commits cleanly", func() {
				So(err, ShouldBeNil)
				verr := store.View(ctx, func(tx repository.Tx) error {
					a, err := tx.Get(ctx, "a")
					if err != nil {
						return err
					}
					b, err := tx.Get(ctx, "b")
					if err != nil {
						return err
					}
					So(a.Rank, ShouldEqual, 2)
					So(b.Rank, ShouldEqual, 1)
					return nil
				})
				So(verr, ShouldBeNil)
			})
		})
	})
}
