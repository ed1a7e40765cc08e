package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// openPGStore connects to the database named by LADDER_TEST_PG_DSN, or
// skips the test when no database is available.
func openPGStore(t *testing.T, ctx context.Context) *repository.PGStore {
	t.Helper()
	dsn := os.Getenv("LADDER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LADDER_TEST_PG_DSN not set; skipping postgres store tests")
	}
	store, err := repository.NewPGStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	return store
}

func TestPGStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openPGStore(t, ctx)
	defer func() {
		_ = store.Close()
	}()

	// Unique IDs and high ranks keep runs isolated on a shared database.
	a := "pgtest-" + uuid.NewString()
	b := "pgtest-" + uuid.NewString()

	Convey("Given two members inserted in one transaction", t, func() {
		err := store.Update(ctx, func(tx repository.Tx) error {
			if err := tx.Insert(ctx, model.Member{ID: a, Name: "A", Rank: 100001}); err != nil {
				return err
			}
			return tx.Insert(ctx, model.Member{ID: b, Name: "B", Rank: 100002})
		})
		So(err, ShouldBeNil)

		defer func() {
			_ = store.Update(ctx, func(tx repository.Tx) error {
				_ = tx.Delete(ctx, a)
				_ = tx.Delete(ctx, b)
				return nil
			})
		}()

		Convey("When one is read back", func() {
			var m model.Member
			err := store.View(ctx, func(tx repository.Tx) error {
				var err error
				m, err = tx.Get(ctx, a)
				return err
			})

			Convey("Then the row round-trips", func() {
				So(err, ShouldBeNil)
				So(m.Name, ShouldEqual, "A")
				So(m.Rank, ShouldEqual, 100001)
			})
		})

		Convey("When a write targets a held rank", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, a, 100002)
			})

			Convey("Then the unique constraint surfaces as ErrDuplicateRank", func() {
				So(err, ShouldWrap, repository.ErrDuplicateRank)
			})
		})

		Convey("When an update fails midway", func() {
			err := store.Update(ctx, func(tx repository.Tx) error {
				if err := tx.SetRank(ctx, a, 100003); err != nil {
					return err
				}
				return context.Canceled
			})

			Convey("Then the transaction rolls back", func() {
				So(err, ShouldNotBeNil)
				var m model.Member
				verr := store.View(ctx, func(tx repository.Tx) error {
					var err error
					m, err = tx.Get(ctx, a)
					return err
				})
				So(verr, ShouldBeNil)
				So(m.Rank, ShouldEqual, 100001)
			})
		})

		Convey("When a view attempts a write", func() {
			err := store.View(ctx, func(tx repository.Tx) error {
				return tx.SetRank(ctx, a, 100004)
			})

			Convey("Then the transaction is read-only", func() {
				So(err, ShouldWrap, repository.ErrReadOnly)
			})
		})
	})
}
