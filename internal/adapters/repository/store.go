// Package repository defines the ranked-member store interface and errors.
package repository

import (
	"context"

	"github.com/okian/ladder/internal/domain/model"
)

// Store provides transactional access to the ranked-member state.
//
// The ranking engine performs its whole read-compute-write cycle inside
// a single Update call; implementations must serialize Update calls and
// apply their writes atomically, so a failure mid-sequence leaves the
// pre-call permutation intact.
type Store interface {
	// Update runs fn inside a writable transaction. If fn returns an
	// error the transaction is rolled back and the error is returned.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn inside a read-only transaction. Writes through the
	// supplied Tx fail with ErrReadOnly.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the store's resources.
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// ListByRank returns all members ordered by rank ascending.
	ListByRank(ctx context.Context) ([]model.Member, error)

	// Get returns the member with the given identity.
	// Returns ErrNotFound if the identity is unknown.
	Get(ctx context.Context, id string) (model.Member, error)

	// ByRank returns the member currently holding rank.
	// Returns ErrNotFound if no member holds it.
	ByRank(ctx context.Context, rank int) (model.Member, error)

	// SetRank persists a new rank for the member. Negative ranks are
	// valid placeholder values. A write that would leave two members on
	// the same rank fails hard with ErrDuplicateRank; it is never
	// coalesced, so staging bugs surface instead of being masked.
	SetRank(ctx context.Context, id string, rank int) error

	// Insert adds a new member at the rank it carries. The caller is
	// responsible for picking a free rank (normally N+1).
	Insert(ctx context.Context, m model.Member) error

	// Delete removes a member, leaving a gap at its former rank. The
	// caller closes the gap with the usual shift discipline.
	Delete(ctx context.Context, id string) error

	// Count returns the number of members tracked.
	Count(ctx context.Context) (int, error)
}
