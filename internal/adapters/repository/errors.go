package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("member not found")
	ErrDuplicateID   = errors.New("duplicate member id")
	ErrDuplicateRank = errors.New("duplicate rank")
	ErrReadOnly      = errors.New("write in read-only transaction")
	ErrClosed        = errors.New("store is closed")
)
