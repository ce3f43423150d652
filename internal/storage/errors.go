package storage

import "errors"

var (
	// ErrDuplicateKey is returned by Insert when a lead with the same
	// external_id is already present. Callers treat it as a normal skip.
	ErrDuplicateKey = errors.New("lead already exists")

	// ErrNotFound is returned by updates targeting an unknown external_id.
	ErrNotFound = errors.New("lead not found")

	// ErrStoreUnavailable wraps connectivity-level store failures. An
	// ingestion cycle aborts cleanly when it sees this.
	ErrStoreUnavailable = errors.New("store unavailable")
)
