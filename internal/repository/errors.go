package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a version-checked update matched no row because the
	// record was changed since it was read.
	ErrVersionConflict = errors.New("record was modified concurrently")
)
