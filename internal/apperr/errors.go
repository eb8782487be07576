// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrFatal marks an unrecoverable run failure (unreadable corpus, bad
	// configuration). No index artifact is written when it is returned.
	ErrFatal = errors.New("fatal")
	// ErrValidation marks a completed run whose report holds errors.
	ErrValidation = errors.New("validation failed")
)
