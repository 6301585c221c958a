// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrVaultNotFound    = errors.New("vault not found")
	ErrNotReadable      = errors.New("note is not readable")
	ErrInvalidPath      = errors.New("invalid path")
	ErrAlreadyWatching  = errors.New("already watching")
	ErrIndexUnavailable = errors.New("index unavailable")
)
