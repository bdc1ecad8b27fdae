package repositories

import "errors"

var (
	// ErrNotFound indicates the requested user or post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the write would duplicate a unique id, username or email.
	ErrConflict = errors.New("already exists")
)
