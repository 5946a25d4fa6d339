package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a value is malformed or out of range
	// for the statement it feeds.
	ErrInvalidInput = errors.New("invalid input")
)
