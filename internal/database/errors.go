package database

import "errors"

var (
	// ErrNotFound is returned when the database file does not exist and
	// creation was not requested.
	ErrNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")
)
