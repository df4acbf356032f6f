package session

import "errors"

var (
	// ErrRepositoryRequired is returned when a session repository is not provided.
	ErrRepositoryRequired = errors.New("session repository required")

	// ErrSessionNotFound is returned when operating on an unknown session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidHistorySize is returned for a history size below one.
	ErrInvalidHistorySize = errors.New("history size must be greater than 0")
)
