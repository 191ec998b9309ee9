package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyQuestion   = errors.New("question must not be empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
)
