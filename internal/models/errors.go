package models

import "errors"

var (
	// ErrInvalidKey is returned when a course key uses the deprecated
	// slash-separated format or cannot be parsed at all. This is a caller
	// input error and is never retried.
	ErrInvalidKey = errors.New("invalid course key")

	// ErrOutlineNotFound is returned when no outline has been stored for an
	// otherwise well-formed course key, typically because the course has not
	// been published yet.
	ErrOutlineNotFound = errors.New("course outline not found")

	// ErrInvalidOutline is returned when outline value construction fails
	// validation, e.g. a section references a sequence missing from the flat
	// sequence index.
	ErrInvalidOutline = errors.New("invalid course outline")
)
