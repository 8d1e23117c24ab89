package domain

import "errors"

var (
	// ErrMissingFields is returned when match creation lacks questions,
	// subject, or year level.
	ErrMissingFields = errors.New("missing required match fields")
	// ErrMatchNotFound indicates the match id is unknown to the registry.
	ErrMatchNotFound = errors.New("match not found")
	// ErrQuestionSetNotFound indicates no stored question content exists for
	// a subject and year level.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
