package domain

import "errors"

// Error classes shared by adapters and use cases. Adapters wrap them with
// context; callers classify with errors.Is.
var (
	ErrValidation       = errors.New("invalid input")
	ErrFetch            = errors.New("fetch failed")
	ErrNotFound         = errors.New("not found")
	ErrEmbedUnreachable = errors.New("embed unreachable")
	ErrStorage          = errors.New("storage failure")
	ErrStream           = errors.New("stream failed")
	ErrAlreadyExists    = errors.New("record already exists")
)
