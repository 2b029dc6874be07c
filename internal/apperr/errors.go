package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNotRunning = errors.New("indexing is not active")
)
