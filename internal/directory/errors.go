package directory

import "errors"

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: conflict")
	ErrInvalidInput = errors.New("directory: invalid input")
)
