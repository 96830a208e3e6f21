package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidInput = goerr.New("invalid input")
	ErrDuplicateKey = goerr.New("duplicate key")
	ErrNotFound     = goerr.New("memory not found")
	ErrStorage      = goerr.New("storage failure")
)

// Kind names reported to callers in error responses.
const (
	KindInvalidInput    = "InvalidInput"
	KindDuplicateKey    = "DuplicateKey"
	KindNotFound        = "NotFound"
	KindInternalStorage = "InternalStorageError"
)

// KindOf maps err onto the caller-facing error taxonomy.
// Anything unrecognised is treated as a storage failure.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternalStorage
	}
}
