package memory

import "errors"

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
	ErrLoadFailed = errors.New("load failed")
	ErrSaveFailed = errors.New("save failed")
	ErrCorrupt    = errors.New("corrupt snapshot")
)
