package session

import "errors"

var (
	ErrInvalidID   = errors.New("invalid session id")
	ErrInvalidTurn = errors.New("invalid turn")
	ErrLockTimeout = errors.New("timed out waiting for session lock")
	ErrPersist     = errors.New("session persistence failed")
)
