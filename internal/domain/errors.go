package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidTrade  = errors.New("invalid trade")
	ErrOutOfOrder    = errors.New("trade out of order")
	ErrClosed        = errors.New("pipeline closed")
	ErrNotRunning    = errors.New("pipeline not running")
	ErrQueueFull     = errors.New("queue full")
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")
)
