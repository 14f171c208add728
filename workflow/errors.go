package workflow

import "errors"

var (
	// ErrStoreRequired is returned when a checkpoint repository is not provided.
	ErrStoreRequired = errors.New("checkpoint repository required")

	// ErrGraphRequired is returned when NewEngine receives a nil graph.
	ErrGraphRequired = errors.New("graph required")

	// ErrThreadRequired is returned when Run receives an empty thread id.
	ErrThreadRequired = errors.New("thread id required")

	// ErrThreadNotFound is returned when a thread has no checkpoint.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNotSuspended is returned by Resume when the thread has no pending interrupt.
	ErrNotSuspended = errors.New("thread is not suspended")
)
