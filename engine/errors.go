package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder rejects submissions with a non-positive price or
	// quantity. The book is left untouched.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDuplicateAgent rejects registration of an agent whose id is
	// already present. The registry is left untouched.
	ErrDuplicateAgent = errors.New("duplicate agent id")
)

// CallbackError wraps an error returned by an agent callback. It propagates
// out of Engine.Run with the failing agent and tick attached; the tick it
// interrupted is not rolled back.
type CallbackError struct {
	AgentID  string
	Tick     uint64
	Callback string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("tick %d: agent %s: %s: %v", e.Tick, e.AgentID, e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
