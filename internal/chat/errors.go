package chat

import "fmt"

// ValidationError reports missing or malformed caller input. It is surfaced
// before any persistence or model call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PersistenceError reports a store failure. Whether it surfaces depends on
// the write: user-turn writes abort the turn, post-stream writes are logged
// and swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ModelInvocationError reports a provider call failure or timeout on the
// primary generation path.
type ModelInvocationError struct {
	Provider string
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed (%s): %v", e.Provider, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// RetrievalError reports a vector store failure. It never reaches the
// caller; the manager substitutes a degraded placeholder instead.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
