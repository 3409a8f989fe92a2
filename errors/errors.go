package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrConsumerOverflow marks a connection whose outbound queue is full.
	// The connection is dropped; delivery to everyone else continues.
	ErrConsumerOverflow = fmt.Errorf("outbound queue overflow")

	// ErrCatchupHorizonExceeded means the requested position predates the
	// retained history. The client must resynchronize chat state instead
	// of catching up incrementally.
	ErrCatchupHorizonExceeded = fmt.Errorf("catch-up horizon exceeded")

	ErrChatNotFound      = fmt.Errorf("chat not found")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrWorkspaceNotFound = fmt.Errorf("workspace not found")
	ErrEmailTaken        = fmt.Errorf("email already in use")
	ErrChatNameTaken     = fmt.Errorf("chat name already in use in workspace")
	ErrNotAMember        = fmt.Errorf("sender is not a member of the chat")
	ErrWorkspaceMismatch = fmt.Errorf("member belongs to another workspace")
	ErrEmptyMembers      = fmt.Errorf("chat member set is empty")
	ErrDuplicateMembers  = fmt.Errorf("chat member set contains duplicates")
	ErrSingleChatMembers = fmt.Errorf("single chat requires exactly two members")
	ErrSingleChatNamed   = fmt.Errorf("single chat cannot carry a name")
	ErrUnnamedChat       = fmt.Errorf("chat kind requires a name")
	ErrUnknownChatKind   = fmt.Errorf("unknown chat kind")
	ErrInvalidPassword   = fmt.Errorf("password does not meet complexity rules")
	ErrBadCredentials    = fmt.Errorf("invalid email or password")
	ErrInvalidToken      = fmt.Errorf("invalid connection token")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
)

// TransientError wraps a store failure worth retrying with backoff,
// typically a transaction conflict on the append path.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient reports whether err (or anything it wraps) may succeed on retry.
func Transient(err error) bool {
	var te *TransientError
	return stderrors.As(err, &te)
}

// DurabilityError means a change event could not be committed atomically
// with its row mutation. The whole write fails; nothing was applied.
type DurabilityError struct {
	Op  string
	Err error
}

func (e *DurabilityError) Error() string {
	return fmt.Sprintf("durability failure in %s: %v", e.Op, e.Err)
}

func (e *DurabilityError) Unwrap() error { return e.Err }
