package resource

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell expected outcomes, such as
// an already-removed network, apart from real failures without matching
// strings. Kind implements error, which makes errors.Is(err, KindNotFound)
// work through any amount of wrapping.
type Kind string

const (
	KindNotFound      Kind = "NotFound"
	KindConflict      Kind = "Conflict"
	KindExhausted     Kind = "Exhausted"
	KindInstanceError Kind = "InstanceErrorState"
	KindTimeout       Kind = "Timeout"
	KindCancelled     Kind = "OperationCancelled"
)

func (k Kind) Error() string {
	return string(k)
}

// Error is a classified failure about one resource.
type Error struct {
	Kind Kind
	// Resource is the resource class, e.g. "network" or "port".
	Resource string
	// Ref is the ID or name the operation was looking at.
	Ref     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	var s string
	switch {
	case e.Resource != "" && e.Ref != "":
		s = fmt.Sprintf("%s %q: %s", e.Resource, e.Ref, msg)
	case e.Resource != "":
		s = fmt.Sprintf("%s: %s", e.Resource, msg)
	default:
		s = msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// ErrSubnetsExhausted is returned when every candidate /24 in the private
// ranges overlaps a reserved or allocated block.
var ErrSubnetsExhausted = &Error{
	Kind:     KindExhausted,
	Resource: "subnet",
	Message:  "no free /24 left in 10.0.0.0/8, 172.16.0.0/12 or 192.168.0.0/16",
}

// NewNotFound reports that a lookup by ID or name matched nothing.
func NewNotFound(resource, ref string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Ref: ref, Message: "not found"}
}

// NewConflict reports that the API refused a write because of existing state.
func NewConflict(resource, ref string, err error) *Error {
	return &Error{Kind: KindConflict, Resource: resource, Ref: ref, Message: "conflict", Err: err}
}

// NewInstanceError reports an instance that reached ERROR while an operation
// waited on it. Message carries the remote fault.
func NewInstanceError(inst *Instance) *Error {
	fault := inst.Fault
	if fault == "" {
		fault = "no fault message reported"
	}
	return &Error{Kind: KindInstanceError, Resource: "instance", Ref: inst.Name, Message: fault}
}

// NewPortNotAttached reports that an attached port never showed up in the
// instance's interface list.
func NewPortNotAttached(portID, instanceName string) *Error {
	return &Error{
		Kind:     KindTimeout,
		Resource: "port",
		Ref:      portID,
		Message:  fmt.Sprintf("not attached to instance %q", instanceName),
	}
}

// NewPortNotGone reports that a detached port was still present after the
// wait for its removal.
func NewPortNotGone(portID string) *Error {
	return &Error{Kind: KindTimeout, Resource: "port", Ref: portID, Message: "still present after detach"}
}

// NewCancelled reports an operation stopped by cancellation before it
// finished. cause is usually ctx.Err().
func NewCancelled(operation string, cause error) *Error {
	return &Error{Kind: KindCancelled, Resource: operation, Message: "operation cancelled", Err: cause}
}

// KindOf returns the kind of a classified error. Bare context cancellation
// maps to KindCancelled and a deadline to KindTimeout. Unclassified errors
// return the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return ""
}

// IsNotFound reports whether err is classified as NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, KindNotFound)
}

// IsConflict reports whether err is classified as Conflict.
func IsConflict(err error) bool {
	return errors.Is(err, KindConflict)
}
