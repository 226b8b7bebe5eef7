package openstack

import (
	"context"
	"fmt"

	"github.com/imamik/oscp/internal/resource"
)

// EnsureOperation encapsulates find-or-create logic for a resource addressed
// by name. Callers hold whatever lock makes the find and the create atomic.
//
// Usage example:
//
//	port, created, err := (&EnsureOperation[resource.Port]{
//	    Name:         name,
//	    ResourceType: "port",
//	    Find:         func(ctx context.Context, name string) (*resource.Port, error) { ... },
//	    Create: func(ctx context.Context) (*resource.Port, error) {
//	        return cloud.CreatePort(ctx, PortCreateOpts{Name: name, NetworkID: networkID})
//	    },
//	}).Execute(ctx)
type EnsureOperation[T any] struct {
	Name         string
	ResourceType string

	// Find returns the resource named Name, or nil when there is none. A
	// NotFound error also counts as none; other errors are returned as is.
	Find func(ctx context.Context, name string) (*T, error)

	// Create creates the resource.
	Create func(ctx context.Context) (*T, error)

	// Validate checks that an existing resource matches the desired state
	// (optional).
	Validate func(existing *T) error
}

// Execute returns the existing resource, or creates it when there is none.
// created reports which of the two happened.
func (op *EnsureOperation[T]) Execute(ctx context.Context) (_ *T, created bool, err error) {
	existing, err := op.Find(ctx, op.Name)
	if err != nil && !resource.IsNotFound(err) {
		return nil, false, err
	}
	if err == nil && existing != nil {
		if op.Validate != nil {
			if err := op.Validate(existing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}

	res, err := op.Create(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create %s %s: %w", op.ResourceType, op.Name, err)
	}
	return res, true, nil
}

// DeleteOutcome tells what a DeleteOperation found.
type DeleteOutcome int

const (
	// Deleted means the resource existed and is gone now.
	Deleted DeleteOutcome = iota
	// AlreadyGone means the resource did not exist.
	AlreadyGone
	// StillInUse means the cloud refused the delete because something still
	// references the resource. Only reported with KeepInUse.
	StillInUse
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyGone:
		return "already gone"
	case StillInUse:
		return "still in use"
	default:
		return fmt.Sprintf("DeleteOutcome(%d)", int(o))
	}
}

// DeleteOperation encapsulates idempotent deletion of a resource by ID.
// NotFound is success.
//
// Usage example:
//
//	outcome, err := (&DeleteOperation{
//	    ID:           portID,
//	    ResourceType: "port",
//	    Delete:       cloud.DeletePort,
//	}).Execute(ctx)
type DeleteOperation struct {
	ID           string
	ResourceType string

	// Delete removes the resource.
	Delete func(ctx context.Context, id string) error

	// KeepInUse turns a Conflict into StillInUse instead of an error, for
	// shared resources that the last user removes.
	KeepInUse bool
}

// Execute performs the delete.
func (op *DeleteOperation) Execute(ctx context.Context) (DeleteOutcome, error) {
	err := op.Delete(ctx, op.ID)
	switch {
	case err == nil:
		return Deleted, nil
	case resource.IsNotFound(err):
		return AlreadyGone, nil
	case op.KeepInUse && isInUse(err):
		return StillInUse, nil
	default:
		return 0, fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
	}
}
