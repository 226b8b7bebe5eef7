package provisioning

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/oscp/internal/platform/openstack"
)

// Ensure runs a find-or-create operation and logs whether the resource was
// found or created. id extracts the resource ID for the log line.
func Ensure[T any](ctx context.Context, log logr.Logger, op *openstack.EnsureOperation[T], id func(*T) string) (*T, error) {
	res, created, err := op.Execute(ctx)
	if err != nil {
		return nil, err
	}
	ev := Event{Type: EventResourceExists, Kind: op.ResourceType, Name: op.Name, ID: id(res)}
	if created {
		ev.Type = EventResourceCreated
	}
	LogEvent(log, ev)
	return res, nil
}

// Delete runs a delete operation and logs its outcome. name is only used in
// the log line and may be empty.
func Delete(ctx context.Context, log logr.Logger, op *openstack.DeleteOperation, name string) (openstack.DeleteOutcome, error) {
	outcome, err := op.Execute(ctx)
	if err != nil {
		return outcome, err
	}
	switch outcome {
	case openstack.Deleted:
		LogEvent(log, Event{Type: EventResourceDeleted, Kind: op.ResourceType, Name: name, ID: op.ID})
	case openstack.AlreadyGone:
		LogEvent(log, Event{Type: EventResourceAbsent, Kind: op.ResourceType, Name: name, ID: op.ID})
	case openstack.StillInUse:
		log.Info(op.ResourceType+" still in use, keeping it", "name", name, "id", op.ID)
	}
	return outcome, nil
}
