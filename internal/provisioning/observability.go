package provisioning

import (
	"github.com/go-logr/logr"
)

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventResourceCreating indicates a resource is being created.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates a resource was created successfully.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates a resource already exists.
	EventResourceExists EventType = "resource.exists"
	// EventResourceDeleting indicates a resource is being deleted.
	EventResourceDeleting EventType = "resource.deleting"
	// EventResourceDeleted indicates a resource was deleted successfully.
	EventResourceDeleted EventType = "resource.deleted"
	// EventResourceAbsent indicates a resource to delete was already gone.
	EventResourceAbsent EventType = "resource.absent"
	// EventWaitTimedOut indicates a best-effort wait gave up.
	EventWaitTimedOut EventType = "wait.timed_out"
)

// Event represents a structured provisioning event.
type Event struct {
	Type EventType
	// Kind is the resource class, e.g. "network" or "trunk".
	Kind string
	Name string
	ID   string
	// Fields are extra key/value pairs appended to the log line.
	Fields []any
}

// LogEvent writes ev as one structured log line. Deleting and creating
// events are debug lines; the rest are info.
func LogEvent(log logr.Logger, ev Event) {
	kv := []any{"event", string(ev.Type), "kind", ev.Kind}
	if ev.Name != "" {
		kv = append(kv, "name", ev.Name)
	}
	if ev.ID != "" {
		kv = append(kv, "id", ev.ID)
	}
	kv = append(kv, ev.Fields...)

	switch ev.Type {
	case EventResourceCreating, EventResourceDeleting:
		log.V(1).Info(ev.Kind+" "+verb(ev.Type), kv...)
	default:
		log.Info(ev.Kind+" "+verb(ev.Type), kv...)
	}
}

func verb(t EventType) string {
	switch t {
	case EventResourceCreating:
		return "creating"
	case EventResourceCreated:
		return "created"
	case EventResourceExists:
		return "already exists"
	case EventResourceDeleting:
		return "deleting"
	case EventResourceDeleted:
		return "deleted"
	case EventResourceAbsent:
		return "already gone"
	case EventWaitTimedOut:
		return "wait timed out"
	default:
		return string(t)
	}
}
