package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/retry"
)

// Lifecycle performs instance operations and waits for their outcome.
type Lifecycle struct {
	cloud    openstack.Cloud
	network  config.Network
	timeouts config.Timeouts
	log      logr.Logger
}

// NewLifecycle creates an instance lifecycle driver.
func NewLifecycle(deps provisioning.Deps) *Lifecycle {
	return &Lifecycle{
		cloud:    deps.Cloud,
		network:  deps.Network,
		timeouts: deps.Timeouts,
		log:      deps.Log.WithName("compute"),
	}
}

// Get resolves an instance by ID, falling back to an exact name match. It
// returns the NotFound error of the ID lookup when neither matches.
func (l *Lifecycle) Get(ctx context.Context, ref string) (*resource.Instance, error) {
	inst, err := l.cloud.GetServer(ctx, ref)
	if !resource.IsNotFound(err) {
		return inst, err
	}
	byName, nameErr := l.cloud.FindServerByName(ctx, ref)
	switch {
	case resource.IsNotFound(nameErr):
		return nil, err
	case nameErr != nil:
		return nil, nameErr
	}
	return byName, nil
}

// Create builds an instance and waits until it is ACTIVE. Without an
// explicit network the instance lands on the management network.
func (l *Lifecycle) Create(ctx context.Context, opts openstack.ServerCreateOpts) (*resource.Instance, error) {
	if opts.NetworkID == "" {
		opts.NetworkID = l.network.ManagementNetworkID
	}
	provisioning.LogEvent(l.log, provisioning.Event{Type: provisioning.EventResourceCreating, Kind: "instance", Name: opts.Name})

	inst, err := l.cloud.CreateServer(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance %s: %w", opts.Name, err)
	}
	inst, err = l.waitForStatus(ctx, inst, resource.StatusActive, l.timeouts.BuildAttempts)
	if err != nil {
		return inst, err
	}
	provisioning.LogEvent(l.log, provisioning.Event{Type: provisioning.EventResourceCreated, Kind: "instance", Name: inst.Name, ID: inst.ID})
	return inst, nil
}

// PowerOn starts a stopped instance and waits until it is ACTIVE. An
// instance that is already ACTIVE is returned without any call.
func (l *Lifecycle) PowerOn(ctx context.Context, inst *resource.Instance) (*resource.Instance, error) {
	return l.power(ctx, inst, resource.StatusActive, l.cloud.StartServer)
}

// PowerOff stops an instance and waits until it is SHUTOFF. An instance that
// is already SHUTOFF is returned without any call.
func (l *Lifecycle) PowerOff(ctx context.Context, inst *resource.Instance) (*resource.Instance, error) {
	return l.power(ctx, inst, resource.StatusShutoff, l.cloud.StopServer)
}

func (l *Lifecycle) power(ctx context.Context, inst *resource.Instance, target resource.InstanceStatus, action func(context.Context, string) error) (*resource.Instance, error) {
	if inst.Status == target {
		return inst, nil
	}
	if err := action(ctx, inst.ID); err != nil {
		return inst, fmt.Errorf("failed to power %s to %s: %w", inst, target, err)
	}
	l.log.Info("power action issued", "instance", inst.Name, "target", target)
	return l.waitForStatus(ctx, inst, target, l.timeouts.StatusAttempts)
}

// waitForStatus polls the instance until it reaches target or ERROR.
func (l *Lifecycle) waitForStatus(ctx context.Context, inst *resource.Instance, target resource.InstanceStatus, attempts int) (*resource.Instance, error) {
	current := inst
	err := retry.Poll(ctx, l.timeouts.StatusInterval, attempts, func(ctx context.Context) (bool, error) {
		fetched, err := l.cloud.GetServer(ctx, inst.ID)
		if err != nil {
			return false, fmt.Errorf("failed to refresh %s: %w", inst, err)
		}
		current = fetched
		switch fetched.Status {
		case target:
			return true, nil
		case resource.StatusError:
			return false, resource.NewInstanceError(fetched)
		default:
			l.log.V(1).Info("waiting for instance", "instance", fetched.Name, "status", fetched.RawStatus, "target", target)
			return false, nil
		}
	})
	switch {
	case err == nil:
		return current, nil
	case errors.Is(err, retry.ErrExhausted):
		return current, &resource.Error{
			Kind:     resource.KindTimeout,
			Resource: "instance",
			Ref:      inst.Name,
			Message:  fmt.Sprintf("did not reach %s, last status %s", target, current.RawStatus),
			Err:      err,
		}
	case ctx.Err() != nil:
		return current, resource.NewCancelled("wait for "+string(target), err)
	default:
		return current, err
	}
}

// Interfaces lists the instance's attached interfaces.
func (l *Lifecycle) Interfaces(ctx context.Context, inst *resource.Instance) ([]resource.Interface, error) {
	ifaces, err := l.cloud.ListInterfaces(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces of %s: %w", inst, err)
	}
	return ifaces, nil
}

// FindInterfaceByNetwork returns the instance's interface on networkID, or a
// NotFound error.
func (l *Lifecycle) FindInterfaceByNetwork(ctx context.Context, inst *resource.Instance, networkID string) (*resource.Interface, error) {
	ifaces, err := l.Interfaces(ctx, inst)
	if err != nil {
		return nil, err
	}
	iface, ok := lo.Find(ifaces, func(i resource.Interface) bool { return i.NetworkID == networkID })
	if !ok {
		return nil, resource.NewNotFound("interface", inst.Name+"/"+networkID)
	}
	return &iface, nil
}

// AttachPort binds an existing port to the instance and waits until it is
// listed among the instance's interfaces. A port that is already attached
// is a no-op.
func (l *Lifecycle) AttachPort(ctx context.Context, inst *resource.Instance, portID string) (*resource.Interface, error) {
	ifaces, err := l.Interfaces(ctx, inst)
	if err != nil {
		return nil, err
	}
	if iface, ok := lo.Find(ifaces, func(i resource.Interface) bool { return i.PortID == portID }); ok {
		l.log.V(1).Info("port already attached", "instance", inst.Name, "port", portID)
		return &iface, nil
	}

	if _, err := l.cloud.AttachInterface(ctx, inst.ID, openstack.InterfaceAttachOpts{PortID: portID}); err != nil {
		return nil, fmt.Errorf("failed to attach port %s to %s: %w", portID, inst, err)
	}
	return l.waitForInterface(ctx, inst, portID)
}

// AttachNetwork attaches the instance to networkID through a port the cloud
// creates, and waits until the interface is listed.
func (l *Lifecycle) AttachNetwork(ctx context.Context, inst *resource.Instance, networkID string) (*resource.Interface, error) {
	iface, err := l.cloud.AttachInterface(ctx, inst.ID, openstack.InterfaceAttachOpts{NetworkID: networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to attach network %s to %s: %w", networkID, inst, err)
	}
	return l.waitForInterface(ctx, inst, iface.PortID)
}

func (l *Lifecycle) waitForInterface(ctx context.Context, inst *resource.Instance, portID string) (*resource.Interface, error) {
	var found *resource.Interface
	err := retry.Poll(ctx, l.timeouts.AttachInterval, l.timeouts.AttachAttempts, func(ctx context.Context) (bool, error) {
		ifaces, err := l.Interfaces(ctx, inst)
		if err != nil {
			return false, err
		}
		if iface, ok := lo.Find(ifaces, func(i resource.Interface) bool { return i.PortID == portID }); ok {
			found = &iface
			return true, nil
		}
		return false, nil
	})
	switch {
	case err == nil:
		l.log.Info("interface attached", "instance", inst.Name, "port", portID, "network", found.NetworkID)
		return found, nil
	case errors.Is(err, retry.ErrExhausted):
		return nil, resource.NewPortNotAttached(portID, inst.Name)
	case ctx.Err() != nil:
		return nil, resource.NewCancelled("attach port", err)
	default:
		return nil, err
	}
}

// DetachPort unbinds a port from the instance. When the port is one the
// cloud created during an attach, DetachPort waits for it to disappear; a
// port that lingers is logged, not returned.
func (l *Lifecycle) DetachPort(ctx context.Context, inst *resource.Instance, portID string) error {
	anonymous := false
	if port, err := l.cloud.GetPort(ctx, portID); err == nil {
		anonymous = port.Name == ""
	} else if !resource.IsNotFound(err) {
		return fmt.Errorf("failed to look up port %s: %w", portID, err)
	}

	err := l.cloud.DetachInterface(ctx, inst.ID, portID)
	if resource.IsNotFound(err) {
		l.log.Info("port not attached, nothing to detach", "instance", inst.Name, "port", portID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to detach port %s from %s: %w", portID, inst, err)
	}
	l.log.Info("interface detached", "instance", inst.Name, "port", portID)

	if anonymous {
		l.waitForPortGone(ctx, portID)
	}
	return nil
}

// DetachNetwork detaches the instance's interface on networkID. An instance
// without such an interface is logged, not an error.
func (l *Lifecycle) DetachNetwork(ctx context.Context, inst *resource.Instance, networkID string) error {
	iface, err := l.FindInterfaceByNetwork(ctx, inst, networkID)
	if resource.IsNotFound(err) {
		l.log.Info("no interface on network, nothing to detach", "instance", inst.Name, "network", networkID)
		return nil
	}
	if err != nil {
		return err
	}
	return l.DetachPort(ctx, inst, iface.PortID)
}

func (l *Lifecycle) waitForPortGone(ctx context.Context, portID string) {
	err := retry.Poll(ctx, l.timeouts.AttachInterval, l.timeouts.PortGoneAttempts, func(ctx context.Context) (bool, error) {
		_, err := l.cloud.GetPort(ctx, portID)
		if resource.IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		provisioning.LogEvent(l.log, provisioning.Event{
			Type: provisioning.EventWaitTimedOut, Kind: "port", ID: portID,
			Fields: []any{"reason", resource.NewPortNotGone(portID).Error(), "cause", err.Error()},
		})
	}
}

// CreateSnapshot requests an image of the instance and returns its ID
// without waiting for the upload.
func (l *Lifecycle) CreateSnapshot(ctx context.Context, inst *resource.Instance, name string) (string, error) {
	id, err := l.cloud.CreateServerImage(ctx, inst.ID, name)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", inst, err)
	}
	provisioning.LogEvent(l.log, provisioning.Event{Type: provisioning.EventResourceCreated, Kind: "image", Name: name, ID: id})
	return id, nil
}

// Delete deletes the instance. An instance that is already gone is success.
func (l *Lifecycle) Delete(ctx context.Context, inst *resource.Instance) error {
	_, err := provisioning.Delete(ctx, l.log, &openstack.DeleteOperation{
		ID: inst.ID, ResourceType: "instance", Delete: l.cloud.DeleteServer,
	}, inst.Name)
	return err
}
