package connectivity

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/imamik/oscp/internal/metrics"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/provisioning/compute"
	"github.com/imamik/oscp/internal/provisioning/network"
	"github.com/imamik/oscp/internal/provisioning/rollback"
	"github.com/imamik/oscp/internal/provisioning/trunk"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
)

// DefaultConcurrency bounds how many requests of a batch run at once.
const DefaultConcurrency = 8

// Orchestrator runs connectivity requests.
type Orchestrator struct {
	networks  *network.Provisioner
	trunks    *trunk.Composer
	instances *compute.Lifecycle
	executor  *rollback.Executor
	locks     *provisioning.Locks
	log       logr.Logger

	// Concurrency bounds HandleAll. Zero means DefaultConcurrency.
	Concurrency int
}

// NewOrchestrator creates an orchestrator sharing deps' locks.
func NewOrchestrator(deps provisioning.Deps) *Orchestrator {
	return &Orchestrator{
		networks:  network.NewProvisioner(deps),
		trunks:    trunk.NewComposer(deps),
		instances: compute.NewLifecycle(deps),
		executor:  rollback.NewExecutor(deps.Log),
		locks:     deps.Locks,
		log:       deps.Log.WithName("connectivity"),
	}
}

// SetVLAN connects an instance to a VLAN.
func (o *Orchestrator) SetVLAN(ctx context.Context, req request.ConnectivityRequest) (err error) {
	defer observe("set_vlan", time.Now(), &err)
	log := o.log.WithValues("action", req.ActionID, "vlan", req.VLANID, "instance", req.InstanceID, "mode", req.PortMode)

	net, err := o.networks.GetOrCreateNetwork(ctx, req.VLANID, req.QinQ)
	if err != nil {
		return err
	}

	var inst *resource.Instance
	steps := []rollback.Command{
		rollback.Step{
			Label: "network " + net.Name,
			Undo:  func(ctx context.Context) error { return o.removeNetwork(ctx, net.ID) },
		},
		rollback.Step{
			Label: "subnet",
			Do: func(ctx context.Context) error {
				if net.HasSubnet() {
					return nil
				}
				_, err := o.networks.EnsureSubnet(ctx, net)
				return err
			},
		},
		rollback.Step{
			Label: "resolve instance",
			Do: func(ctx context.Context) error {
				var err error
				inst, err = o.instances.Get(ctx, req.InstanceID)
				return err
			},
		},
	}

	if req.PortMode == request.Trunk {
		var parent *resource.Port
		steps = append(steps,
			rollback.Step{
				Label: "compose trunk",
				Do: func(ctx context.Context) error {
					var err error
					parent, err = o.trunks.Compose(ctx, inst.Name, net)
					return err
				},
				Undo: func(ctx context.Context) error {
					_, err := o.trunks.DetachVLAN(ctx, inst.Name, req.VLANID)
					return err
				},
			},
			rollback.Step{
				Label: "attach trunk port",
				Do: func(ctx context.Context) error {
					_, err := o.instances.AttachPort(ctx, inst, parent.ID)
					return err
				},
			},
		)
	} else {
		steps = append(steps, rollback.Step{
			Label: "attach network",
			Do: func(ctx context.Context) error {
				_, err := o.instances.AttachNetwork(ctx, inst, net.ID)
				return err
			},
		})
	}

	if err := o.executor.Run(ctx, steps...); err != nil {
		return err
	}
	log.Info("vlan connected", "network", net.ID)
	return nil
}

// RemoveVLAN disconnects an instance from a VLAN and removes the VLAN's
// network if nothing else uses it. A VLAN without a network is a no-op.
func (o *Orchestrator) RemoveVLAN(ctx context.Context, req request.ConnectivityRequest) (err error) {
	defer observe("remove_vlan", time.Now(), &err)

	net, err := o.networks.GetNetwork(ctx, req.VLANID)
	if resource.IsNotFound(err) {
		o.log.Info("no network for vlan, nothing to remove", "action", req.ActionID, "vlan", req.VLANID)
		return nil
	}
	if err != nil {
		return err
	}

	inst, err := o.instances.Get(ctx, req.InstanceID)
	if err != nil {
		return err
	}

	if req.PortMode == request.Trunk {
		found, err := o.trunks.DetachVLAN(ctx, inst.Name, req.VLANID)
		if err != nil {
			return err
		}
		if !found {
			o.log.Info("no sub-port for vlan on trunk", "instance", inst.Name, "vlan", req.VLANID)
		}
	} else if err := o.instances.DetachNetwork(ctx, inst, net.ID); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return resource.NewCancelled("remove vlan", err)
	}
	return o.removeNetwork(ctx, net.ID)
}

// RemoveAllVLANs disconnects an instance from every VLAN network it is on,
// through an interface or a trunk sub-port, and then removes the networks.
func (o *Orchestrator) RemoveAllVLANs(ctx context.Context, req request.ConnectivityRequest) (err error) {
	defer observe("remove_all_vlans", time.Now(), &err)

	inst, err := o.instances.Get(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	ifaces, err := o.instances.Interfaces(ctx, inst)
	if err != nil {
		return err
	}

	var networkIDs []string
	for _, iface := range ifaces {
		vlan, err := o.isVLANNetwork(ctx, iface.NetworkID)
		if err != nil {
			return err
		}
		if !vlan {
			continue
		}
		if err := o.instances.DetachPort(ctx, inst, iface.PortID); err != nil {
			return err
		}
		networkIDs = append(networkIDs, iface.NetworkID)
	}

	trunked, err := o.trunks.DetachAllVLANs(ctx, inst.Name)
	if err != nil {
		return err
	}
	networkIDs = append(networkIDs, trunked...)

	for _, id := range networkIDs {
		if err := ctx.Err(); err != nil {
			return resource.NewCancelled("remove all vlans", err)
		}
		if err := o.removeNetwork(ctx, id); err != nil {
			return err
		}
	}
	o.log.Info("all vlans removed", "instance", inst.Name, "networks", len(networkIDs))
	return nil
}

// isVLANNetwork reports whether a network is one this tool created for a
// VLAN: named net-seg-<id> and carrying a segmentation ID.
func (o *Orchestrator) isVLANNetwork(ctx context.Context, networkID string) (bool, error) {
	net, err := o.networks.Lookup(ctx, networkID)
	if resource.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, named := naming.VLANFromNetwork(net.Name)
	return named && net.SegmentationID != nil, nil
}

func (o *Orchestrator) removeNetwork(ctx context.Context, networkID string) error {
	o.locks.Subnet.Lock()
	defer o.locks.Subnet.Unlock()
	return o.networks.RemoveNetwork(ctx, networkID)
}

// Handle validates and runs one request.
func (o *Orchestrator) Handle(ctx context.Context, req request.ConnectivityRequest) request.Result {
	if err := req.Validate(); err != nil {
		return request.NewResult(req.ActionID, nil, err)
	}

	var err error
	switch req.Type {
	case request.SetVLAN:
		err = o.SetVLAN(ctx, req)
	case request.RemoveVLAN:
		err = o.RemoveVLAN(ctx, req)
	case request.RemoveAllVLANs:
		err = o.RemoveAllVLANs(ctx, req)
	}
	if err != nil {
		o.log.Error(err, "connectivity action failed", "action", req.ActionID, "type", req.Type)
	}
	return request.NewResult(req.ActionID, nil, err)
}

// HandleAll runs independent requests concurrently and returns their
// results in request order. One failing request does not stop the others.
func (o *Orchestrator) HandleAll(ctx context.Context, reqs []request.ConnectivityRequest) []request.Result {
	results := make([]request.Result, len(reqs))

	limit := o.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = o.Handle(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordOperation(op, *err, time.Since(start))
}
