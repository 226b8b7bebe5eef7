package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/config"
	"github.com/imamik/oscp/internal/metrics"
	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/provisioning/compute"
	"github.com/imamik/oscp/internal/provisioning/rollback"
	"github.com/imamik/oscp/internal/provisioning/trunk"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
)

// Deployer creates and removes instances with their security group and
// floating IP.
type Deployer struct {
	cloud     openstack.Cloud
	network   config.Network
	instances *compute.Lifecycle
	trunks    *trunk.Composer
	executor  *rollback.Executor
	log       logr.Logger

	// NameFunc generates the instance name from the app name.
	NameFunc func(appName string) string
}

// NewDeployer creates a deployer.
func NewDeployer(deps provisioning.Deps) *Deployer {
	return &Deployer{
		cloud:     deps.Cloud,
		network:   deps.Network,
		instances: compute.NewLifecycle(deps),
		trunks:    trunk.NewComposer(deps),
		executor:  rollback.NewExecutor(deps.Log),
		log:       deps.Log.WithName("app"),
		NameFunc:  naming.Instance,
	}
}

// Deployment describes a deployed instance.
type Deployment struct {
	InstanceID   string
	InstanceName string
	PrivateIP    string
	PublicIP     string
}

// Artifacts returns the deployment as result artifacts.
func (d *Deployment) Artifacts() map[string]string {
	out := map[string]string{
		request.ArtifactInstanceID:   d.InstanceID,
		request.ArtifactInstanceName: d.InstanceName,
		request.ArtifactPrivateIP:    d.PrivateIP,
	}
	if d.PublicIP != "" {
		out[request.ArtifactPublicIP] = d.PublicIP
	}
	return out
}

// Deploy creates an instance for req. On failure every created resource is
// removed again and the original error is returned.
func (d *Deployer) Deploy(ctx context.Context, req request.DeployRequest) (_ *Deployment, err error) {
	defer observe("deploy", time.Now(), &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	rules, err := request.ParseRules(req.InboundPorts)
	if err != nil {
		return nil, err
	}
	if req.KeyPair != "" {
		if err := validatePublicKey(req.KeyPair); err != nil {
			return nil, err
		}
	}

	name := d.NameFunc(req.AppName)
	log := d.log.WithValues("action", req.ActionID, "instance", name)
	out := &Deployment{InstanceName: name}

	var (
		flavor  *resource.Flavor
		inst    *resource.Instance
		mgmt    *resource.Port
		group   *resource.SecurityGroup
		floatIP *resource.FloatingIP
	)

	steps := []rollback.Command{
		rollback.Step{
			Label: "resolve image and flavor",
			Do: func(ctx context.Context) error {
				if _, err := d.cloud.GetImage(ctx, req.ImageID); err != nil {
					return fmt.Errorf("failed to resolve image %s: %w", req.ImageID, err)
				}
				var err error
				flavor, err = d.cloud.FindFlavor(ctx, req.Flavor)
				if err != nil {
					return fmt.Errorf("failed to resolve flavor %s: %w", req.Flavor, err)
				}
				return nil
			},
		},
	}

	if req.KeyPair != "" {
		steps = append(steps, rollback.Step{
			Label: "key pair",
			Do: func(ctx context.Context) error {
				if err := d.cloud.CreateKeyPair(ctx, name, req.KeyPair); err != nil {
					return fmt.Errorf("failed to create key pair %s: %w", name, err)
				}
				return nil
			},
			Undo: func(ctx context.Context) error { return deleteResource(ctx, d.log, "key pair", name, d.cloud.DeleteKeyPair) },
		})
	}

	steps = append(steps,
		rollback.Step{
			Label: "create instance",
			Do: func(ctx context.Context) error {
				opts := openstack.ServerCreateOpts{
					Name:             name,
					ImageID:          req.ImageID,
					FlavorID:         flavor.ID,
					NetworkID:        d.network.ManagementNetworkID,
					AvailabilityZone: req.AvailabilityZone,
					AffinityGroupID:  req.AffinityGroupID,
					UserData:         buildUserData(req.UserData, req.AutoUdev),
				}
				if req.KeyPair != "" {
					opts.KeyName = name
				}
				created, err := d.instances.Create(ctx, opts)
				if err != nil {
					d.abandonBuild(ctx, created, err)
					return err
				}
				inst = created
				out.InstanceID = inst.ID
				return nil
			},
			Undo: func(ctx context.Context) error { return d.instances.Delete(ctx, inst) },
		},
		rollback.Step{
			Label: "name management port",
			Do: func(ctx context.Context) error {
				var err error
				mgmt, err = d.nameManagementPort(ctx, inst)
				if err != nil {
					return err
				}
				out.PrivateIP = lo.FirstOr(mgmt.FixedIPs, "")
				return nil
			},
		},
		rollback.Step{
			Label: "security group",
			Do: func(ctx context.Context) error {
				var err error
				group, err = d.createSecurityGroup(ctx, inst, rules)
				return err
			},
			Undo: func(ctx context.Context) error { return d.removeSecurityGroup(ctx, inst) },
		},
	)

	if req.AddFloatingIP {
		steps = append(steps, rollback.Step{
			Label: "floating ip",
			Do: func(ctx context.Context) error {
				var err error
				floatIP, err = d.createFloatingIP(ctx, req.FloatingIPSubnetID, mgmt)
				if err != nil {
					return err
				}
				out.PublicIP = floatIP.Address
				return nil
			},
			Undo: func(ctx context.Context) error {
				return deleteResource(ctx, d.log, "floating ip", floatIP.ID, d.cloud.DeleteFloatingIP)
			},
		})
	}

	if err := d.executor.Run(ctx, steps...); err != nil {
		return nil, err
	}
	log.Info("app deployed", "id", out.InstanceID, "privateIp", out.PrivateIP, "publicIp", out.PublicIP, "securityGroup", group.Name)
	return out, nil
}

// nameManagementPort renames the instance's only interface port to
// <instance>-mgmt so it can be found again later.
func (d *Deployer) nameManagementPort(ctx context.Context, inst *resource.Instance) (*resource.Port, error) {
	ifaces, err := d.instances.Interfaces(ctx, inst)
	if err != nil {
		return nil, err
	}
	if len(ifaces) != 1 {
		return nil, fmt.Errorf("expected one interface on new %s, found %d", inst, len(ifaces))
	}
	name := naming.ManagementPort(inst.Name)
	if err := d.cloud.RenamePort(ctx, ifaces[0].PortID, name); err != nil {
		return nil, fmt.Errorf("failed to rename management port of %s: %w", inst, err)
	}
	port, err := d.cloud.GetPort(ctx, ifaces[0].PortID)
	if err != nil {
		return nil, fmt.Errorf("failed to read management port of %s: %w", inst, err)
	}
	return port, nil
}

// abandonBuild handles an instance whose build wait failed. The step did not
// complete, so its undo will not run. An instance in ERROR stays for
// inspection; one that timed out or was cancelled mid-build is deleted.
func (d *Deployer) abandonBuild(ctx context.Context, inst *resource.Instance, err error) {
	switch {
	case inst == nil:
	case resource.KindOf(err) == resource.KindInstanceError:
		d.log.Info("leaving instance in error state", "instance", inst.Name, "id", inst.ID, "fault", inst.Fault)
	default:
		if delErr := d.instances.Delete(context.WithoutCancel(ctx), inst); delErr != nil {
			d.log.Error(delErr, "failed to delete partially built instance", "instance", inst.Name, "id", inst.ID)
		}
	}
}

func (d *Deployer) createSecurityGroup(ctx context.Context, inst *resource.Instance, rules []resource.SecurityGroupRule) (*resource.SecurityGroup, error) {
	name := naming.SecurityGroup(inst.Name)
	group, err := d.cloud.CreateSecurityGroup(ctx, name, "inbound rules of "+inst.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create security group %s: %w", name, err)
	}

	err = func() error {
		for _, rule := range rules {
			created, err := d.cloud.CreateSecurityGroupRule(ctx, group.ID, rule)
			if err != nil {
				return fmt.Errorf("failed to add rule %s %d-%d to %s: %w", rule.Protocol, rule.PortRangeMin, rule.PortRangeMax, name, err)
			}
			group.Rules = append(group.Rules, *created)
		}
		if err := d.cloud.AddSecurityGroup(ctx, inst.ID, name); err != nil {
			return fmt.Errorf("failed to add %s to %s: %w", name, inst, err)
		}
		return nil
	}()
	if err != nil {
		if delErr := d.cloud.DeleteSecurityGroup(context.WithoutCancel(ctx), group.ID); delErr != nil {
			d.log.Error(delErr, "failed to clean up security group", "group", name)
		}
		return nil, err
	}
	provisioning.LogEvent(d.log, provisioning.Event{Type: provisioning.EventResourceCreated, Kind: "security group", Name: name, ID: group.ID, Fields: []any{"rules", len(group.Rules)}})
	return group, nil
}

// removeSecurityGroup detaches and deletes sg-<instance>. A missing group
// is success.
func (d *Deployer) removeSecurityGroup(ctx context.Context, inst *resource.Instance) error {
	name := naming.SecurityGroup(inst.Name)
	group, err := d.cloud.FindSecurityGroupByName(ctx, name)
	if resource.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up security group %s: %w", name, err)
	}
	if err := d.cloud.RemoveSecurityGroup(ctx, inst.ID, name); err != nil && !resource.IsNotFound(err) {
		return fmt.Errorf("failed to remove %s from %s: %w", name, inst, err)
	}
	_, err = provisioning.Delete(ctx, d.log, &openstack.DeleteOperation{
		ID: group.ID, ResourceType: "security group", Delete: d.cloud.DeleteSecurityGroup,
	}, name)
	return err
}

func (d *Deployer) createFloatingIP(ctx context.Context, subnetID string, port *resource.Port) (*resource.FloatingIP, error) {
	if subnetID == "" {
		subnetID = d.network.FloatingIPSubnetID
	}
	if subnetID == "" {
		return nil, fmt.Errorf("no floating IP subnet configured")
	}
	subnet, err := d.cloud.GetSubnet(ctx, subnetID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve floating IP subnet %s: %w", subnetID, err)
	}
	fip, err := d.cloud.CreateFloatingIP(ctx, openstack.FloatingIPCreateOpts{
		FloatingNetworkID: subnet.NetworkID,
		SubnetID:          subnet.ID,
		PortID:            port.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create floating IP for %s: %w", port, err)
	}
	provisioning.LogEvent(d.log, provisioning.Event{Type: provisioning.EventResourceCreated, Kind: "floating ip", Name: fip.Address, ID: fip.ID})
	return fip, nil
}

// deleteResource deletes one resource by ID, treating NotFound as success.
func deleteResource(ctx context.Context, log logr.Logger, kind, id string, del func(context.Context, string) error) error {
	_, err := provisioning.Delete(ctx, log, &openstack.DeleteOperation{ID: id, ResourceType: kind, Delete: del}, "")
	return err
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordOperation(op, *err, time.Since(start))
}
