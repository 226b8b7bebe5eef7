package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/platform/openstack"
	"github.com/imamik/oscp/internal/provisioning"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/naming"
)

// Delete removes an instance together with its floating IP, security
// group, trunk and key pair. An instance that is already gone is success.
func (d *Deployer) Delete(ctx context.Context, req request.DeleteRequest) (err error) {
	defer observe("delete", time.Now(), &err)

	inst, err := d.instances.Get(ctx, req.InstanceID)
	if resource.IsNotFound(err) {
		provisioning.LogEvent(d.log, provisioning.Event{Type: provisioning.EventResourceAbsent, Kind: "instance", ID: req.InstanceID})
		return d.deleteFloatingIP(ctx, req.PublicIP)
	}
	if err != nil {
		return err
	}
	log := d.log.WithValues("instance", inst.Name)

	if err := d.deleteFloatingIP(ctx, req.PublicIP); err != nil {
		return err
	}
	if err := d.removeSecurityGroup(ctx, inst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return resource.NewCancelled("delete", err)
	}
	// The trunk goes after the instance: its parent port stays bound while
	// the instance exists.
	if err := d.instances.Delete(ctx, inst); err != nil {
		return err
	}
	if err := d.trunks.Teardown(ctx, inst.Name); err != nil {
		return err
	}
	if err := deleteResource(ctx, d.log, "key pair", inst.Name, d.cloud.DeleteKeyPair); err != nil {
		return err
	}
	log.Info("app deleted", "id", inst.ID)
	return nil
}

func (d *Deployer) deleteFloatingIP(ctx context.Context, address string) error {
	if address == "" {
		return nil
	}
	fips, err := d.cloud.ListFloatingIPs(ctx, openstack.FloatingIPFilter{Address: address})
	if err != nil {
		return fmt.Errorf("failed to look up floating IP %s: %w", address, err)
	}
	for _, fip := range fips {
		if _, err := provisioning.Delete(ctx, d.log, &openstack.DeleteOperation{
			ID: fip.ID, ResourceType: "floating ip", Delete: d.cloud.DeleteFloatingIP,
		}, address); err != nil {
			return err
		}
	}
	return nil
}

// Power turns an instance on or off and waits for the target status.
func (d *Deployer) Power(ctx context.Context, req request.PowerRequest) (_ *resource.Instance, err error) {
	op := "power_off"
	if req.On {
		op = "power_on"
	}
	defer observe(op, time.Now(), &err)

	inst, err := d.instances.Get(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if req.On {
		return d.instances.PowerOn(ctx, inst)
	}
	return d.instances.PowerOff(ctx, inst)
}

// PowerOn starts an instance.
func (d *Deployer) PowerOn(ctx context.Context, instanceID string) (*resource.Instance, error) {
	return d.Power(ctx, request.PowerRequest{InstanceID: instanceID, On: true})
}

// PowerOff stops an instance.
func (d *Deployer) PowerOff(ctx context.Context, instanceID string) (*resource.Instance, error) {
	return d.Power(ctx, request.PowerRequest{InstanceID: instanceID})
}

// Addresses are the current addresses of an instance's management port.
type Addresses struct {
	PrivateIP string
	PublicIP  string
}

// RefreshIP reads the private and public address of an instance's
// management port.
func (d *Deployer) RefreshIP(ctx context.Context, instanceID string) (*Addresses, error) {
	inst, err := d.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	port, err := d.managementPort(ctx, inst)
	if err != nil {
		return nil, err
	}
	out := &Addresses{PrivateIP: lo.FirstOr(port.FixedIPs, "")}

	fips, err := d.cloud.ListFloatingIPs(ctx, openstack.FloatingIPFilter{PortID: port.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list floating IPs of %s: %w", port, err)
	}
	if len(fips) > 0 {
		out.PublicIP = fips[0].Address
	}
	return out, nil
}

// managementPort finds <instance>-mgmt, falling back to the instance's
// interface on the management network.
func (d *Deployer) managementPort(ctx context.Context, inst *resource.Instance) (*resource.Port, error) {
	ports, err := d.cloud.ListPorts(ctx, openstack.PortFilter{Name: naming.ManagementPort(inst.Name), DeviceID: inst.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list ports of %s: %w", inst, err)
	}
	if len(ports) > 0 {
		return &ports[0], nil
	}
	iface, err := d.instances.FindInterfaceByNetwork(ctx, inst, d.network.ManagementNetworkID)
	if err != nil {
		return nil, err
	}
	return d.cloud.GetPort(ctx, iface.PortID)
}
