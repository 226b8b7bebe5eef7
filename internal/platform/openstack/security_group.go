package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/samber/lo"

	"github.com/imamik/oscp/internal/resource"
	"github.com/imamik/oscp/internal/util/retry"
)

func ruleToResource(r rules.SecGroupRule) resource.SecurityGroupRule {
	return resource.SecurityGroupRule{
		ID:             r.ID,
		Direction:      r.Direction,
		Protocol:       r.Protocol,
		RemoteIPPrefix: r.RemoteIPPrefix,
		PortRangeMin:   r.PortRangeMin,
		PortRangeMax:   r.PortRangeMax,
	}
}

func groupToResource(g groups.SecGroup) resource.SecurityGroup {
	return resource.SecurityGroup{
		ID:    g.ID,
		Name:  g.Name,
		Rules: lo.Map(g.Rules, func(r rules.SecGroupRule, _ int) resource.SecurityGroupRule { return ruleToResource(r) }),
	}
}

// CreateSecurityGroup creates an empty security group.
func (c *RealClient) CreateSecurityGroup(ctx context.Context, name, description string) (*resource.SecurityGroup, error) {
	var group *groups.SecGroup
	err := c.observe("create security group", "security group", name, func() error {
		var err error
		group, err = groups.Create(ctx, c.network, groups.CreateOpts{Name: name, Description: description}).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	g := groupToResource(*group)
	return &g, nil
}

// FindSecurityGroupByName returns the first security group named name.
func (c *RealClient) FindSecurityGroupByName(ctx context.Context, name string) (*resource.SecurityGroup, error) {
	var all []groups.SecGroup
	err := c.observe("list security groups", "security group", name, func() error {
		pages, err := groups.List(c.network, groups.ListOpts{Name: name}).AllPages(ctx)
		if err != nil {
			return err
		}
		all, err = groups.ExtractGroups(pages)
		return err
	})
	if err != nil {
		return nil, err
	}
	group, ok := lo.Find(all, func(g groups.SecGroup) bool { return g.Name == name })
	if !ok {
		return nil, resource.NewNotFound("security group", name)
	}
	g := groupToResource(group)
	return &g, nil
}

// CreateSecurityGroupRule adds an IPv4 rule to a group. An empty direction
// means ingress.
func (c *RealClient) CreateSecurityGroupRule(ctx context.Context, groupID string, rule resource.SecurityGroupRule) (*resource.SecurityGroupRule, error) {
	direction := rules.DirIngress
	if rule.Direction == string(rules.DirEgress) {
		direction = rules.DirEgress
	}
	createOpts := rules.CreateOpts{
		SecGroupID:     groupID,
		Direction:      direction,
		EtherType:      rules.EtherType4,
		Protocol:       rules.RuleProtocol(rule.Protocol),
		PortRangeMin:   rule.PortRangeMin,
		PortRangeMax:   rule.PortRangeMax,
		RemoteIPPrefix: rule.RemoteIPPrefix,
	}

	var created *rules.SecGroupRule
	err := c.observe("create security group rule", "security group", groupID, func() error {
		var err error
		created, err = rules.Create(ctx, c.network, createOpts).Extract()
		return err
	})
	if err != nil {
		return nil, err
	}
	r := ruleToResource(*created)
	return &r, nil
}

// DeleteSecurityGroup deletes a security group. The compute service releases
// a group asynchronously after it is removed from a server, so in-use
// conflicts are retried with backoff.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		err := c.observe("delete security group", "security group", id, func() error {
			return groups.Delete(ctx, c.network, id).ExtractErr()
		})
		if err != nil && !isInUse(err) {
			return retry.Fatal(err)
		}
		return err
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}
