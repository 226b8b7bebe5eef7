package request

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/imamik/oscp/internal/resource"
)

// Defaults of an inbound port rule.
const (
	DefaultRuleCIDR     = "0.0.0.0/0"
	DefaultRuleProtocol = "tcp"
)

// ParseRule parses an inbound port rule of the form
// [cidr:][protocol:]port-or-range, e.g. "22", "udp:161", "10.0.0.0/8:tcp:8000-8080".
func ParseRule(s string) (resource.SecurityGroupRule, error) {
	bad := fmt.Errorf("inbound port rule %q must be [cidr:][protocol:]port-or-range", s)

	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return resource.SecurityGroupRule{}, bad
	}
	lo, hi, err := parsePortRange(parts[len(parts)-1])
	if err != nil {
		return resource.SecurityGroupRule{}, bad
	}

	rule := resource.SecurityGroupRule{
		Direction:      "ingress",
		Protocol:       DefaultRuleProtocol,
		RemoteIPPrefix: DefaultRuleCIDR,
		PortRangeMin:   lo,
		PortRangeMax:   hi,
	}
	switch len(parts) {
	case 3:
		if !isCIDR(parts[0]) {
			return resource.SecurityGroupRule{}, bad
		}
		rule.RemoteIPPrefix = parts[0]
		rule.Protocol = strings.ToLower(parts[1])
	case 2:
		if isCIDR(parts[0]) {
			rule.RemoteIPPrefix = parts[0]
		} else {
			rule.Protocol = strings.ToLower(parts[0])
		}
	}
	if rule.Protocol == "" {
		return resource.SecurityGroupRule{}, bad
	}
	return rule, nil
}

// ParseRules parses every rule, failing on the first bad one.
func ParseRules(specs []string) ([]resource.SecurityGroupRule, error) {
	out := make([]resource.SecurityGroupRule, 0, len(specs))
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		rule, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func parsePortRange(s string) (int, int, error) {
	first, last, isRange := strings.Cut(strings.TrimSpace(s), "-")
	lo, err := parsePort(first)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := parsePort(last)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("port range %s is reversed", s)
	}
	return lo, hi, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

func isCIDR(s string) bool {
	_, err := netip.ParsePrefix(s)
	return err == nil
}
