// Package app deploys, deletes, powers, saves and restores instances on
// behalf of an upstream orchestrator.
//
// A deploy builds the instance on the management network, names its
// management port, gives it a security group with the requested inbound
// rules, and optionally a floating IP. Each of these is a rollback step.
package app
