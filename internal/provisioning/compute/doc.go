// Package compute drives instances through their lifecycle: build, power on
// and off, interface attach and detach, snapshot, and delete.
//
// Every wait re-fetches the instance or its interface list from the cloud
// on a fixed interval with a bounded number of attempts. A waited-on
// instance that reaches ERROR fails the wait at once with the remote fault
// message. A cancelled context ends any wait with OperationCancelled.
package compute
