package provisioning

import "sync"

// Locks owns the mutexes that serialize check-then-create sequences across
// concurrent requests. One Locks is shared by every provisioner of a process
// and passed by reference.
type Locks struct {
	// Subnet guards the subnet existence check and create of a network, and
	// network removal.
	Subnet sync.Mutex
	// Named guards find-or-create of named ports and trunks.
	Named sync.Mutex
}

// NewLocks returns an unlocked set of locks.
func NewLocks() *Locks {
	return &Locks{}
}
