package pool

import (
	"github.com/ajitpratap0/prefabpool/pkg/host"
)

// Lease marks one checked-out instance's validity window. It is created on
// acquisition, owned by the caller that acquired it, and flipped invalid the
// instant the instance goes back to its pool. A Lease is never reused across
// acquisitions: re-acquiring the same underlying instance yields a new one.
type Lease struct {
	node  host.Node
	valid bool
}

func newLease(node host.Node) *Lease {
	return &Lease{node: node, valid: true}
}

// Node returns the checked-out instance. The instance must not be used once
// Valid reports false.
func (l *Lease) Node() host.Node {
	return l.node
}

// Valid reports whether the instance is still checked out. Safe to call on
// a nil lease.
func (l *Lease) Valid() bool {
	return l != nil && l.valid
}

func (l *Lease) invalidate() {
	l.valid = false
}
