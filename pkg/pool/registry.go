package pool

import (
	"sync"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/host"
)

// The ownership side-table maps instance identity to owning pool. Keeping
// the tag out of the instance itself means pooled types carry no foreign
// bookkeeping state, and Return can be dispatched without the caller knowing
// which pool created the instance. A tag never changes after creation; it is
// removed only when the instance is destroyed.
//
// The table is process-wide and shared by every pool in the process. The
// mutex makes the table itself safe to read from test setup goroutines; it
// does not make the pools thread-safe.
type ownershipTable struct {
	mu     sync.Mutex
	owners map[host.Node]*Pool
}

var ownership = &ownershipTable{
	owners: make(map[host.Node]*Pool),
}

func (t *ownershipTable) tag(node host.Node, p *Pool) {
	t.mu.Lock()
	t.owners[node] = p
	t.mu.Unlock()
}

func (t *ownershipTable) owner(node host.Node) *Pool {
	t.mu.Lock()
	p := t.owners[node]
	t.mu.Unlock()
	return p
}

func (t *ownershipTable) forget(node host.Node) {
	t.mu.Lock()
	delete(t.owners, node)
	t.mu.Unlock()
}

// Owner returns the pool that created node, or nil if node was never
// produced by a pool (or has been destroyed).
func Owner(node host.Node) *Pool {
	if node == nil {
		return nil
	}
	return ownership.owner(node)
}

// Return sends an instance back to whichever pool created it. This is the
// generic return path used by Collection; it is also usable directly when
// no collection is in play.
func Return(node host.Node) error {
	if node == nil {
		return errors.New(errors.ErrorTypeValidation, "return of nil instance")
	}
	owner := ownership.owner(node)
	if owner == nil {
		return errors.Newf(errors.ErrorTypeNotFound,
			"instance %q was not produced by any pool", node.Name())
	}
	return owner.Return(node)
}
