// Package host defines the boundary between the pooling runtime and the
// object model it recycles. The pools never touch a scene graph directly;
// everything spatial (cloning, destruction, activation, parenting,
// transforms) goes through the Host interface, which the embedding
// application adapts to its own framework.
//
// The package also ships MemoryHost, a complete in-memory implementation
// used by the test suite and by the poolbench tool.
package host

// Vec3 is a position or direction in local space.
type Vec3 struct {
	X, Y, Z float64
}

// Quat is a rotation expressed as a quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat returns the no-rotation quaternion.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Node is an opaque handle to a host-owned object. Identity is interface
// value equality, so implementations must hand out stable pointer values.
type Node interface {
	Name() string
}

// Component is an opaque sub-object attached to a Node. The pooling runtime
// only cares about the capability interfaces below; everything else is
// carried through untouched.
type Component interface{}

// PooledComponent is the capability a component implements to receive
// lifecycle notifications from its owning pool. OnPoolAcquire fires after
// the instance joins the active set; OnPoolReturn fires before the instance
// leaves it, so a callback may safely re-enter the pool.
type PooledComponent interface {
	OnPoolAcquire()
	OnPoolReturn()
}

// TransientEffect is the capability a component implements when it carries
// per-instance effect state (trail histories, particle buffers) that must
// not leak from one checkout to the next.
type TransientEffect interface {
	ClearTransient()
}

// Destructible is honored defensively during notification dispatch:
// components reporting themselves destroyed are skipped.
type Destructible interface {
	Destroyed() bool
}

// Host is the set of object-model primitives the pools invoke but never
// implement. All operations are synchronous.
type Host interface {
	// Instantiate deep-clones prototype under parent, running any
	// prototype-side initialization hooks before returning.
	Instantiate(prototype, parent Node) Node

	// Destroy tears down node and its descendants. The node must not be
	// observable as alive afterward.
	Destroy(node Node)

	// SetActive enables or disables node.
	SetActive(node Node, active bool)

	// SetParent re-parents node. A nil parent detaches it to the root of
	// the hierarchy. When preserveWorld is set the node keeps its world
	// placement across the move.
	SetParent(node, parent Node, preserveWorld bool)

	// SetLocalTransform places node relative to its parent.
	SetLocalTransform(node Node, position Vec3, rotation Quat)

	// NewRoot creates an empty detached node, used by pools for their
	// disabled holding areas.
	NewRoot(name string) Node

	// Components returns the components of node and all its descendants in
	// a stable depth-first order, including components on inactive nodes.
	// Pools call this once per instance at creation time and cache the
	// result; re-querying on the hot path is deliberately avoided.
	Components(node Node) []Component
}
