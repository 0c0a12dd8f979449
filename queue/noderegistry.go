package queue

import (
	"sync"

	"github.com/elliotchance/orderedmap"
)

// NodeRegistry is the thread-local queue-node store described in spec.md
// §9: each goroutine gets one node per Policy instance, allocated on first
// use and reused across acquisitions. Backing it with an ordered map (rather
// than a bare Go map) lets a Policy report which goroutines have registered
// a node and in what order they first did so, via Keys; the CLH/MCS tests
// use that to check registration is deterministic under staggered launches
// and that a node is reused rather than re-created across iterations.
type NodeRegistry[T any] struct {
	mu sync.Mutex
	m  *orderedmap.OrderedMap
}

// NewNodeRegistry builds an empty registry.
func NewNodeRegistry[T any]() *NodeRegistry[T] {
	return &NodeRegistry[T]{m: orderedmap.NewOrderedMap()}
}

// LoadOrStore returns the node for id, creating it with create on first
// access. Nodes are never evicted: they stay reachable for the lifetime of
// the owning Policy so link pointers into them remain valid.
func (r *NodeRegistry[T]) LoadOrStore(id int64, create func() T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.m.Get(id); ok {
		return v.(T)
	}
	v := create()
	r.m.Set(id, v)
	return v
}

// Len reports how many goroutines currently have a node in the registry.
func (r *NodeRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.Len()
}

// Keys returns the goroutine IDs with a registered node, in the order they
// first acquired one.
func (r *NodeRegistry[T]) Keys() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw := r.m.Keys()
	out := make([]int64, len(raw))
	for i, k := range raw {
		out[i] = k.(int64)
	}
	return out
}
