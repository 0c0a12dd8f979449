// Package mcs implements the Mellor-Crummey Scott (MCS) queueing discipline
// as a queue.Policy: an explicit linked list where each waiter spins on its
// own node's locked flag, so contention traffic stays local to each
// goroutine's cache line rather than bouncing off a shared predecessor.
//
// Admission is FIFO: the atomic tail swap totally orders arrival, and each
// node is released only by its direct predecessor (or, lacking one, by
// winning the tryAcquire race directly against an empty lock).
package mcs

import (
	"context"
	"sync/atomic"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/queue"
	"github.com/quoin-dev/relock/waitstrategy"
)

// Node is one goroutine's wait record for one Queue. A goroutine owns at
// most one Node per Queue and reuses it across acquisitions.
type Node struct {
	next   atomic.Pointer[Node]
	locked atomic.Bool
	id     int64
}

// Queue is the MCS wait queue: an atomic tail plus a thread-local node
// registry.
type Queue struct {
	tail atomic.Pointer[Node]
	// head records the node currently believed to hold the guarded lock,
	// updated only by a goroutine that has just won tryAcquire through this
	// queue. It resolves spec.md §9's MCS handoff open question in favor of
	// interpretation (b): release explicitly clears the head successor's
	// locked flag instead of relying solely on the successor's tryAcquire
	// spin to notice. See DESIGN.md.
	head  atomic.Pointer[Node]
	nodes *queue.NodeRegistry[*Node]
}

// New builds an empty MCS queue.
func New() *Queue {
	return &Queue{nodes: queue.NewNodeRegistry[*Node]()}
}

func (q *Queue) node() *Node {
	id := hostruntime.CurrentGoroutineID()
	return q.nodes.LoadOrStore(id, func() *Node { return &Node{id: id} })
}

// EnqueueAndAcquire implements queue.Policy.
func (q *Queue) EnqueueAndAcquire(ctx context.Context, tryAcquire queue.TryAcquireFunc, wait waitstrategy.Strategy) error {
	node := q.node()
	node.next.Store(nil)
	node.locked.Store(true)

	pred := q.tail.Swap(node)
	if pred == node {
		// This goroutine's own node was still the tail: it was the last
		// holder and nobody has enqueued since, so there is no real
		// predecessor to wait on.
		pred = nil
	}
	if pred != nil {
		pred.next.Store(node)
		for node.locked.Load() {
			if err := wait.Await(ctx); err != nil {
				q.cancel(node)
				return err
			}
		}
	}

	for !tryAcquire() {
		hostruntime.Pause()
	}
	node.locked.Store(false)
	q.head.Store(node)
	return nil
}

// TryAcquireWithTimeout implements queue.Policy.
func (q *Queue) TryAcquireWithTimeout(ctx context.Context, tryAcquire queue.TryAcquireFunc, wait waitstrategy.Strategy) (bool, error) {
	node := q.node()
	node.next.Store(nil)
	node.locked.Store(true)

	pred := q.tail.Swap(node)
	if pred == node {
		pred = nil
	}
	if pred != nil {
		pred.next.Store(node)
		for node.locked.Load() {
			if err := wait.Await(ctx); err != nil {
				q.cancel(node)
				if queue.IsTimeout(err) {
					return false, nil
				}
				return false, err
			}
		}
	}

	for !tryAcquire() {
		if ctx.Err() != nil {
			q.cancel(node)
			if queue.IsTimeout(ctx.Err()) {
				return false, nil
			}
			return false, ctx.Err()
		}
		hostruntime.Pause()
	}
	node.locked.Store(false)
	q.head.Store(node)
	return true, nil
}

// UnparkSuccessor implements queue.Policy: it clears the current head's
// successor's locked flag (the explicit handoff from Open Question (b)) and
// wakes it, falling back to waking whoever is currently at the tail when no
// successor is linked yet.
func (q *Queue) UnparkSuccessor() {
	h := q.head.Load()
	if h != nil {
		if succ := h.next.Load(); succ != nil {
			succ.locked.Store(false)
			hostruntime.Unpark(succ.id)
			return
		}
	}
	if t := q.tail.Load(); t != nil {
		hostruntime.Unpark(t.id)
	}
}

// cancel detaches node from the queue on timeout or interruption. Per
// spec.md §4.3 this only handles the case where node is still the tail; a
// node cancelled after a successor has already linked behind it is left in
// place, and its eventual locked=false write from an upstream release is
// harmless since this goroutine has already stopped spinning on it.
func (q *Queue) cancel(node *Node) {
	if q.tail.CompareAndSwap(node, nil) {
		node.next.Store(nil)
	}
}

// Len reports how many goroutines currently have a node registered with
// this queue. Nodes are never evicted, so this is the count of distinct
// goroutines that have ever contended, not the current wait-queue depth.
func (q *Queue) Len() int { return q.nodes.Len() }

// Keys reports the registered goroutine IDs in the order each first
// contended on this queue.
func (q *Queue) Keys() []int64 { return q.nodes.Keys() }
