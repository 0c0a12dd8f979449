// Package clh implements the Craig, Landin, and Hagersten (CLH) queueing
// discipline as a queue.Policy: an implicit linked list where each waiter
// spins on its predecessor's locked flag rather than its own.
//
// Grounded on the CAS-tail / spin-on-predecessor shape of
// other_examples/ecashin-go-getting's clhlock.go, generalized to the timed
// and cancellable queue.Policy contract following
// original_source's CLHQueue.java.
package clh

import (
	"context"
	"sync/atomic"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/lockerr"
	"github.com/quoin-dev/relock/queue"
	"github.com/quoin-dev/relock/waitstrategy"
)

// Node is one goroutine's wait record for one Queue. A goroutine owns at
// most one Node per Queue and reuses it across acquisitions.
type Node struct {
	prev   atomic.Pointer[Node]
	next   atomic.Pointer[Node]
	locked atomic.Bool
	id     int64
}

// Queue is the CLH wait queue: an atomic tail plus a thread-local node
// registry.
type Queue struct {
	tail  atomic.Pointer[Node]
	nodes *queue.NodeRegistry[*Node]
}

// New builds an empty CLH queue.
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
	node.locked.Store(true)
	node.prev.Store(nil)
	node.next.Store(nil)

	pred := q.tail.Swap(node)
	if pred == node {
		// This goroutine's own node was still the tail: it was the last
		// holder and nobody has enqueued since, so there is no real
		// predecessor to wait on.
		pred = nil
	}
	if pred != nil {
		node.prev.Store(pred)
		pred.next.Store(node)
		for pred.locked.Load() {
			if err := wait.Await(ctx); err != nil {
				q.cancel(node, pred)
				return err
			}
		}
	}

	for !tryAcquire() {
		if err := ctx.Err(); err != nil {
			q.cancel(node, pred)
			return err
		}
		if hostruntime.TestAndClearInterrupted() {
			q.cancel(node, pred)
			return lockerr.ErrInterrupted
		}
		hostruntime.Pause()
	}
	// The node now heads the list: drop its stale predecessor link so the
	// UnparkSuccessor walk stops here.
	node.prev.Store(nil)
	node.locked.Store(false)
	return nil
}

// TryAcquireWithTimeout implements queue.Policy.
func (q *Queue) TryAcquireWithTimeout(ctx context.Context, tryAcquire queue.TryAcquireFunc, wait waitstrategy.Strategy) (bool, error) {
	node := q.node()
	node.locked.Store(true)
	node.prev.Store(nil)
	node.next.Store(nil)

	pred := q.tail.Swap(node)
	if pred == node {
		pred = nil
	}
	if pred != nil {
		node.prev.Store(pred)
		pred.next.Store(node)
		for pred.locked.Load() {
			if err := wait.Await(ctx); err != nil {
				q.cancel(node, pred)
				if queue.IsTimeout(err) {
					return false, nil
				}
				return false, err
			}
		}
	}

	for !tryAcquire() {
		if ctx.Err() != nil {
			q.cancel(node, pred)
			if queue.IsTimeout(ctx.Err()) {
				return false, nil
			}
			return false, ctx.Err()
		}
		hostruntime.Pause()
	}
	node.prev.Store(nil)
	node.locked.Store(false)
	return true, nil
}

// UnparkSuccessor implements queue.Policy. It walks backward from the
// current tail to the head-most node still in the list, then wakes that
// node's successor, per spec.md §4.2. The walk is O(queue length); spec.md
// §9 allows caching the head to avoid it but does not mandate doing so, and
// this implementation takes the literal walk.
func (q *Queue) UnparkSuccessor() {
	cur := q.tail.Load()
	if cur == nil {
		return
	}
	for p := cur.prev.Load(); p != nil; p = cur.prev.Load() {
		cur = p
	}
	if succ := cur.next.Load(); succ != nil {
		hostruntime.Unpark(succ.id)
	}
}

// cancel detaches node from the queue on timeout or interruption, splicing
// around it so the list stays walkable for UnparkSuccessor.
func (q *Queue) cancel(node, pred *Node) {
	if !q.tail.CompareAndSwap(node, pred) {
		if pred != nil {
			pred.next.Store(node.next.Load())
		}
	}
	node.prev.Store(nil)
	node.next.Store(nil)
}

// Len reports how many goroutines currently have a node registered with
// this queue. Nodes are never evicted, so this is the count of distinct
// goroutines that have ever contended, not the current wait-queue depth.
func (q *Queue) Len() int { return q.nodes.Len() }

// Keys reports the registered goroutine IDs in the order each first
// contended on this queue.
func (q *Queue) Keys() []int64 { return q.nodes.Keys() }
