package treewalk

import (
	"sync"

	"github.com/reoring/treewalk/internal/shape"
)

type item struct {
	node *shape.Node
	acc  *MemberAccessor
}

// queue is a FIFO of work items backed by a slice that is compacted once
// the consumed prefix outgrows the live part.
type queue struct {
	items []item
	head  int
}

func (q *queue) push(it item) { q.items = append(q.items, it) }

func (q *queue) pop() (item, bool) {
	if q.head == len(q.items) {
		return item{}, false
	}
	it := q.items[q.head]
	q.items[q.head] = item{}
	q.head++
	if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return it, true
}

func (q *queue) len() int { return len(q.items) - q.head }

// reset drops queued items, keeping capacity.
func (q *queue) reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

var _queuePool = sync.Pool{
	New: func() any { return &queue{items: make([]item, 0, 64)} },
}

func getQueue() *queue { return _queuePool.Get().(*queue) }

// putQueue resets q before returning it, so no pooled queue holds items
// or references into a caller's object graph.
func putQueue(q *queue) {
	q.reset()
	_queuePool.Put(q)
}
