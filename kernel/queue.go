// kernel/queue.go
package kernel

import "github.com/aykutozdemir/fsmos-go/platform"

// queueNode is one link of the global FIFO. Its message record is an
// embedded value copy, not a shared Handle: by the time a message
// reaches the queue it has already been read out of a pool Handle
// (see Scheduler.tell/publish), so the node owns an independent copy
// with its own lifecycle (spec §3).
type queueNode struct {
	target uint8
	rec    Record
	buf    []byte
	next   *queueNode
}

// Queue is the singly-linked global FIFO of queued messages with an
// attached free-list of nodes, hard-capped at MaxMessagePoolSize total
// nodes (spec §4.3).
type Queue struct {
	atomic platform.Atomic

	head, tail *queueNode
	free       *queueNode

	msgCount  int
	nodeCount int
}

// NewQueue constructs an empty Queue bound to an atomic region.
func NewQueue(atomic platform.Atomic) *Queue {
	return &Queue{atomic: atomic}
}

// Len reports the number of messages currently queued (I3: msg_count
// equals the queue-list length).
func (q *Queue) Len() int { return q.msgCount }

// FreeSlots reports how much room remains under the hard cap.
func (q *Queue) FreeSlots() int { return MaxMessagePoolSize - q.msgCount }

func (q *Queue) acquireNode() *queueNode {
	if q.free == nil {
		q.grow()
	}
	if q.free == nil {
		return nil
	}
	n := q.free
	q.free = n.next
	n.next = nil
	return n
}

// grow allocates up to queueGrowChunk new nodes, never letting total
// node count exceed the hard cap.
func (q *Queue) grow() {
	room := MaxMessagePoolSize - q.nodeCount
	if room <= 0 {
		return
	}
	n := queueGrowChunk
	if n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		node := &queueNode{next: q.free}
		q.free = node
		q.nodeCount++
	}
}

// Enqueue appends one message targeting target (0 for fan-out messages,
// a task id for direct ones) with an optional retained byte payload.
// It fails if the hard cap is reached or the node/buffer could not be
// acquired.
func (q *Queue) Enqueue(target uint8, rec Record, buf []byte) bool {
	if q.msgCount >= MaxMessagePoolSize {
		return false
	}
	node := q.acquireNode()
	if node == nil {
		return false
	}

	node.target = target
	node.rec = rec
	if len(buf) > 0 {
		if cap(node.buf) < len(buf) {
			node.buf = make([]byte, len(buf))
		} else {
			node.buf = node.buf[:len(buf)]
		}
		copy(node.buf, buf)
	} else if node.buf != nil {
		node.buf = node.buf[:0]
	}

	if q.tail == nil {
		q.head = node
		q.tail = node
	} else {
		q.tail.next = node
		q.tail = node
	}
	q.msgCount++
	return true
}

// dequeue detaches the head node, if any. The caller must call release
// once it is done reading the node (after any handler runs), per the
// "stable memory even if it enqueues new messages" contract of §4.3.
func (q *Queue) dequeue() (*queueNode, bool) {
	if q.head == nil {
		return nil, false
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	n.next = nil
	q.msgCount--
	return n, true
}

func (q *Queue) release(n *queueNode) {
	n.next = q.free
	q.free = n
}
