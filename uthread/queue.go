package uthread

import "fmt"

// threadQueue is an intrusive FIFO of threads. A thread can sit in at most
// one queue at a time; pushing a queued thread panics.
type threadQueue struct {
	head *thread
	tail *thread
	n    int
}

func (q *threadQueue) push(t *thread) {
	if t.queued {
		panic(fmt.Sprintf("uthread: thread %d queued twice", t.tid))
	}
	t.queued = true
	t.next = nil
	if q.tail == nil {
		q.head = t
	} else {
		q.tail.next = t
	}
	q.tail = t
	q.n++
}

// pop removes the front thread, or returns nil if the queue is empty.
func (q *threadQueue) pop() *thread {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.next
	if q.head == nil {
		q.tail = nil
	}
	t.next = nil
	t.queued = false
	q.n--
	return t
}

func (q *threadQueue) empty() bool {
	return q.head == nil
}

func (q *threadQueue) len() int {
	return q.n
}
