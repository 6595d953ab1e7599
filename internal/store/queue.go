package store

import "sync"

// taskQueue runs tasks one at a time on a single worker goroutine, in enqueue
// order. It exists so that side effects scheduled during a mutation (the
// order-to-sale derivation) run after the triggering call has returned and
// committed, never inline with it.
type taskQueue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      []func()
	closed     bool
	pending    sync.WaitGroup
	workerDone chan struct{}
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{workerDone: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *taskQueue) run() {
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			close(q.workerDone)
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		q.pending.Done()
	}
}

// Enqueue schedules task for the worker. Returns false once the queue is
// closed, in which case the task will never run.
func (q *taskQueue) Enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending.Add(1)
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return true
}

// Flush blocks until every task enqueued so far has finished.
func (q *taskQueue) Flush() {
	q.pending.Wait()
}

// Close drains the remaining tasks, stops the worker and rejects further
// enqueues. Safe to call once.
func (q *taskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.workerDone
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()

	<-q.workerDone
}
