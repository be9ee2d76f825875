package scheduler

import "github.com/MSylvia/serenity/task"

// Runqueue holds every non-idle task (§3). New tasks go in at the head, and
// the scheduler rotates the queue head-to-tail on each selection pass; no
// other ordering is guaranteed.
type Runqueue struct {
	tasks []*task.Task
}

// Insert adds t at the head (§4.3 step 9). The selection pass rotates before
// it inspects, so with other tasks queued the head is the last one a pass
// considers.
func (q *Runqueue) Insert(t *task.Task) {
	q.tasks = append([]*task.Task{t}, q.tasks...)
}

// Remove deletes t from the runqueue. It is a no-op if t is not present.
func (q *Runqueue) Remove(t *task.Task) {
	for i, x := range q.tasks {
		if x == t {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

// Head returns the task at the front of the queue, or nil if empty.
func (q *Runqueue) Head() *task.Task {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

// RotateToTail moves the current head to the tail and returns the new head
// (or nil if the queue is empty).
func (q *Runqueue) RotateToTail() *task.Task {
	if len(q.tasks) == 0 {
		return nil
	}
	head := q.tasks[0]
	q.tasks = append(q.tasks[1:], head)
	return q.Head()
}

// Len reports how many tasks are queued.
func (q *Runqueue) Len() int { return len(q.tasks) }

// Tasks returns the queue contents in current order. Callers must not
// mutate the returned slice.
func (q *Runqueue) Tasks() []*task.Task { return q.tasks }

// Contains reports whether t is currently queued.
func (q *Runqueue) Contains(t *task.Task) bool {
	for _, x := range q.tasks {
		if x == t {
			return true
		}
	}
	return false
}
