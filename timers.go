package reactor

import (
	"container/heap"
	"time"
)

// timedWait is a wait-registry entry. A zero deadline means the task is
// blocked indefinitely and is woken only by an explicit Unblock, never by the
// timer sweep.
type timedWait struct {
	task     *Task
	deadline time.Time
	reason   string
	index    int // heap index, or -1 when not in the deadline heap
}

// waitHeap is a min-heap of timed waits keyed by deadline. Indefinite waits
// live only in the registry map, never in the heap.
type waitHeap []*timedWait

func (h waitHeap) Len() int           { return len(h) }
func (h waitHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h waitHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waitHeap) Push(x any) {
	w := x.(*timedWait)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *waitHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]
	return w
}

// addWait records the task in the wait registry. A task appears in the
// registry at most once; re-registering overwrites the prior entry.
func (r *Reactor) addWait(t *Task, deadline time.Time, reason string) {
	if prev, ok := r.waits[t]; ok {
		if prev.index >= 0 {
			heap.Remove(&r.timers, prev.index)
		}
	}
	w := &timedWait{task: t, deadline: deadline, reason: reason, index: -1}
	r.waits[t] = w
	if !deadline.IsZero() {
		heap.Push(&r.timers, w)
	}
}

// removeWait clears the task's wait-registry entry, if any.
func (r *Reactor) removeWait(t *Task) {
	w, ok := r.waits[t]
	if !ok {
		return
	}
	delete(r.waits, t)
	if w.index >= 0 {
		heap.Remove(&r.timers, w.index)
	}
}

// fireDueTimers resumes every task whose deadline has passed, strictly
// earliest deadline first. Indefinite waits have no deadline and are never
// swept here.
func (r *Reactor) fireDueTimers() {
	for len(r.timers) > 0 {
		w := r.timers[0]
		if w.deadline.After(time.Now()) {
			return
		}
		r.removeWait(w.task)
		r.logger.Debug().
			Uint64("task", w.task.id).
			Str("reason", w.reason).
			Time("deadline", w.deadline).
			Log("timer fired")
		r.resumeTask(w.task, 0)
	}
}

// pollTimeoutMs returns the poll timeout in milliseconds, bounded by the time
// remaining until the nearest pending deadline so a quiet descriptor cannot
// starve a due timer. Returns -1 (block indefinitely) when no timed wait is
// pending.
func (r *Reactor) pollTimeoutMs() int {
	if len(r.timers) == 0 {
		return -1
	}
	d := time.Until(r.timers[0].deadline)
	if d <= 0 {
		return 0
	}
	// Round up so we never poll with a zero timeout while the deadline is
	// still in the future.
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
