//go:build linux || darwin

package reactor

import (
	"testing"
	"time"
)

// TestWaitForIO_ReturnsReadySubset verifies the call reports the subset of
// requested events the poll actually observed: a fresh socket is writable
// but not readable.
func TestWaitForIO_ReturnsReadySubset(t *testing.T) {
	r := newTestReactor(t)
	a, _ := testSocketpair(t)

	var got IOEvents
	r.Spawn(func() {
		got = r.WaitForIO(a, EventRead|EventWrite, 0)
	})
	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}

	if got&EventWrite == 0 {
		t.Errorf("ready events = %v, want EventWrite set", got)
	}
	if got&EventRead != 0 {
		t.Errorf("ready events = %v, want EventRead clear", got)
	}
}

// TestWaitForIO_ReadableAfterData verifies read readiness is reported once
// data arrives.
func TestWaitForIO_ReadableAfterData(t *testing.T) {
	r := newTestReactor(t)
	rfd, wfd := testPipe(t)

	var got IOEvents
	task := r.Spawn(func() {
		got = r.WaitForIO(rfd, EventRead, 0)
	})
	if got := task.State(); got != TaskWaitingReadable {
		t.Errorf("task state = %v, want %v", got, TaskWaitingReadable)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		rawWrite(t, wfd, []byte{1})
	}()

	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}
	if got&EventRead == 0 {
		t.Errorf("ready events = %v, want EventRead set", got)
	}
}

// TestWaitForIO_TimeoutReturnsNoEvents verifies a bounded wait on a quiet
// descriptor wakes unconditionally with zero events, leaving no stale
// registrations behind.
func TestWaitForIO_TimeoutReturnsNoEvents(t *testing.T) {
	r := newTestReactor(t)
	rfd, _ := testPipe(t)

	const timeout = 30 * time.Millisecond
	var got IOEvents
	var start, woke time.Time
	r.Spawn(func() {
		start = time.Now()
		got = r.WaitForIO(rfd, EventRead, timeout)
		woke = time.Now()
	})
	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}

	if got != 0 {
		t.Errorf("ready events = %v, want none", got)
	}
	if elapsed := woke.Sub(start); elapsed < timeout {
		t.Errorf("woke after %v, want >= %v", elapsed, timeout)
	}
	if n := r.Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d after timeout, want 0", n)
	}
	if len(r.iomask) != 0 {
		t.Errorf("poller registrations remain: %v", r.iomask)
	}
}

// TestWaitForIO_ReadinessBeatsTimeout verifies readiness arriving before the
// deadline wins and clears the timer registration.
func TestWaitForIO_ReadinessBeatsTimeout(t *testing.T) {
	r := newTestReactor(t)
	rfd, wfd := testPipe(t)

	var got IOEvents
	r.Spawn(func() {
		got = r.WaitForIO(rfd, EventRead, time.Second)
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		rawWrite(t, wfd, []byte{1})
	}()

	start := time.Now()
	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}
	if got&EventRead == 0 {
		t.Errorf("ready events = %v, want EventRead set", got)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("drain took %v, readiness should have beaten the timeout", elapsed)
	}
	if n := r.Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d, want 0", n)
	}
}

// TestWaitForIO_OffTask verifies the call is rejected outside a task.
func TestWaitForIO_OffTask(t *testing.T) {
	r := newTestReactor(t)
	rfd, _ := testPipe(t)

	if got := r.WaitForIO(rfd, EventRead, 0); got != 0 {
		t.Errorf("WaitForIO off-task = %v, want 0", got)
	}
	if n := r.Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d, want 0", n)
	}
}

// TestDispatch_SpuriousReadinessIgnored verifies a readiness result for a
// descriptor with no registered waiter produces no resumption.
func TestDispatch_SpuriousReadinessIgnored(t *testing.T) {
	r := newTestReactor(t)
	rfd, _ := testPipe(t)

	r.dispatch(rfd, EventRead)

	if n := r.Outstanding(); n != 0 {
		t.Errorf("Outstanding() = %d after spurious dispatch, want 0", n)
	}
	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}
}

// TestEndToEnd_IOBeatsLaterTimer is the composed scenario: task A sleeps
// 50ms, task B waits on a descriptor that becomes readable after ~10ms. B
// must resume before A, both must complete before Drain returns, and the
// watch structures must be empty afterwards.
func TestEndToEnd_IOBeatsLaterTimer(t *testing.T) {
	r := newTestReactor(t)
	rfd, wfd := testPipe(t)

	var order []string
	a := r.Spawn(func() {
		r.Sleep(50 * time.Millisecond)
		order = append(order, "timer")
	})
	b := r.Spawn(func() {
		r.WaitForIO(rfd, EventRead, 0)
		order = append(order, "io")
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		rawWrite(t, wfd, []byte{1})
	}()

	if err := r.Drain(); err != nil {
		t.Fatal("Drain failed:", err)
	}

	if len(order) != 2 || order[0] != "io" || order[1] != "timer" {
		t.Errorf("wake order = %v, want [io timer]", order)
	}
	if !a.Done() || !b.Done() {
		t.Error("both tasks should be done before Drain returns")
	}
	if len(r.readers) != 0 || len(r.writers) != 0 || len(r.waits) != 0 {
		t.Error("watch structures not empty after drain")
	}
}
