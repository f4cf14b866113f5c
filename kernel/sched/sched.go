/*
 * Copyright 2025 Zephyr-Go Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sched is the core thread scheduler: the ready queue and its
// priority bitmap, wait-queue pend/unpend, and the decision logic that
// picks the next thread to run.
//
// Every entry point mutates shared state under the single interrupt lock
// provided by the port and releases it exactly once, either explicitly or
// by handing the key to Swap. The scheduler has no recoverable errors;
// invariant violations panic.
package sched

import (
	"errors"
	"sync/atomic"

	"github.com/dfox97/zephyr/internal/klog"
)

// ErrTimedOut is handed to a pending thread resumed by timeout expiry
// rather than by a signaller.
var ErrTimedOut = errors.New("kernel: wait timed out")

// IRQKey is the token produced by IRQLock. It encodes the prior
// interrupt-lock state and must be consumed exactly once, by IRQUnlock or
// by Swap.
type IRQKey int

// Port is the architecture layer the scheduler runs on: the interrupt
// lock, ISR detection, and the context-switch primitive.
type Port interface {
	// IRQLock enters the interrupt-locked critical section. Nestable.
	IRQLock() IRQKey
	// IRQUnlock leaves the critical section entered with key.
	IRQUnlock(key IRQKey)
	// InISR reports whether the caller runs in interrupt context.
	InISR() bool
	// Swap switches to the scheduler's chosen next thread, consuming
	// key. It returns only when this thread is next resumed, with the
	// interrupt state restored from the key of that later resumption.
	Swap(key IRQKey)
}

// Timeouts is the timeout service contract. The scheduler only marks and
// unmarks threads as timing; expiry delivery belongs to the service.
type Timeouts interface {
	// Add arms a timeout of ticks for t. wq is the wait queue t pends
	// on, nil when t is sleeping.
	Add(t *Thread, wq *WaitQueue, ticks int64)
	// Abort disarms t's timeout. It fails if the timeout has already
	// expired or is being delivered, in which case the caller must let
	// the timer path complete.
	Abort(t *Thread) error
}

// kernel is the process-wide scheduler state. All access runs under the
// port's interrupt lock; current is written only by the context-switch
// primitive.
type kernel struct {
	ready    readyQueue
	current  *Thread
	port     Port
	timeouts Timeouts
}

var kern kernel

// Init installs the port and timeout service and makes main the running
// thread. Called once at boot by the port, before any other scheduler
// call; calling it again reinitializes the kernel (tests rely on this).
func Init(p Port, ts Timeouts, main *Thread) {
	kern = kernel{port: p, timeouts: ts}
	kern.ready.add(main)
	kern.current = main
}

// Current returns the running thread.
func Current() *Thread { return kern.current }

// SetCurrent installs t as the running thread. It is called only by the
// context-switch primitive.
func SetCurrent(t *Thread) { kern.current = t }

// IRQLock enters the interrupt-locked critical section.
// Exposed for synchronization-object implementers.
func IRQLock() IRQKey { return kern.port.IRQLock() }

// IRQUnlock leaves the critical section entered with key.
func IRQUnlock(key IRQKey) { kern.port.IRQUnlock(key) }

// InISR reports whether the caller runs in interrupt context.
func InISR() bool { return kern.port.InISR() }

// Swap context-switches to the next ready thread, consuming key.
// All state the thread cares about must be committed to its control
// block before calling; the call returns only at a later resumption.
func Swap(key IRQKey) { kern.port.Swap(key) }

// AddThreadToReadyQ makes a newly created thread runnable.
// Interrupts must be locked.
func AddThreadToReadyQ(t *Thread) {
	kern.ready.add(t)
}

// RemoveThreadFromReadyQ unlinks t from the ready queue.
// Interrupts must be locked.
func RemoveThreadFromReadyQ(t *Thread) {
	kern.ready.remove(t)
}

// ReadyThread makes t runnable: it is unlinked from any wait queue, its
// PENDING and TIMING flags are cleared, and it joins the ready queue
// unless it is dead or suspended. Interrupts must be locked.
func ReadyThread(t *Thread) {
	if t.pending() {
		t.node.Remove()
		t.Timeout.WaitQ = nil
	}
	t.clearBlocked()
	if t.runnable() {
		kern.ready.add(t)
	}
}

// GetNextReadyThread returns the highest-priority ready thread. Exposed
// for the port's interrupt-exit path. Interrupts must be locked.
func GetNextReadyThread() *Thread {
	return kern.ready.peekNext()
}

// mustSwitch reports whether a strictly higher-priority thread than the
// current one is ready. Only meaningful when the current thread is
// preemptible.
func mustSwitch() bool {
	next := kern.ready.peekNext()
	if klog.Enabled() {
		klog.Debug("must switch?", "current", kern.current.name,
			"current_prio", kern.current.prio, "highest_prio", next.prio)
		kern.ready.dump()
	}
	return isPrioHigher(next.prio, kern.current.prio)
}

// ShouldPreempt reports whether the current thread must give way to a
// higher-priority ready thread. Used by Reschedule and by the port when
// it returns from an interrupt. Interrupts must be locked.
func ShouldPreempt() bool {
	return kern.current.preemptible() && mustSwitch()
}

// Reschedule is the single exit path after any state change that may
// have altered the head of the ready queue: it either context-switches
// or releases the interrupt lock, consuming key either way.
// Not callable from interrupt context; ISRs raise a deferred reschedule
// that the port takes on interrupt exit instead.
func Reschedule(key IRQKey) {
	if atomic.LoadInt32(&kern.current.schedLocked) > 0 {
		klog.Debug("reschedule skipped: scheduler locked", "thread", kern.current.name)
		kern.port.IRQUnlock(key)
		return
	}
	if ShouldPreempt() {
		klog.Debug("context-switching out", "thread", kern.current.name)
		kern.port.Swap(key)
	} else {
		kern.port.IRQUnlock(key)
	}
}

// Pend blocks t on wq: it is inserted by priority, marked pending, and,
// for a finite timeout in milliseconds, registered with the timeout
// service. The thread must not be on the ready queue.
// Interrupts must be locked.
func Pend(t *Thread, wq *WaitQueue, timeoutMs int32) {
	wq.insert(t)
	t.markPending()
	t.swapErr = nil
	t.Timeout.WaitQ = wq
	if timeoutMs >= 0 {
		t.markTiming()
		kern.timeouts.Add(t, wq, MsToTicks(timeoutMs))
	}
}

// PendCurrent blocks the running thread on wq. The caller must follow
// with a Swap. Interrupts must be locked.
func PendCurrent(wq *WaitQueue, timeoutMs int32) {
	kern.ready.remove(kern.current)
	Pend(kern.current, wq, timeoutMs)
}

// UnpendFirst removes and returns the highest-priority waiter of wq,
// disarming its timeout, or returns nil if wq is empty. The caller is
// expected to follow with ReadyThread and a reschedule.
// Interrupts must be locked.
func UnpendFirst(wq *WaitQueue) *Thread {
	t := wq.waiters.PeekHead()
	if t == nil {
		return nil
	}
	t.node.Remove()
	t.Timeout.WaitQ = nil
	t.flags &^= flagPending
	if t.timing() {
		// the timeout is still armed: expiry readies threads only
		// after unlinking them from the timing list
		if err := kern.timeouts.Abort(t); err == nil {
			t.flags &^= flagTiming
		}
	}
	return t
}

// ExitCurrent retires the running thread: it leaves the ready queue and
// is marked dead. The port follows with a final switch that never
// resumes it. Interrupts must be locked.
func ExitCurrent() {
	t := kern.current
	kern.ready.remove(t)
	t.markDead()
	klog.Debug("thread exited", "thread", t.name)
}
