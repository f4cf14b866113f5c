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

// Package timeout is the tick-driven timeout service. Timing threads sit
// on a delta list ordered by expiry; each tick only touches the head.
// All entry points run with interrupts locked by the caller: Add and
// Abort from thread context through the scheduler, Tick from the timer
// interrupt.
package timeout

import (
	"errors"

	"github.com/dfox97/zephyr/container/dlist"
	"github.com/dfox97/zephyr/internal/klog"
	"github.com/dfox97/zephyr/kernel/sched"
)

// ErrExpired is returned by Abort when the timeout has already expired
// or is being delivered; the wake then belongs to the timer path.
var ErrExpired = errors.New("timeout: already expired")

// Queue is a delta-ordered list of timing threads. Each thread's
// Timeout.Ticks holds the ticks remaining after its predecessor expires,
// so advancing time decrements only the head.
type Queue struct {
	timing dlist.List[sched.Thread]
}

// New returns an empty timeout queue.
func New() *Queue {
	return &Queue{}
}

// Add arms a timeout of ticks for t. wq is recorded on the thread by the
// scheduler before the call; it is nil for a plain sleep.
func (q *Queue) Add(t *sched.Thread, wq *sched.WaitQueue, ticks int64) {
	if ticks <= 0 {
		panic("timeout: non-positive tick count")
	}

	remaining := ticks
	q.timing.InsertAt(&t.Timeout.Node, func(w *sched.Thread) bool {
		if remaining < w.Timeout.Ticks {
			w.Timeout.Ticks -= remaining
			return true
		}
		remaining -= w.Timeout.Ticks
		return false
	})
	t.Timeout.Ticks = remaining

	klog.Debug("timeout armed", "thread", t.Name(), "ticks", ticks)
}

// Abort disarms t's timeout. Fails with ErrExpired when the timeout is
// no longer on the timing list, i.e. it has fired or is firing.
func (q *Queue) Abort(t *sched.Thread) error {
	n := &t.Timeout.Node
	if !n.InList() {
		return ErrExpired
	}
	if succ := q.timing.NextOf(n); succ != nil {
		succ.Timeout.Ticks += t.Timeout.Ticks
	}
	n.Remove()
	return nil
}

// Tick advances time by one tick and readies every thread whose timeout
// expired, returning how many were readied. Threads that were pending on
// a wait queue resume with sched.ErrTimedOut; plain sleepers resume with
// nil. Runs in interrupt context; the port takes the deferred reschedule
// on interrupt exit.
func (q *Queue) Tick() int {
	head := q.timing.PeekHead()
	if head == nil {
		return 0
	}
	head.Timeout.Ticks--

	woke := 0
	for {
		t := q.timing.PeekHead()
		if t == nil || t.Timeout.Ticks > 0 {
			break
		}
		t.Timeout.Node.Remove()
		if t.Timeout.WaitQ != nil {
			t.SetSwapResult(sched.ErrTimedOut)
		} else {
			t.SetSwapResult(nil)
		}
		klog.Debug("timeout expired", "thread", t.Name())
		sched.ReadyThread(t)
		woke++
	}
	return woke
}

// Empty reports whether no timeouts are armed.
func (q *Queue) Empty() bool {
	return q.timing.Empty()
}
