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

package sched

import (
	"fmt"
	"sync/atomic"

	"github.com/dfox97/zephyr/container/dlist"
)

// Thread state flags. PENDING and TIMING are owned by the scheduler and
// the timeout service; DEAD and SUSPENDED are set by the thread lifecycle
// layer and only observed here.
const (
	flagPending uint8 = 1 << iota
	flagTiming
	flagDead
	flagSuspended
)

// Thread is the thread control block. One exists per thread; it is
// created once and owns the single queue node that links the thread into
// either a ready-queue slot or a wait queue, never both.
type Thread struct {
	name string
	prio int

	flags uint8

	// schedLocked disables preemption of this thread while > 0.
	schedLocked int32

	// node links the thread into a ready-queue slot or a wait queue.
	node dlist.Node[Thread]

	// swapErr is the value handed back to the thread when it resumes
	// from a swap; set by whoever made it runnable.
	swapErr error

	// Timeout is this thread's handle into the timeout service.
	Timeout Timeout
}

// Timeout is the per-thread timeout handle. Node and Ticks are owned by
// the timeout service; WaitQ is maintained by the scheduler and points at
// the wait queue the thread pends on, nil when the thread is merely
// sleeping (or not blocked at all).
type Timeout struct {
	WaitQ *WaitQueue
	Node  dlist.Node[Thread]
	Ticks int64
}

// NewThread builds a thread control block for a thread running at prio.
// The caller owns the block; it is not yet known to the scheduler.
func NewThread(name string, prio int) *Thread {
	if prio < -NumCoopPriorities || prio >= NumPreemptPriorities {
		panic(fmt.Sprintf("kernel: sched: priority %d out of range [%d, %d)",
			prio, -NumCoopPriorities, NumPreemptPriorities))
	}
	t := &Thread{name: name, prio: prio}
	t.node.Bind(t)
	t.Timeout.Node.Bind(t)
	return t
}

// Name returns the thread's name.
func (t *Thread) Name() string { return t.name }

// Prio returns the thread's current priority.
func (t *Thread) Prio() int { return t.prio }

// SetSwapResult records the value Take-style blocking calls will see when
// t resumes. It is set by whichever path makes t runnable: nil from a
// signaller, ErrTimedOut from the timeout service.
func (t *Thread) SetSwapResult(err error) { t.swapErr = err }

// SwapResult returns the value recorded by SetSwapResult.
func (t *Thread) SwapResult() error { return t.swapErr }

func (t *Thread) pending() bool   { return t.flags&flagPending != 0 }
func (t *Thread) timing() bool    { return t.flags&flagTiming != 0 }
func (t *Thread) runnable() bool  { return t.flags&(flagDead|flagSuspended) == 0 }
func (t *Thread) markPending()    { t.flags |= flagPending }
func (t *Thread) markTiming()     { t.flags |= flagTiming }
func (t *Thread) markDead()       { t.flags |= flagDead }
func (t *Thread) clearBlocked()   { t.flags &^= flagPending | flagTiming }

// preemptible reports whether t may be switched away from involuntarily:
// it must run at a preemptible (non-negative) priority with the scheduler
// unlocked.
func (t *Thread) preemptible() bool {
	return t.prio >= 0 && atomic.LoadInt32(&t.schedLocked) == 0
}

// isPrioHigher reports whether priority a outranks priority b.
func isPrioHigher(a, b int) bool { return a < b }
