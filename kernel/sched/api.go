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

	"github.com/dfox97/zephyr/internal/klog"
)

func assertNotISR(op string) {
	if kern.port.InISR() {
		panic("kernel: sched: " + op + " called from ISR")
	}
}

// Yield gives up the CPU to threads of higher or equal priority: the
// running thread moves to the tail of its priority's ready slot and the
// scheduler picks again. Not callable from ISR.
func Yield() {
	assertNotISR("Yield")

	key := kern.port.IRQLock()

	kern.ready.remove(kern.current)
	kern.ready.add(kern.current)

	if kern.current == GetNextReadyThread() {
		kern.port.IRQUnlock(key)
	} else {
		kern.port.Swap(key)
	}
}

// Sleep blocks the running thread for ms milliseconds. A zero duration
// is treated as a yield. The thread resumes when the timeout service
// readies it, or earlier via Wakeup. Not callable from ISR.
func Sleep(ms int32) {
	assertNotISR("Sleep")

	if ms == 0 {
		Yield()
		return
	}

	klog.Debug("sleeping", "thread", kern.current.name, "ms", ms)

	key := kern.port.IRQLock()

	kern.current.markTiming()
	kern.current.swapErr = nil
	kern.ready.remove(kern.current)
	kern.timeouts.Add(kern.current, nil, MsToTicks(ms))

	kern.port.Swap(key)
}

// Wakeup rouses a sleeping thread early. It is silently ignored when the
// thread is blocked on a synchronization object (use the object's API
// instead) or when the thread's timeout has already begun expiring; the
// timer path completes the wake in that case.
func Wakeup(t *Thread) {
	key := kern.port.IRQLock()

	// a non-nil wait queue means blocked on an object, not sleeping
	if t.Timeout.WaitQ != nil {
		kern.port.IRQUnlock(key)
		return
	}

	if err := kern.timeouts.Abort(t); err != nil {
		kern.port.IRQUnlock(key)
		return
	}

	ReadyThread(t)

	if kern.port.InISR() {
		kern.port.IRQUnlock(key)
	} else {
		Reschedule(key)
	}
}

// PrioritySet changes t's priority. A ready thread is re-queued in the
// slot for the new priority; a pending thread is re-sorted within its
// wait queue so the queue stays priority ordered. Not callable from ISR.
func PrioritySet(t *Thread, prio int) {
	assertNotISR("PrioritySet")

	if prio < -NumCoopPriorities || prio >= NumPreemptPriorities {
		panic(fmt.Sprintf("kernel: sched: priority %d out of range [%d, %d)",
			prio, -NumCoopPriorities, NumPreemptPriorities))
	}

	key := kern.port.IRQLock()

	switch {
	case t.pending():
		t.node.Remove()
		t.prio = prio
		t.Timeout.WaitQ.insert(t)
	case t.node.InList():
		kern.ready.remove(t)
		t.prio = prio
		kern.ready.add(t)
	default:
		t.prio = prio
	}

	Reschedule(key)
}

// PriorityGet returns t's priority.
func PriorityGet(t *Thread) int { return t.prio }

// CurrentPriorityGet returns the running thread's priority.
func CurrentPriorityGet() int { return kern.current.prio }
