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

	"github.com/dfox97/zephyr/container/dlist"
	"github.com/dfox97/zephyr/internal/klog"
)

// readyQueue holds every runnable thread, one FIFO slot per priority,
// with a bitmap mirroring slot occupancy so picking the next thread is a
// bit scan plus a head peek.
type readyQueue struct {
	q    [numPrio]dlist.List[Thread]
	bmap prioBitmap
}

// prioToSlot maps a signed priority to its slot index.
func prioToSlot(prio int) int { return prio + NumCoopPriorities }

// add appends t to the slot for its priority.
// The thread must not be linked into any queue.
func (rq *readyQueue) add(t *Thread) {
	if t.node.InList() {
		panic(fmt.Sprintf("kernel: sched: thread %q is already queued", t.name))
	}
	slot := prioToSlot(t.prio)
	rq.bmap.set(slot)
	rq.q[slot].Append(&t.node)
}

// remove unlinks t from its slot, clearing the bitmap bit if the slot
// drained. The thread must be on the ready queue.
func (rq *readyQueue) remove(t *Thread) {
	slot := prioToSlot(t.prio)
	if !t.node.InList() {
		panic(fmt.Sprintf("kernel: sched: thread %q is not on the ready queue", t.name))
	}
	t.node.Remove()
	if rq.q[slot].Empty() {
		rq.bmap.clear(slot)
	}
}

// peekNext returns the head of the highest-priority non-empty slot
// without unlinking it. The ready queue must not be empty; an idle thread
// of lowest priority is always provisioned at boot.
func (rq *readyQueue) peekNext() *Thread {
	slot := rq.bmap.lowestSet()
	if slot < 0 {
		panic("kernel: sched: no thread to run")
	}
	t := rq.q[slot].PeekHead()
	if t == nil {
		panic(fmt.Sprintf("kernel: sched: ready bitmap bit %d set on empty slot", slot))
	}
	return t
}

// dump traces the ready queue. Costs nothing unless tracing is enabled.
func (rq *readyQueue) dump() {
	if !klog.Enabled() {
		return
	}
	klog.Debug("ready queue", "bitmap", fmt.Sprintf("%#x", rq.bmap.words))
	for slot := range rq.q {
		if head := rq.q[slot].PeekHead(); head != nil {
			klog.Debug("ready slot", "prio", slot-NumCoopPriorities, "head", head.name)
		}
	}
}
