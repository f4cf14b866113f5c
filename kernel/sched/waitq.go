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

import "github.com/dfox97/zephyr/container/dlist"

// WaitQueue is the list of threads blocked on one synchronization object.
// Waiters are kept ordered by priority, highest first; arrivals of equal
// priority go behind incumbents, so release order within a priority is
// FIFO. The zero value is an empty queue.
type WaitQueue struct {
	waiters dlist.List[Thread]
}

// insert links t into wq before the first waiter of strictly lower
// priority. Strict comparison is what preserves FIFO among equals.
func (wq *WaitQueue) insert(t *Thread) {
	prio := t.prio
	wq.waiters.InsertAt(&t.node, func(w *Thread) bool {
		return isPrioHigher(prio, w.prio)
	})
}

// First returns the highest-priority waiter without unlinking it, or nil.
func (wq *WaitQueue) First() *Thread {
	return wq.waiters.PeekHead()
}

// Empty reports whether wq has no waiters.
func (wq *WaitQueue) Empty() bool {
	return wq.waiters.Empty()
}

// Len returns the number of waiters.
func (wq *WaitQueue) Len() int {
	return wq.waiters.Len()
}

// Each calls f on every waiter in queue order.
func (wq *WaitQueue) Each(f func(*Thread)) {
	wq.waiters.Do(f)
}
