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
	"sync/atomic"

	"github.com/dfox97/zephyr/internal/klog"
)

// SchedLock disables preemption of the running thread until a balancing
// SchedUnlock. Nestable. Not callable from ISR.
func SchedLock() {
	assertNotISR("SchedLock")
	atomic.AddInt32(&kern.current.schedLocked, 1)
}

// SchedUnlock balances one SchedLock. The outermost unlock reaches zero
// and reschedules, so a higher-priority thread that became ready while
// the lock was held runs immediately. Not callable from ISR.
func SchedUnlock() {
	if atomic.LoadInt32(&kern.current.schedLocked) <= 0 {
		panic("kernel: sched: unbalanced SchedUnlock")
	}
	assertNotISR("SchedUnlock")

	key := kern.port.IRQLock()

	atomic.AddInt32(&kern.current.schedLocked, -1)

	klog.Debug("scheduler unlocked", "thread", kern.current.name,
		"depth", atomic.LoadInt32(&kern.current.schedLocked))

	Reschedule(key)
}

// SchedLockCount returns the running thread's preemption-lock depth.
func SchedLockCount() int {
	return int(atomic.LoadInt32(&kern.current.schedLocked))
}
