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

// Package sem provides a counting semaphore built on the scheduler's
// pend/unpend primitives. Waiters are released in priority order, ties
// broken by arrival.
package sem

import (
	"errors"

	"github.com/dfox97/zephyr/kernel/sched"
)

// ErrBusy is returned by a NoWait Take on an unavailable semaphore.
var ErrBusy = errors.New("sem: unavailable")

// NoWait makes Take fail immediately instead of pending.
const NoWait int32 = 0

// Sem is a counting semaphore. The zero value is unusable; use New.
type Sem struct {
	count uint32
	limit uint32
	wq    sched.WaitQueue
}

// New returns a semaphore with the given initial count and maximum.
func New(initial, limit uint32) *Sem {
	if limit == 0 || initial > limit {
		panic("sem: invalid initial count or limit")
	}
	return &Sem{count: initial, limit: limit}
}

// Take acquires the semaphore, pending the running thread for up to
// timeoutMs milliseconds when the count is zero. Pass NoWait to fail
// fast with ErrBusy, or sched.Forever to wait indefinitely. A wait cut
// short by the timeout service returns sched.ErrTimedOut.
// Not callable from ISR (it may block).
func (s *Sem) Take(timeoutMs int32) error {
	key := sched.IRQLock()

	if s.count > 0 {
		s.count--
		sched.IRQUnlock(key)
		return nil
	}

	if timeoutMs == NoWait {
		sched.IRQUnlock(key)
		return ErrBusy
	}

	sched.PendCurrent(&s.wq, timeoutMs)
	sched.Swap(key)

	return sched.Current().SwapResult()
}

// Give releases the semaphore: the highest-priority waiter is readied,
// or the count is incremented up to the limit when nobody waits.
// Callable from ISR; the preemption then happens on interrupt exit.
func (s *Sem) Give() {
	key := sched.IRQLock()

	t := sched.UnpendFirst(&s.wq)
	if t == nil {
		if s.count < s.limit {
			s.count++
		}
		sched.IRQUnlock(key)
		return
	}

	t.SetSwapResult(nil)
	sched.ReadyThread(t)

	if sched.InISR() {
		sched.IRQUnlock(key)
	} else {
		sched.Reschedule(key)
	}
}

// Count returns the current count.
func (s *Sem) Count() uint32 {
	key := sched.IRQLock()
	n := s.count
	sched.IRQUnlock(key)
	return n
}
