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

// Compile-time kernel configuration.
//
// Priorities are signed: [-NumCoopPriorities, NumPreemptPriorities).
// Negative priorities are cooperative: such threads are never preempted
// and give up the CPU only by yielding, pending or sleeping. Lower numeric
// value means higher priority.
const (
	NumCoopPriorities    = 16
	NumPreemptPriorities = 16

	// TicksPerSec is the kernel tick rate.
	TicksPerSec = 100

	numPrio  = NumCoopPriorities + NumPreemptPriorities
	msPerSec = 1000
)

// Forever makes a pend wait with no timeout.
// Any negative pend timeout is treated the same way. Sleep has no such
// case: every non-zero duration it is given arms a timeout.
const Forever int32 = -1

// MsToTicks converts a duration in milliseconds to kernel ticks,
// rounding up. The intermediate math is 64-bit so the full int32
// millisecond range cannot overflow.
func MsToTicks(ms int32) int64 {
	msTicksPerSec := int64(ms) * TicksPerSec
	return (msTicksPerSec + msPerSec - 1) / msPerSec
}
