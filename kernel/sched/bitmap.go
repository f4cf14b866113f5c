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

import "math/bits"

const bmapWordBits = 32

// prioBitmap has one bit per ready-queue slot; bit i is set iff slot i
// holds at least one ready thread. Finding the highest-priority non-empty
// slot is a trailing-zero count per word.
type prioBitmap struct {
	words [(numPrio + bmapWordBits - 1) / bmapWordBits]uint32
}

func (b *prioBitmap) set(slot int) {
	b.words[slot/bmapWordBits] |= 1 << (slot % bmapWordBits)
}

func (b *prioBitmap) clear(slot int) {
	b.words[slot/bmapWordBits] &^= 1 << (slot % bmapWordBits)
}

func (b *prioBitmap) bit(slot int) bool {
	return b.words[slot/bmapWordBits]&(1<<(slot%bmapWordBits)) != 0
}

// lowestSet returns the lowest set bit index, which maps to the
// numerically smallest (highest) ready priority. Returns -1 when no bit
// is set; callers normally guarantee at least one ready thread exists.
func (b *prioBitmap) lowestSet() int {
	for i, w := range b.words {
		if w != 0 {
			return i*bmapWordBits + bits.TrailingZeros32(w)
		}
	}
	return -1
}
