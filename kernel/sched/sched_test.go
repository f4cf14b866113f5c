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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort runs the kernel single-threaded: Swap installs the next ready
// thread as current and returns, so a test continues executing "as" the
// switched-to thread. Switches are recorded by thread name.
type fakePort struct {
	depth    int
	isr      bool
	switches []string
}

func (p *fakePort) IRQLock() IRQKey {
	p.depth++
	return IRQKey(p.depth - 1)
}

func (p *fakePort) IRQUnlock(key IRQKey) {
	p.depth = int(key)
}

func (p *fakePort) InISR() bool { return p.isr }

func (p *fakePort) Swap(key IRQKey) {
	next := GetNextReadyThread()
	SetCurrent(next)
	p.switches = append(p.switches, next.name)
	p.IRQUnlock(key)
}

// interrupt mimics the port's interrupt delivery and exit path.
func (p *fakePort) interrupt(fn func()) {
	key := p.IRQLock()
	p.isr = true
	fn()
	p.isr = false
	if ShouldPreempt() {
		p.Swap(key)
	} else {
		p.IRQUnlock(key)
	}
}

var errNotArmed = errors.New("fake: no timeout armed")

type fakeTimeouts struct {
	armed map[*Thread]int64
}

func newFakeTimeouts() *fakeTimeouts {
	return &fakeTimeouts{armed: map[*Thread]int64{}}
}

func (f *fakeTimeouts) Add(t *Thread, _ *WaitQueue, ticks int64) {
	f.armed[t] = ticks
}

func (f *fakeTimeouts) Abort(t *Thread) error {
	if _, ok := f.armed[t]; !ok {
		return errNotArmed
	}
	delete(f.armed, t)
	return nil
}

// expire delivers a timeout the way the service's tick would.
func (f *fakeTimeouts) expire(t *Thread) {
	delete(f.armed, t)
	if t.Timeout.WaitQ != nil {
		t.SetSwapResult(ErrTimedOut)
	} else {
		t.SetSwapResult(nil)
	}
	ReadyThread(t)
}

func bootFake(mainPrio int) (*fakePort, *fakeTimeouts, *Thread) {
	p := &fakePort{}
	ts := newFakeTimeouts()
	main := NewThread("main", mainPrio)
	Init(p, ts, main)
	idle := NewThread("idle", NumPreemptPriorities-1)
	AddThreadToReadyQ(idle)
	return p, ts, main
}

func spawnReady(name string, prio int) *Thread {
	t := NewThread(name, prio)
	AddThreadToReadyQ(t)
	return t
}

// A thread readied from an ISR preempts a lower-priority one on
// interrupt exit, and the preempted thread stays at the head of its slot.
func TestPreemptionOnInterruptExit(t *testing.T) {
	p, _, a := bootFake(5)
	b := NewThread("b", 3)

	p.interrupt(func() {
		ReadyThread(b)
	})

	require.Equal(t, b, Current())
	require.Equal(t, []string{"b"}, p.switches)
	require.Equal(t, a, kern.ready.q[prioToSlot(5)].PeekHead())
}

// Equal-priority threads rotate FIFO under yield.
func TestYieldRotatesEqualPriority(t *testing.T) {
	p, _, _ := bootFake(4)
	spawnReady("b", 4)
	spawnReady("c", 4)

	order := []string{Current().name}
	for i := 0; i < 6; i++ {
		Yield()
		order = append(order, Current().name)
	}
	require.Equal(t, []string{"main", "b", "c", "main", "b", "c", "main"}, order)
	require.Zero(t, p.depth)
}

func TestYieldWithoutPeersKeepsRunning(t *testing.T) {
	p, _, a := bootFake(4)

	Yield()

	require.Equal(t, a, Current())
	require.Empty(t, p.switches)
}

// A cooperative thread is not preempted by a wakeup it performs; the
// readied thread runs once the cooperative one blocks.
func TestCooperativeThreadNotPreempted(t *testing.T) {
	p, ts, a := bootFake(-1)
	spawnReady("b", 3)

	// c is sleeping
	c := NewThread("c", 2)
	c.markTiming()
	ts.armed[c] = 10

	Wakeup(c)
	require.Equal(t, a, Current(), "cooperative thread must keep the CPU")
	require.Empty(t, p.switches)

	// a blocks voluntarily; the highest-priority ready thread runs
	var wq WaitQueue
	key := IRQLock()
	PendCurrent(&wq, Forever)
	Swap(key)
	require.Equal(t, c, Current())
}

// Wait-queue order is by priority, FIFO among equals.
func TestWaitQueueOrdering(t *testing.T) {
	bootFake(0)
	var wq WaitQueue

	t1 := NewThread("t1", 6)
	t2 := NewThread("t2", 4)
	t3 := NewThread("t3", 4)
	t4 := NewThread("t4", 2)
	for _, th := range []*Thread{t1, t2, t3, t4} {
		Pend(th, &wq, Forever)
	}

	var got []string
	wq.Each(func(th *Thread) { got = append(got, th.name) })
	require.Equal(t, []string{"t4", "t2", "t3", "t1"}, got)
}

// Wakeup aborts a pending timeout and readies the
// sleeper; once the abort has lost, wakeup is a no-op.
func TestWakeupSleepingThread(t *testing.T) {
	p, ts, a := bootFake(5)

	c := NewThread("c", 2)
	c.markTiming()
	ts.armed[c] = 10

	Wakeup(c)
	require.Equal(t, c, Current(), "woken higher-priority thread preempts")
	require.Equal(t, []string{"c"}, p.switches)
	require.NotContains(t, ts.armed, c)

	// a is still ready, c running; waking a thread with no timeout armed
	// is ignored
	Wakeup(a)
	require.Equal(t, c, Current())
	require.Len(t, p.switches, 1)
}

func TestWakeupFromISRDefersSwitch(t *testing.T) {
	p, ts, a := bootFake(5)

	c := NewThread("c", 2)
	c.markTiming()
	ts.armed[c] = 10

	p.interrupt(func() {
		Wakeup(c)
		if Current() != a {
			t.Fatal("wakeup inside an ISR must not switch")
		}
	})

	// the switch happens on interrupt exit instead
	require.Equal(t, c, Current())
	require.Equal(t, []string{"c"}, p.switches)
}

func TestWakeupIgnoredWhenPendingOnObject(t *testing.T) {
	p, ts, _ := bootFake(5)
	var wq WaitQueue

	b := NewThread("b", 2)
	Pend(b, &wq, 100)

	Wakeup(b)

	require.True(t, b.pending())
	require.Contains(t, ts.armed, b, "timeout must stay armed")
	require.Empty(t, p.switches)
}

// The scheduler lock defers preemption to the outermost unlock.
func TestSchedLockDefersPreemption(t *testing.T) {
	p, _, c := bootFake(5)

	SchedLock()
	SchedLock() // nested

	h := NewThread("h", 1)
	p.interrupt(func() { ReadyThread(h) })
	require.Equal(t, c, Current(), "locked thread keeps running")

	SchedUnlock()
	require.Equal(t, c, Current(), "inner unlock must not switch")

	SchedUnlock()
	require.Equal(t, h, Current(), "outermost unlock switches")
	require.Equal(t, []string{"h"}, p.switches)
}

func TestSchedUnlockUnbalancedPanics(t *testing.T) {
	bootFake(5)
	assert.Panics(t, func() { SchedUnlock() })
}

func TestSleepZeroIsYield(t *testing.T) {
	p, ts, _ := bootFake(4)
	spawnReady("b", 4)

	Sleep(0)

	require.Equal(t, "b", Current().name)
	require.Empty(t, ts.armed, "no timeout must be armed")
	require.Equal(t, []string{"b"}, p.switches)
}

func TestSleepArmsTimeoutAndSwitches(t *testing.T) {
	p, ts, a := bootFake(4)
	spawnReady("b", 6)

	Sleep(30)

	require.Equal(t, "b", Current().name)
	require.True(t, a.timing())
	require.Equal(t, MsToTicks(30), ts.armed[a])
	require.False(t, a.node.InList())

	// expiry readies the sleeper; it outranks b and preempts at the
	// interrupt exit
	p.interrupt(func() { ts.expire(a) })
	require.Equal(t, a, Current())
	require.False(t, a.timing())
	require.NoError(t, a.SwapResult())
}

func TestPendTimeoutDeliversErrTimedOut(t *testing.T) {
	p, ts, a := bootFake(6)
	spawnReady("b", 7)
	var wq WaitQueue

	key := IRQLock()
	PendCurrent(&wq, 50)
	Swap(key)
	require.Equal(t, "b", Current().name)

	p.interrupt(func() { ts.expire(a) })
	require.Equal(t, a, Current())
	require.ErrorIs(t, a.SwapResult(), ErrTimedOut)
	require.True(t, wq.Empty())
	require.Nil(t, a.Timeout.WaitQ)
}

func TestUnpendFirstAbortsTimeout(t *testing.T) {
	bootFake(0)
	var wq WaitQueue
	ts := kern.timeouts.(*fakeTimeouts)

	b := NewThread("b", 5)
	Pend(b, &wq, 200)
	require.Contains(t, ts.armed, b)

	got := UnpendFirst(&wq)
	require.Equal(t, b, got)
	require.False(t, b.pending())
	require.False(t, b.timing())
	require.NotContains(t, ts.armed, b)
	require.Nil(t, UnpendFirst(&wq))
}

func TestPrioritySetRequeuesReadyThread(t *testing.T) {
	p, _, a := bootFake(5)
	b := spawnReady("b", 6)

	PrioritySet(b, 3)

	require.Equal(t, b, Current(), "raised thread preempts")
	require.Equal(t, 3, PriorityGet(b))
	require.True(t, kern.ready.q[prioToSlot(6)].Empty())
	require.False(t, kern.ready.bmap.bit(prioToSlot(6)))

	PrioritySet(b, 7)
	require.Equal(t, a, Current(), "lowered thread gives way")
	require.Equal(t, []string{"b", "main"}, p.switches)
}

// The redesign point: a pending thread changing priority is re-sorted
// within its wait queue.
func TestPrioritySetResortsWaitQueue(t *testing.T) {
	bootFake(0)
	var wq WaitQueue

	t1 := NewThread("t1", 2)
	t2 := NewThread("t2", 4)
	t3 := NewThread("t3", 6)
	for _, th := range []*Thread{t1, t2, t3} {
		Pend(th, &wq, Forever)
	}

	PrioritySet(t3, 1)

	var got []string
	wq.Each(func(th *Thread) { got = append(got, th.name) })
	require.Equal(t, []string{"t3", "t1", "t2"}, got)
	require.Equal(t, &wq, t3.Timeout.WaitQ)
}

func TestPrioritySetOutOfRangePanics(t *testing.T) {
	bootFake(0)
	b := spawnReady("b", 5)
	assert.Panics(t, func() { PrioritySet(b, NumPreemptPriorities) })
	assert.Panics(t, func() { PrioritySet(b, -NumCoopPriorities-1) })
}

func TestAPIPanicsFromISR(t *testing.T) {
	p, _, _ := bootFake(5)
	p.isr = true
	defer func() { p.isr = false }()

	assert.Panics(t, func() { Yield() })
	assert.Panics(t, func() { Sleep(10) })
	assert.Panics(t, func() { PrioritySet(Current(), 3) })
	assert.Panics(t, func() { SchedLock() })
}

func TestRemoveNotQueuedPanics(t *testing.T) {
	bootFake(5)
	b := NewThread("b", 3)
	assert.Panics(t, func() { RemoveThreadFromReadyQ(b) })
}

func TestCurrentAccessors(t *testing.T) {
	_, _, a := bootFake(-2)
	require.Equal(t, a, Current())
	require.Equal(t, -2, CurrentPriorityGet())
	require.Equal(t, "main", Current().Name())
}
