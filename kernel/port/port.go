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

// Package port is the architecture layer of the goroutine-backed kernel:
// the nestable interrupt lock, interrupt delivery, and the context-switch
// primitive. Each kernel thread is hosted on a pooled goroutine that is
// parked whenever the thread is not running, so exactly one thread
// executes at a time, as on a uniprocessor.
//
// Interrupts are delivered on the running thread's goroutine, the way a
// trap runs on the interrupted thread's stack: external goroutines only
// enqueue handlers with Raise, and the running thread takes them at its
// next Checkpoint, or in WFI when the idle thread holds the CPU.
package port

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/dfox97/zephyr/internal/klog"
	"github.com/dfox97/zephyr/kernel/sched"
)

// Port implements sched.Port on goroutines.
type Port struct {
	// mu is the interrupt lock. Only the running thread's goroutine
	// takes it (all other threads are parked inside Swap), so the
	// nesting depth needs no owner tracking.
	mu    sync.Mutex
	depth int
	isr   bool

	// pending holds raised interrupt handlers awaiting delivery.
	pending chan func()

	// resume holds the park channel of every live thread.
	resume map[*sched.Thread]chan struct{}
}

// Boot initializes the kernel: the calling goroutine becomes the main
// thread at mainPrio, and an idle thread of lowest priority is spawned
// so the ready queue is never empty.
func Boot(ts sched.Timeouts, mainPrio int) (*Port, *sched.Thread) {
	p := &Port{
		pending: make(chan func(), 64),
		resume:  make(map[*sched.Thread]chan struct{}),
	}
	gopool.SetPanicHandler(func(_ context.Context, r interface{}) {
		klog.Error("panic in thread body", "recovered", fmt.Sprint(r))
		panic(r)
	})

	main := sched.NewThread("main", mainPrio)
	p.resume[main] = make(chan struct{}, 1)
	sched.Init(p, ts, main)

	p.Spawn("idle", sched.NumPreemptPriorities-1, func() {
		for {
			p.WFI()
		}
	})
	return p, main
}

// IRQLock enters the interrupt-locked critical section, returning a key
// encoding the prior nesting depth.
func (p *Port) IRQLock() sched.IRQKey {
	if p.depth == 0 {
		p.mu.Lock()
	}
	p.depth++
	return sched.IRQKey(p.depth - 1)
}

// IRQUnlock restores the nesting depth encoded in key, releasing the
// lock when the outermost section exits.
func (p *Port) IRQUnlock(key sched.IRQKey) {
	p.depth = int(key)
	if p.depth == 0 {
		p.mu.Unlock()
	}
}

// InISR reports whether an interrupt handler is executing.
func (p *Port) InISR() bool {
	return p.isr
}

// Swap switches to the scheduler's chosen next thread, consuming key.
// The calling thread's goroutine parks until the thread is next chosen;
// the interrupt lock is fully released before parking, which is the
// "restore interrupt state" half of a hardware swap.
func (p *Port) Swap(key sched.IRQKey) {
	if p.depth != 1 || key != 0 {
		panic("port: swap from a nested interrupt lock")
	}

	cur := sched.Current()
	next := sched.GetNextReadyThread()
	if next == cur {
		p.IRQUnlock(key)
		return
	}

	sched.SetCurrent(next)
	park := p.resume[cur]
	run := p.resume[next]

	p.depth = 0
	p.mu.Unlock()

	run <- struct{}{}
	<-park
}

// Spawn creates a thread at prio running body on a pooled goroutine and
// makes it ready. The spawner is preempted at once if the new thread
// outranks it. Not callable from ISR.
func (p *Port) Spawn(name string, prio int, body func()) *sched.Thread {
	if p.isr {
		panic("port: Spawn called from ISR")
	}

	t := sched.NewThread(name, prio)
	resume := make(chan struct{}, 1)

	key := p.IRQLock()
	p.resume[t] = resume
	sched.AddThreadToReadyQ(t)

	gopool.Go(func() {
		<-resume // wait to be switched in for the first time
		body()
		p.exit(t)
	})

	sched.Reschedule(key)
	return t
}

// exit retires the running thread and hands the CPU to the next one.
// The goroutine then returns to the pool.
func (p *Port) exit(t *sched.Thread) {
	p.IRQLock()

	sched.ExitCurrent()
	next := sched.GetNextReadyThread()
	sched.SetCurrent(next)
	run := p.resume[next]
	delete(p.resume, t)

	p.depth = 0
	p.mu.Unlock()

	run <- struct{}{}
}

// Raise enqueues an interrupt handler for delivery on the running
// thread's goroutine. Safe to call from any goroutine; this is the only
// port entry point the outside world may use.
func (p *Port) Raise(fn func()) {
	p.pending <- fn
}

// Checkpoint delivers every raised interrupt and returns. Thread bodies
// call it at their preemption points; a body that never checkpoints
// behaves like a thread running with interrupts masked.
func (p *Port) Checkpoint() {
	for {
		select {
		case fn := <-p.pending:
			p.Interrupt(fn)
		default:
			return
		}
	}
}

// WFI blocks until an interrupt is raised, then delivers it. The idle
// thread's body is a WFI loop.
func (p *Port) WFI() {
	p.Interrupt(<-p.pending)
}

// Interrupt runs fn as an interrupt handler on the calling thread's
// goroutine and, on exit from interrupt, takes any deferred reschedule:
// if the handler readied a thread that outranks the preemptible current
// one, the switch happens here.
func (p *Port) Interrupt(fn func()) {
	key := p.IRQLock()
	p.isr = true
	fn()
	p.isr = false

	if sched.ShouldPreempt() {
		p.Swap(key)
	} else {
		p.IRQUnlock(key)
	}
}
