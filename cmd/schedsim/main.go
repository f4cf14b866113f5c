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

// schedsim boots the kernel on the calling goroutine and runs a small
// mixed workload: a producer/consumer pair over a semaphore, two
// yielding spinners, and a timer driver feeding the tick interrupt.
package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/dfox97/zephyr/internal/klog"
	"github.com/dfox97/zephyr/kernel/port"
	"github.com/dfox97/zephyr/kernel/sched"
	"github.com/dfox97/zephyr/kernel/sem"
	"github.com/dfox97/zephyr/kernel/timeout"
)

func main() {
	var (
		debug    = pflag.BoolP("debug", "d", false, "Enable kernel trace logging.")
		tick     = pflag.DurationP("tick", "t", 10*time.Millisecond, "Timer tick period.")
		duration = pflag.DurationP("duration", "D", 500*time.Millisecond, "How long to run the workload.")
	)
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *debug {
		logger.SetLevel(log.DebugLevel)
		klog.SetLogger(logger)
	}

	tq := timeout.New()
	p, _ := port.Boot(tq, 0)

	// timer driver: the only external goroutine, it may only raise
	go func() {
		for range time.Tick(*tick) {
			p.Raise(func() { tq.Tick() })
		}
	}()

	var (
		stop               bool
		produced, consumed int
		spins              [2]int
	)

	jobs := sem.New(0, 64)

	p.Spawn("consumer", 3, func() {
		for !stop {
			if err := jobs.Take(100); err != nil {
				continue
			}
			consumed++
			p.Checkpoint()
		}
	})

	p.Spawn("producer", 5, func() {
		for !stop {
			jobs.Give()
			produced++
			sched.Sleep(20)
		}
	})

	for i := 0; i < 2; i++ {
		i := i
		p.Spawn("spinner", 8, func() {
			for !stop {
				spins[i]++
				p.Checkpoint()
				sched.Yield()
			}
		})
	}

	sched.Sleep(int32(*duration / time.Millisecond))
	stop = true

	logger.Info("workload finished",
		"produced", produced,
		"consumed", consumed,
		"spins_a", spins[0],
		"spins_b", spins[1],
	)
}
