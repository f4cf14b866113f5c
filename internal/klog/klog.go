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

// Package klog is the kernel's trace logging hook.
// Tracing is disabled until a logger is installed, and the scheduler hot
// path pays only a nil check for it.
package klog

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var logger atomic.Pointer[log.Logger]

// SetLogger installs l as the kernel trace logger. Passing nil disables
// tracing again. Safe to call at any time, though it is normally done once
// at boot.
func SetLogger(l *log.Logger) {
	logger.Store(l)
}

// Enabled reports whether a trace logger is installed.
func Enabled() bool {
	return logger.Load() != nil
}

// Debug emits a trace line if a logger is installed.
func Debug(msg string, keyvals ...any) {
	if l := logger.Load(); l != nil {
		l.Debug(msg, keyvals...)
	}
}

// Error emits an error line if a logger is installed.
func Error(msg string, keyvals ...any) {
	if l := logger.Load(); l != nil {
		l.Error(msg, keyvals...)
	}
}
