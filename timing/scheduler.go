/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package timing

import (
	"context"
	"sync"
	"time"
)

// Ticker runs fn on a fixed interval until its context is cancelled or
// Stop is called, firing once immediately before the first tick. Mirrors
// the interval-ticker/running-flag shape of a subscription's Start loop,
// generalized to any named timer instead of one fixed PTP message type.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	running  bool
	cancel   context.CancelFunc
}

// NewTicker builds a Ticker for the given interval.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

// Start launches fn on the configured interval in its own goroutine; it
// returns immediately. Calling Start while already running is a no-op.
func (t *Ticker) Start(ctx context.Context, fn func()) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.mu.Unlock()

	go func() {
		defer t.setRunning(false)
		fn()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		current := t.interval
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				fn()
				if next := t.currentInterval(); next != current {
					ticker.Reset(next)
					current = next
				}
			}
		}
	}()
}

// Stop halts the ticker. Safe to call even if it was never started.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Running reports whether the ticker's goroutine is currently active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) currentInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Ticker) setRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
}

// SetInterval atomically updates the ticker's interval; it takes effect
// on the next firing.
func (t *Ticker) SetInterval(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = interval
}
