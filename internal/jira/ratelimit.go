// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jira

import (
	"context"
	"sync"
	"time"
)

// admitSlack is added to the computed wait so the oldest timestamp has
// definitely aged out of the window when the sleeper re-evaluates.
const admitSlack = 10 * time.Millisecond

// rateLimiter is a sliding-window admission gate. It counts requests in
// the trailing window ending now, so bursts straddling a window boundary
// cannot double the effective quota the way a fixed-bucket counter would.
//
// Pruning and appending happen atomically under one mutex; the mutex is
// never held across a sleep.
type rateLimiter struct {
	mu     sync.Mutex
	quota  int
	window time.Duration
	stamps []time.Time

	// now and sleep are injectable for tests driving a simulated clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newRateLimiter(quota int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		quota:  quota,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// admit blocks until issuing one more request would not exceed quota
// requests within the trailing window, then records the new timestamp.
// Returns the context error if the caller is cancelled while waiting;
// cancellation leaves the window bookkeeping of other callers untouched.
func (l *rateLimiter) admit(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.stamps) < l.quota {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.stamps[0]) + admitSlack
		l.mu.Unlock()

		rateLimitWaits.Inc()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps older than now minus the window. Callers must
// hold the mutex.
func (l *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// recorded returns the number of timestamps currently inside the window.
func (l *rateLimiter) recorded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// sleepContext sleeps for d, returning early with the context error if
// the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
