/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock supplies the process time source and local-calendar math.
// Everything that needs "now" takes a Clock so tests can pin time.
package clock

import (
	"sync"
	"time"
)

// Clock yields the current instant and the local zone used for
// calendar-day boundaries.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Real reads the system clock in a fixed zone.
type Real struct {
	loc *time.Location
}

// NewReal creates a system clock in the given zone. A nil location
// falls back to time.Local.
func NewReal(loc *time.Location) *Real {
	if loc == nil {
		loc = time.Local
	}
	return &Real{loc: loc}
}

// Now returns the current system time in the clock's zone.
func (r *Real) Now() time.Time {
	return time.Now().In(r.loc)
}

// Location returns the clock's zone.
func (r *Real) Location() *time.Location {
	return r.loc
}

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock pinned at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the pinned instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Location returns the zone of the pinned instant.
func (f *Fake) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

// Set pins the clock to a new instant.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
