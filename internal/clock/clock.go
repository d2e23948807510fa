// Package clock provides the item layer's monotonic relative time source.
package clock

import "time"

// Clock exposes the current time as relative seconds, the way the item
// layer's exptime field is stamped and compared.
type Clock interface {
	Now() uint32
}

// Real is a Clock backed by the wall clock, relative to the moment it was
// created. Matches the original's time_now(): a 32-bit seconds counter that
// does not wrap for the lifetime of a process.
type Real struct {
	start time.Time
}

func NewReal() *Real {
	return &Real{start: time.Now()}
}

func (r *Real) Now() uint32 {
	return uint32(time.Since(r.start) / time.Second)
}

// Fake is a settable Clock for tests.
type Fake struct {
	now uint32
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Now() uint32     { return f.now }
func (f *Fake) Set(now uint32)  { f.now = now }
func (f *Fake) Advance(d uint32) { f.now += d }
