package services

import "sync/atomic"

// BusyFlag keeps bulk operations, sign-in and sign-out from overlapping.
type BusyFlag struct {
	held atomic.Bool
}

// TryAcquire returns a release function, or ErrBusy when the flag is already held.
// Callers defer the release so an error or panic cannot leave the flag set.
func (b *BusyFlag) TryAcquire() (release func(), err error) {
	if !b.held.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			b.held.Store(false)
		}
	}, nil
}

func (b *BusyFlag) Busy() bool {
	return b.held.Load()
}
