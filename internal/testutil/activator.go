package testutil

import (
	"context"
	"sync"
)

// StubActivator returns a fixed result and records the keys it was given.
type StubActivator struct {
	Valid bool
	Err   error

	mu   sync.Mutex
	keys []string
}

func (a *StubActivator) Activate(ctx context.Context, licenseKey string) (bool, error) {
	a.mu.Lock()
	a.keys = append(a.keys, licenseKey)
	a.mu.Unlock()
	if a.Err != nil {
		return false, a.Err
	}
	return a.Valid, nil
}

// Keys returns the license keys passed to Activate, in call order.
func (a *StubActivator) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}
