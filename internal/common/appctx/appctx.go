// Package appctx provides context utilities for work that must outlive the
// request that started it.
package appctx

import (
	"context"
	"time"
)

// Detached returns a context that keeps the parent's values but not its
// cancellation. It is cancelled when stopCh is closed or timeout expires.
// A nil stopCh is never closed.
func Detached(parent context.Context, stopCh <-chan struct{}, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)

	if stopCh != nil {
		go func() {
			select {
			case <-stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return ctx, cancel
}
