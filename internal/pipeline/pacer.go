// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"time"
)

// Pacer decides how long to wait between consecutive summary requests.
type Pacer interface {
	// Pause blocks until the next request may start. It returns ctx.Err()
	// if ctx ends first.
	Pause(ctx context.Context) error
}

// FixedDelay waits the same duration before every request after the first.
type FixedDelay time.Duration

// Pause implements Pacer.
func (d FixedDelay) Pause(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noDelay struct{}

func (noDelay) Pause(ctx context.Context) error { return ctx.Err() }

// NoDelay never waits. Tests use it.
var NoDelay Pacer = noDelay{}
