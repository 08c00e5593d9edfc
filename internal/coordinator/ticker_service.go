// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package coordinator

import (
	"context"
	"time"

	"github.com/tomtom215/gallery/internal/logging"
)

// TickerService runs fn on a fixed interval until its context is canceled.
// It implements suture.Service, modeled on the teacher's WAL compactor loop
// (ticker + select on ctx.Done()), generalized to any periodic maintenance
// task; cmd/server uses it for the snapshot cache's periodic Sweep.
type TickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
}

// NewTickerService creates a TickerService that calls fn every interval.
func NewTickerService(name string, interval time.Duration, fn func(ctx context.Context)) *TickerService {
	return &TickerService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logging.Error().Interface("panic", r).Str("service", s.name).
							Msg("ticker service task panicked")
					}
				}()
				s.fn(ctx)
			}()
		}
	}
}

// String implements fmt.Stringer so suture can identify this service in logs.
func (s *TickerService) String() string {
	return s.name
}
