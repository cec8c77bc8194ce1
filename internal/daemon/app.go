// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vidrelay/internal/metrics"
)

const defaultSampleInterval = 15 * time.Second

// ClientCounter reports how many clients hold admission state.
type ClientCounter interface {
	Clients() int
}

// App owns the long-lived runtime: the server Manager plus background
// samplers that stop with ctx.
type App struct {
	logger         zerolog.Logger
	manager        Manager
	admission      ClientCounter
	sampleInterval time.Duration
}

// NewApp creates a new App orchestrator. admission may be nil.
func NewApp(logger zerolog.Logger, manager Manager, admission ClientCounter) *App {
	return &App{
		logger:         logger,
		manager:        manager,
		admission:      admission,
		sampleInterval: defaultSampleInterval,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.admission != nil {
		g.Go(func() error {
			ticker := time.NewTicker(a.sampleInterval)
			defer ticker.Stop()
			for {
				metrics.SetAdmissionClients(a.admission.Clients())
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(gctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
