// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission bounds concurrent transcode sessions per client identity.
package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
)

// DefaultCapacity is the number of concurrent sessions a client may hold.
const DefaultCapacity = 2

// Controller hands out per-client counting permits. Waiters for the same
// client are served first-come-first-served; distinct clients never block
// each other. Permit tables are created on first use and kept for the life of
// the process, so memory grows with distinct clients, not with requests.
type Controller struct {
	capacity int64

	mu      sync.Mutex
	clients map[string]*permits
}

type permits struct {
	sem  *semaphore.Weighted
	held atomic.Int64
}

// NewController returns a Controller allowing capacity concurrent permits per
// client. A non-positive capacity selects DefaultCapacity.
func NewController(capacity int) *Controller {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Controller{
		capacity: int64(capacity),
		clients:  make(map[string]*permits),
	}
}

// Capacity returns the per-client permit count.
func (c *Controller) Capacity() int {
	return int(c.capacity)
}

func (c *Controller) permitsFor(clientID string) *permits {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.clients[clientID]
	if !ok {
		p = &permits{sem: semaphore.NewWeighted(c.capacity)}
		c.clients[clientID] = p
		metrics.SetAdmissionClients(len(c.clients))
	}
	return p
}

// Acquire blocks until a permit for clientID is free or ctx ends. On
// cancellation it returns ctx.Err() and holds nothing.
func (c *Controller) Acquire(ctx context.Context, clientID string) error {
	p := c.permitsFor(clientID)

	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		metrics.ObserveAdmissionWait("canceled", time.Since(start))
		log.L().Debug().
			Str(log.FieldEvent, "admission.canceled").
			Str(log.FieldClientID, clientID).
			Dur("waited", time.Since(start)).
			Msg("client left while waiting for a transcode slot")
		return err
	}

	p.held.Add(1)
	metrics.IncPermitsInUse()
	metrics.ObserveAdmissionWait("acquired", time.Since(start))
	return nil
}

// Release returns one permit for clientID. Releasing more permits than were
// acquired is logged and ignored.
func (c *Controller) Release(clientID string) {
	c.mu.Lock()
	p, ok := c.clients[clientID]
	c.mu.Unlock()

	if !ok || !decrementIfPositive(&p.held) {
		log.L().Error().
			Str(log.FieldEvent, "admission.over_release").
			Str(log.FieldClientID, clientID).
			Msg("release without a matching acquire")
		return
	}

	metrics.DecPermitsInUse()
	p.sem.Release(1)
}

// InUse returns the number of permits clientID currently holds.
func (c *Controller) InUse(clientID string) int {
	c.mu.Lock()
	p, ok := c.clients[clientID]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	return int(p.held.Load())
}

// Clients returns the number of distinct client identities seen.
func (c *Controller) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func decrementIfPositive(v *atomic.Int64) bool {
	for {
		cur := v.Load()
		if cur <= 0 {
			return false
		}
		if v.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}
