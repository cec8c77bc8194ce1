// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit throttles ffprobe spawns, globally and per client.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/vidrelay/internal/metrics"
)

// Config holds rate limiting configuration.
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // probes per second
	GlobalBurst int

	// Per-client limits
	PerClientRate  rate.Limit
	PerClientBurst int

	// Per-kind limits, keyed by asset kind ("progressive", "hls", "dash").
	// Manifest probes fan out into extra fetches, so they get their own budget.
	KindRates map[string]rate.Limit
	KindBurst map[string]int

	// Interval after which idle per-client limiters are dropped.
	CleanupInterval time.Duration
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		GlobalRate:  20,
		GlobalBurst: 40,

		PerClientRate:  2,
		PerClientBurst: 5,

		KindRates: map[string]rate.Limit{
			"progressive": 20,
			"hls":         10,
			"dash":        5,
		},
		KindBurst: map[string]int{
			"progressive": 40,
			"hls":         20,
			"dash":        10,
		},

		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter decides whether a probe may run now.
type Limiter struct {
	config Config

	global    *rate.Limiter
	perKind   map[string]*rate.Limiter
	mu        sync.Mutex
	perClient map[string]*clientLimiter

	lastCleanup time.Time
}

// New creates a limiter with the given config.
func New(config Config) *Limiter {
	l := &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perKind:     make(map[string]*rate.Limiter),
		perClient:   make(map[string]*clientLimiter),
		lastCleanup: time.Now(),
	}
	for kind, kindRate := range config.KindRates {
		l.perKind[kind] = rate.NewLimiter(kindRate, config.KindBurst[kind])
	}
	return l
}

// Allow reports whether clientID may start a probe of the given kind. A
// refusal is counted under the limiter that refused it.
func (l *Limiter) Allow(clientID, kind string) bool {
	if !l.global.Allow() {
		metrics.IncRateLimited("probe_global")
		return false
	}

	if kl, ok := l.perKind[kind]; ok && !kl.Allow() {
		metrics.IncRateLimited("probe_kind")
		return false
	}

	if !l.clientLimiter(clientID).Allow() {
		metrics.IncRateLimited("probe_client")
		return false
	}

	l.maybeCleanup()
	return true
}

func (l *Limiter) clientLimiter(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.perClient[clientID]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.config.PerClientRate, l.config.PerClientBurst)}
		l.perClient[clientID] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// maybeCleanup drops client limiters idle for a full cleanup interval.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config.CleanupInterval <= 0 || time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	cutoff := time.Now().Add(-l.config.CleanupInterval)
	for id, cl := range l.perClient {
		if cl.lastSeen.Before(cutoff) {
			delete(l.perClient, id)
		}
	}
	l.lastCleanup = time.Now()
}

// Clients returns the number of tracked client limiters.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perClient)
}
