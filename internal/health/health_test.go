// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Ready_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)
}

func TestManager_Ready_Aggregates(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "ok", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "busy", status: StatusDegraded})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)

	m.RegisterChecker(&mockChecker{name: "broken", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_ServeReady(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "broken", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.Equal(t, "v1.0.0", resp.Version)
}

func TestBinaryChecker(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	res := NewBinaryChecker("ffmpeg", bin).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)

	res = NewBinaryChecker("ffmpeg", filepath.Join(t.TempDir(), "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)

	res = NewBinaryChecker("ffmpeg", "").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}

func TestPerformStartupChecks(t *testing.T) {
	assert.NoError(t, PerformStartupChecks(context.Background(), &mockChecker{name: "ok", status: StatusHealthy}))

	err := PerformStartupChecks(context.Background(),
		&mockChecker{name: "ok", status: StatusHealthy},
		NewBinaryChecker("ffprobe", filepath.Join(t.TempDir(), "missing")),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe")
}
