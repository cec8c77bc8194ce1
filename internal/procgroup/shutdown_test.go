// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidrelay/internal/metrics"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	// Give the shell time to install traps and fork.
	time.Sleep(150 * time.Millisecond)
	return cmd, waitCh
}

func TestTerminate_Graceful(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 30")

	start := time.Now()
	forced, err := Terminate(cmd, waitCh, 3*time.Second)

	assert.False(t, forced)
	require.Error(t, err, "SIGTERM exit is a non-zero wait status")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, syscall.Kill(-cmd.Process.Pid, 0), syscall.ESRCH)
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	before := testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGKILL", "sent"))

	cmd, waitCh := startGroup(t, `trap "" TERM; sleep 30 & sleep 30`)

	start := time.Now()
	forced, err := Terminate(cmd, waitCh, 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, forced)
	require.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, syscall.Kill(-cmd.Process.Pid, 0), syscall.ESRCH, "background child must be gone too")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ProcTerminateTotal.WithLabelValues("SIGKILL", "sent")))
}

func TestTerminate_AlreadyExited(t *testing.T) {
	cmd, waitCh := startGroup(t, "exit 0")

	forced, err := Terminate(cmd, waitCh, time.Second)

	assert.False(t, forced)
	assert.NoError(t, err)
}

func TestTerminate_NilCommand(t *testing.T) {
	forced, err := Terminate(nil, nil, time.Second)
	assert.False(t, forced)
	assert.NoError(t, err)
}
