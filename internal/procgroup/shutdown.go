// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
)

// Terminate stops the process group of cmd. It sends SIGTERM and waits up to
// grace for waitCh to deliver the Wait result. If the process is still alive
// it sends SIGKILL and drains waitCh, so the process is always reaped before
// Terminate returns.
//
// forced reports whether SIGKILL was needed. err is the Wait error.
// A nil or unstarted command returns immediately.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) (forced bool, err error) {
	if cmd == nil || cmd.Process == nil {
		return false, nil
	}
	pid := cmd.Process.Pid

	recordSignal("SIGTERM", Kill(cmd, syscall.SIGTERM))

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return false, err
	case <-timer.C:
	}

	log.L().Warn().
		Str(log.FieldEvent, "proc.kill").
		Int(log.FieldPID, pid).
		Dur("grace", grace).
		Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
	recordSignal("SIGKILL", Kill(cmd, syscall.SIGKILL))

	err = <-waitCh
	if err == nil {
		metrics.IncProcWait("forced_exit0")
	} else {
		metrics.IncProcWait("forced_error")
	}
	return true, err
}

func recordSignal(sig string, err error) {
	switch {
	case err == nil:
		metrics.IncProcTerminate(sig, "sent")
	case errors.Is(err, ErrProcessNotFound):
		metrics.IncProcTerminate(sig, "esrch")
	default:
		metrics.IncProcTerminate(sig, "error")
		log.L().Debug().Err(err).Str("signal", sig).Msg("signal delivery failed")
	}
}
