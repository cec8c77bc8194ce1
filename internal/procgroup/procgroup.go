// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts child processes in their own process group and
// stops the whole group with a two-phase SIGTERM, grace, SIGKILL protocol.
package procgroup

import "errors"

// ErrProcessNotFound is returned by Kill when the group no longer exists.
var ErrProcessNotFound = errors.New("process not found")
