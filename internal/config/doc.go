// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads vidrelay configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file (strict, unknown
// keys are fatal), VIDRELAY_* environment variables. The merged result is
// validated before use.
package config
