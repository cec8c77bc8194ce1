// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/vidrelay/internal/log"
)

// PerformStartupChecks runs checkers once before the server starts and
// fails on any unhealthy result.
func PerformStartupChecks(ctx context.Context, checkers ...Checker) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	var errs []error
	for _, c := range checkers {
		res := c.Check(ctx)
		if res.Status == StatusUnhealthy {
			logger.Error().
				Str("check", c.Name()).
				Str("error", res.Error).
				Str("detail", res.Message).
				Msg("startup check failed")
			errs = append(errs, fmt.Errorf("%s: %s", c.Name(), res.Error))
			continue
		}
		logger.Debug().Str("check", c.Name()).Str("detail", res.Message).Msg("startup check passed")
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info().Msg("All startup checks passed")
	return nil
}
