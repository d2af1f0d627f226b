package graph

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"
)

// TimeoutMonitor runs statements under the operation deadline and logs the
// ones that fail or come close to it.
type TimeoutMonitor struct {
	logger       *slog.Logger
	warningRatio float64 // Warn when execution reaches this fraction of the timeout
}

// NewTimeoutMonitor creates a monitor that warns at 80% of the timeout
func NewTimeoutMonitor(logger *slog.Logger) *TimeoutMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeoutMonitor{
		logger:       logger.With("component", "timeout_monitor"),
		warningRatio: 0.8,
	}
}

// Run executes fn with a context bounded by timeout (no deadline when
// timeout is 0) and logs the outcome. The error from fn is returned as is.
func (tm *TimeoutMonitor) Run(
	ctx context.Context,
	operation string,
	timeout time.Duration,
	fn func(context.Context) error,
) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(runCtx)
	duration := time.Since(start)

	if err != nil {
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			tm.logger.Error("statement timed out",
				"operation", operation,
				"duration_seconds", duration.Seconds(),
				"timeout_seconds", timeout.Seconds())
		} else {
			tm.logger.Warn("statement failed",
				"operation", operation,
				"duration_seconds", duration.Seconds(),
				"error", err)
		}
		return err
	}

	if timeout > 0 && duration >= time.Duration(float64(timeout)*tm.warningRatio) {
		tm.logger.Warn("statement approaching timeout",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", timeout.Seconds(),
			"percent_used", duration.Seconds()/timeout.Seconds()*100)
		return nil
	}

	tm.logger.Debug("statement completed",
		"operation", operation,
		"duration_seconds", duration.Seconds())
	return nil
}
