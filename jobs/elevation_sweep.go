package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ElevationSweeper removes expired time-boxed grants from storage.
type ElevationSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// NewElevationSweepHandler returns the task handler for the periodic sweep.
// The sweep is a hygiene pass only; reads already ignore expired grants, so a
// failed run costs nothing but table size.
func NewElevationSweepHandler(sweeper ElevationSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := sweeper.SweepExpired(ctx)
		if err != nil {
			logger.Error("elevation sweep failed", slog.Any("error", err))
			return err
		}
		logger.Info("elevation sweep complete", slog.Int64("removed", removed))
		return nil
	}
}
