package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Expirer flips overdue course entitlements off. Implemented by the
// entitlement service.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// HandleExpireEntitlementsTask returns the processor for the nightly expiry
// sweep.
func HandleExpireEntitlementsTask(expirer Expirer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := expirer.ExpireOverdue(ctx)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("entitlement expiry sweep", slog.Int64("expired", n))
		}
		return nil
	}
}
