package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleIntegrityCheck runs c.Check on the given cron schedule until ctx
// is done. Standard 5 field specs and descriptors like "@every 6h" are
// accepted. A run still in progress when the next one is due is skipped.
func ScheduleIntegrityCheck(ctx context.Context, spec string, c *IntegrityChecker) (*cron.Cron, error) {
	logger := cron.PrintfLogger(zap.NewStdLog(zap.L().Named("cron")))

	cr := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := cr.AddFunc(spec, func() {
		zap.L().Debug("Scheduled integrity check starting")

		if _, err := c.Check(ctx); err != nil {
			if errors.Is(err, ErrCheckRunning) || errors.Is(err, context.Canceled) {
				zap.L().Debug("Scheduled integrity check skipped", zap.Error(err))
				return
			}

			zap.L().Error("Scheduled integrity check failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid integrity schedule %q, %w", spec, err)
	}

	zap.L().Debug("Integrity check attached", zap.String("schedule", spec))

	cr.Start()

	go func() {
		<-ctx.Done()
		<-cr.Stop().Done()
	}()

	return cr, nil
}
