package booking

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduleRefresh reloads both sources on a standard five field cron spec
// until the returned scheduler is stopped. Runs never overlap.
func ScheduleRefresh(ctx context.Context, spec string, b *Board) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		b.logger.Debug("scheduled board refresh")
		b.Load(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
