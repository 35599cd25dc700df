package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedule 按 cron 表达式定期全量入库 dir，直到 ctx 结束。
// 上一次还没跑完时跳过本次。
func (in *Ingester) Schedule(ctx context.Context, spec, dir string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		report, err := in.Run(ctx, dir)
		if err != nil {
			slog.Error("scheduled ingest failed", "error", err)
			return
		}
		slog.Info("scheduled ingest done", "files", report.Files, "passages", report.Passages)
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	c.Start()
	slog.Info("ingest scheduled", "schedule", spec, "next", c.Entries()[0].Next)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
