package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
	"github.com/hitoshi/brandwatch/internal/search"
)

// WindowForRun はRunのモードと対象日から検索の時間範囲を決定する。
// relevantは日付制限なし、continuousは直近24時間、
// historicalは対象日1日分の範囲指定。
func WindowForRun(run *model.Run) search.TimeWindow {
	switch run.Mode {
	case model.ModeContinuous:
		return search.LastDay()
	case model.ModeHistorical:
		return search.DayRange(run.RangeStart, run.RangeEnd)
	default:
		return search.Unrestricted()
	}
}

// RunRecorder は収集メトリクスの記録インターフェース。
type RunRecorder interface {
	RecordRun(mode, status string)
	RecordSearchRequests(count int)
	RecordNewResults(count int)
	RecordQuotaTruncation(mode string)
	RecordRunDuration(duration time.Duration)
}

// Collector はRun単位の収集を実行し、台帳の状態を確定する。
type Collector struct {
	paginator *Paginator
	runRepo   repository.RunRepository
	metrics   RunRecorder
	logger    *slog.Logger
}

// NewCollector はCollectorを生成する。
func NewCollector(paginator *Paginator, runRepo repository.RunRepository, metrics RunRecorder, logger *slog.Logger) *Collector {
	return &Collector{
		paginator: paginator,
		runRepo:   runRepo,
		metrics:   metrics,
		logger:    logger,
	}
}

// ExecuteRun はRunの収集を実行し、結果に応じてRunを確定する。
// クォータ枯渇による打ち切りは正常終了（completed + quota_truncated）として
// 扱い、エラーは返さない。
func (c *Collector) ExecuteRun(ctx context.Context, run *model.Run) (CollectStats, error) {
	start := time.Now()
	window := WindowForRun(run)

	stats, collectErr := c.paginator.Collect(ctx, run, window)

	status := model.RunStatusCompleted
	if collectErr != nil {
		status = model.RunStatusFailed
	}

	if err := c.runRepo.Finish(ctx, run.ID, status, stats.NewItems, stats.QuotaTruncated, time.Now().UTC()); err != nil {
		c.logger.Error("Runの確定に失敗しました",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		if collectErr == nil {
			collectErr = fmt.Errorf("Runの確定に失敗しました: %w", err)
		}
	}

	c.metrics.RecordRun(string(run.Mode), string(status))
	c.metrics.RecordSearchRequests(stats.Requests)
	c.metrics.RecordNewResults(stats.NewItems)
	c.metrics.RecordRunDuration(time.Since(start))
	if stats.QuotaTruncated {
		c.metrics.RecordQuotaTruncation(string(run.Mode))
	}

	if collectErr != nil {
		c.logger.Error("収集が失敗しました",
			slog.String("run_id", run.ID),
			slog.String("mode", string(run.Mode)),
			slog.String("subject", string(run.Subject)),
			slog.Int("requests", stats.Requests),
			slog.Int("items_new", stats.NewItems),
			slog.String("error", collectErr.Error()),
		)
		return stats, collectErr
	}

	c.logger.Info("収集が完了しました",
		slog.String("run_id", run.ID),
		slog.String("mode", string(run.Mode)),
		slog.String("subject", string(run.Subject)),
		slog.Int("requests", stats.Requests),
		slog.Int("items_new", stats.NewItems),
		slog.Bool("quota_truncated", stats.QuotaTruncated),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return stats, nil
}
