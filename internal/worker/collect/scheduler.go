// Package collect は収集のバックグラウンド起動を提供する。
// 継続収集とバックフィルステップをそれぞれ独立したティッカーで駆動する。
package collect

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/orchestrator"
)

// Triggerer は収集トリガーの受付インターフェース。
type Triggerer interface {
	// StartContinuous は直近24時間の継続収集を受け付ける。
	StartContinuous(ctx context.Context) (*orchestrator.StartResult, error)

	// StartHistoricalStep はバックフィルの次の1日分の収集を受け付ける。
	StartHistoricalStep(ctx context.Context) (*orchestrator.StartResult, error)
}

// Scheduler は継続収集とバックフィルステップを定期起動する。
// 前回の収集が実行中のままティックが来た場合、起動は重複起動ガードに
// よって拒否されるため、ここでは拒否を情報ログとして記録するだけでよい。
type Scheduler struct {
	triggerer Triggerer
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(triggerer Triggerer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		triggerer: triggerer,
		logger:    logger,
	}
}

// Start は2本のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, continuousInterval, backfillInterval time.Duration) {
	continuousTicker := time.NewTicker(continuousInterval)
	defer continuousTicker.Stop()
	backfillTicker := time.NewTicker(backfillInterval)
	defer backfillTicker.Stop()

	s.logger.Info("収集スケジューラを開始しました",
		slog.Duration("continuous_interval", continuousInterval),
		slog.Duration("backfill_interval", backfillInterval),
	)

	// 起動直後に継続収集を1回実行
	s.RunContinuousOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("収集スケジューラを停止しました")
			return
		case <-continuousTicker.C:
			s.RunContinuousOnce(ctx)
		case <-backfillTicker.C:
			s.RunBackfillStepOnce(ctx)
		}
	}
}

// RunContinuousOnce は継続収集を1回起動する。
func (s *Scheduler) RunContinuousOnce(ctx context.Context) {
	result, err := s.triggerer.StartContinuous(ctx)
	if err != nil {
		s.logTriggerError("継続収集", err)
		return
	}
	s.logger.Info("継続収集を起動しました",
		slog.Int("runs", len(result.Runs)),
	)
}

// RunBackfillStepOnce はバックフィルステップを1回起動する。
func (s *Scheduler) RunBackfillStepOnce(ctx context.Context) {
	result, err := s.triggerer.StartHistoricalStep(ctx)
	if err != nil {
		s.logTriggerError("バックフィルステップ", err)
		return
	}
	if result == nil {
		// バックフィル未設定または完了済み
		return
	}
	s.logger.Info("バックフィルステップを起動しました",
		slog.Int("runs", len(result.Runs)),
		slog.String("target", model.DateKey(*result.TargetDate)),
	)
}

// logTriggerError はトリガー失敗を記録する。実行中による拒否は
// 定期起動では正常な事象のため情報ログに留める。
func (s *Scheduler) logTriggerError(name string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == "DUPLICATE_INVOCATION" {
		s.logger.Info("前回の収集が実行中のため起動を見送りました",
			slog.String("trigger", name),
		)
		return
	}
	s.logger.Error("収集の起動に失敗しました",
		slog.String("trigger", name),
		slog.String("error", err.Error()),
	)
}
