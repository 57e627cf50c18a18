// Package quota は検索APIの共有日次クォータを管理する。
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// QuotaRecorder はクォータメトリクスの記録インターフェース。
type QuotaRecorder interface {
	RecordQuotaConsumed()
	RecordQuotaExhausted()
}

// Governor は日次リクエスト予算の消費を統制する。
// 予算は全モード・全プロセスで共有され、消費判定は
// リポジトリ層の条件付き更新により原子的に行われる。
type Governor struct {
	repo    repository.QuotaRepository
	limit   int
	enforce bool
	metrics QuotaRecorder
	logger  *slog.Logger
}

// NewGovernor はGovernorを生成する。
// enforceがfalseの場合、消費は常に成功するが使用量の記録は続ける。
func NewGovernor(repo repository.QuotaRepository, limit int, enforce bool, metrics QuotaRecorder, logger *slog.Logger) *Governor {
	return &Governor{
		repo:    repo,
		limit:   limit,
		enforce: enforce,
		metrics: metrics,
		logger:  logger,
	}
}

// Consume は現在日のクォータを1消費する。
// 上限到達により消費できなかった場合はfalseを返す。これはエラーではなく
// 収集を打ち切るためのシグナルであり、呼び出し側は正常系として扱うこと。
func (g *Governor) Consume(ctx context.Context, now time.Time) (bool, error) {
	if !g.enforce {
		if err := g.repo.ForceConsume(ctx, now, g.limit); err != nil {
			return false, fmt.Errorf("クォータ使用量の記録に失敗しました: %w", err)
		}
		g.metrics.RecordQuotaConsumed()
		return true, nil
	}

	if g.limit <= 0 {
		g.metrics.RecordQuotaExhausted()
		return false, nil
	}

	ok, err := g.repo.TryConsume(ctx, now, g.limit)
	if err != nil {
		return false, fmt.Errorf("クォータの消費に失敗しました: %w", err)
	}
	if !ok {
		g.metrics.RecordQuotaExhausted()
		g.logger.Warn("日次クォータが枯渇しました",
			slog.String("date", model.DateKey(now)),
			slog.Int("limit", g.limit),
		)
		return false, nil
	}
	g.metrics.RecordQuotaConsumed()
	return true, nil
}

// Status は現在日のクォータ使用状況を返す。
func (g *Governor) Status(ctx context.Context, now time.Time) (model.DailyQuota, error) {
	quota, err := g.repo.Get(ctx, now, g.limit)
	if err != nil {
		return quota, fmt.Errorf("クォータ状況の取得に失敗しました: %w", err)
	}
	return quota, nil
}

// Enforced はクォータ上限の強制が有効かを返す。
func (g *Governor) Enforced() bool {
	return g.enforce
}
