// Package collector は検索APIのページネーション制御と収集実行を行う。
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
	"github.com/hitoshi/brandwatch/internal/search"
)

// QuotaConsumer は日次クォータ消費のインターフェース。
type QuotaConsumer interface {
	// Consume はクォータを1消費する。枯渇時はfalseを返す（エラーではない）。
	Consume(ctx context.Context, now time.Time) (bool, error)
}

// ItemStorer は検索結果の保存インターフェース。
type ItemStorer interface {
	// StoreItems は1ページ分の結果を保存し、新規保存できた件数を返す。
	StoreItems(ctx context.Context, runID string, subject model.Subject, items []search.Item) (int, error)
}

// CollectStats は1つのRunの収集統計。
type CollectStats struct {
	NewItems       int
	Requests       int
	QuotaTruncated bool
}

// Paginator は1つのRunに対するページ送り収集を実行する。
// 不変条件: クォータは各リクエストの発行前に消費され、
// 発行した各ページについてリクエスト記録を1件追記する。
type Paginator struct {
	provider search.Provider
	quota    QuotaConsumer
	storer   ItemStorer
	logRepo  repository.RequestLogRepository
	pageCap  int
	logger   *slog.Logger
}

// NewPaginator はPaginatorを生成する。
func NewPaginator(
	provider search.Provider,
	quota QuotaConsumer,
	storer ItemStorer,
	logRepo repository.RequestLogRepository,
	pageCap int,
	logger *slog.Logger,
) *Paginator {
	return &Paginator{
		provider: provider,
		quota:    quota,
		storer:   storer,
		logRepo:  logRepo,
		pageCap:  pageCap,
		logger:   logger,
	}
}

// Collect はRunのクエリでページ1からページ上限まで収集する。
// 次の場合にループを打ち切る:
//   - クォータ枯渇: stats.QuotaTruncated=true（正常終了扱い）
//   - 結果が1ページに満たない: 上流の結果が尽きた
//   - 検索・保存の失敗: エラーを返す（それまでの統計は有効）
func (p *Paginator) Collect(ctx context.Context, run *model.Run, window search.TimeWindow) (CollectStats, error) {
	stats := CollectStats{}

	for page := 1; page <= p.pageCap; page++ {
		// リクエスト発行前にクォータを消費する。枯渇していれば
		// このリクエストは発行しない。
		ok, err := p.quota.Consume(ctx, time.Now().UTC())
		if err != nil {
			return stats, fmt.Errorf("クォータの消費に失敗しました: %w", err)
		}
		if !ok {
			p.logger.Info("クォータ枯渇により収集を打ち切ります",
				slog.String("run_id", run.ID),
				slog.String("mode", string(run.Mode)),
				slog.Int("page", page),
			)
			stats.QuotaTruncated = true
			return stats, nil
		}

		result, err := p.provider.Search(ctx, run.Query, window, page)
		if err != nil {
			// クォータは消費済みなので、失敗したページも台帳に残す
			p.appendLog(ctx, run, page, 0, 0)
			stats.Requests++
			return stats, model.NewUpstreamRequestError(err)
		}
		stats.Requests++

		newItems, storeErr := p.storer.StoreItems(ctx, run.ID, run.Subject, result.Items)
		stats.NewItems += newItems
		if storeErr != nil {
			// 保存失敗のページは新規0件として記録した上でRunを失敗させる
			p.appendLog(ctx, run, page, len(result.Items), newItems)
			return stats, model.NewStoreWriteError(storeErr)
		}

		if err := p.appendLog(ctx, run, page, len(result.Items), newItems); err != nil {
			return stats, model.NewStoreWriteError(err)
		}

		p.logger.Info("ページの収集が完了しました",
			slog.String("run_id", run.ID),
			slog.String("mode", string(run.Mode)),
			slog.String("subject", string(run.Subject)),
			slog.Int("page", page),
			slog.Int("items_returned", len(result.Items)),
			slog.Int("items_new", newItems),
		)

		// 1ページに満たなければ上流の結果は尽きている
		if len(result.Items) < search.PageSize {
			break
		}
	}

	return stats, nil
}

func (p *Paginator) appendLog(ctx context.Context, run *model.Run, page, returned, newItems int) error {
	entry := &model.RequestLogEntry{
		ID:            uuid.NewString(),
		RunID:         run.ID,
		Subject:       run.Subject,
		Mode:          run.Mode,
		Page:          page,
		RangeStart:    run.RangeStart,
		RangeEnd:      run.RangeEnd,
		ItemsReturned: returned,
		ItemsNew:      newItems,
		Timestamp:     time.Now().UTC(),
	}
	if err := p.logRepo.Append(ctx, entry); err != nil {
		p.logger.Error("リクエスト記録の追記に失敗しました",
			slog.String("run_id", run.ID),
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
