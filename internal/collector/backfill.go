package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// Backfill は履歴収集のウォーターマークを管理する状態機械。
// ウォーターマークの値は「次に収集すべき日」を指し、1日分の収集が
// 完全に終わるごとに1日過去へ進む。floor_dateより過去へ進んだ時点で
// completedになる。
type Backfill struct {
	repo   repository.WatermarkRepository
	logger *slog.Logger
}

// NewBackfill はBackfillを生成する。
func NewBackfill(repo repository.WatermarkRepository, logger *slog.Logger) *Backfill {
	return &Backfill{repo: repo, logger: logger}
}

// Status は現在のウォーターマークを返す。未設定の場合はnil。
func (b *Backfill) Status(ctx context.Context) (*model.BackfillWatermark, error) {
	return b.repo.Get(ctx)
}

// Configure はfloor_dateを設定する。ウォーターマークが未作成の場合は
// 前日を起点として新規作成する。設定済みの場合はfloor_dateのみ更新し、
// 収集位置は保持する。completed後にfloorを下げた場合はin_progressに戻る。
func (b *Backfill) Configure(ctx context.Context, floor, now time.Time) (*model.BackfillWatermark, error) {
	floor = model.Day(floor)
	yesterday := model.Day(now).AddDate(0, 0, -1)

	current, err := b.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if current == nil {
		w := &model.BackfillWatermark{
			FloorDate:         floor,
			LastCompletedDate: yesterday,
			Status:            model.BackfillNotStarted,
		}
		if w.Done() {
			w.Status = model.BackfillCompleted
		}
		created, err := b.repo.Create(ctx, w)
		if err != nil {
			return nil, err
		}
		if created {
			b.logger.Info("バックフィルを設定しました",
				slog.String("floor_date", model.DateKey(floor)),
				slog.String("start_date", model.DateKey(yesterday)),
			)
			return w, nil
		}
		// 同時初期化に負けた場合は既存値に対するfloor更新として続行
		current, err = b.repo.Get(ctx)
		if err != nil {
			return nil, err
		}
	}

	status := model.BackfillInProgress
	if model.Day(current.LastCompletedDate).Before(floor) {
		status = model.BackfillCompleted
	}
	if err := b.repo.UpdateFloor(ctx, floor, status); err != nil {
		return nil, err
	}

	current.FloorDate = floor
	current.Status = status
	b.logger.Info("バックフィルの下限日を更新しました",
		slog.String("floor_date", model.DateKey(floor)),
		slog.String("status", string(status)),
	)
	return current, nil
}

// Target は次のステップで収集すべき日を返す。
// 未設定または完了済みの場合はok=falseを返す。
func (b *Backfill) Target(ctx context.Context) (time.Time, bool, error) {
	w, err := b.repo.Get(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if w == nil || w.Status == model.BackfillCompleted || w.Done() {
		return time.Time{}, false, nil
	}
	return w.NextTarget(), true, nil
}

// MarkDayDone は対象日の収集完了を記録し、ウォーターマークを1日過去へ進める。
// 対象日がすでに他のプロセスによって進められていた場合は何もせずfalseを返す。
// クォータ枯渇で途中打ち切りされた日はこのメソッドを呼ばないこと。
// ウォーターマークが動かなければ次のステップで同じ日を再収集する（再開可能性）。
func (b *Backfill) MarkDayDone(ctx context.Context, target time.Time) (bool, error) {
	w, err := b.repo.Get(ctx)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, fmt.Errorf("ウォーターマークが未設定です")
	}

	next := model.Day(target).AddDate(0, 0, -1)
	status := model.BackfillInProgress
	if next.Before(model.Day(w.FloorDate)) {
		status = model.BackfillCompleted
	}

	advanced, err := b.repo.Advance(ctx, target, next, status)
	if err != nil {
		return false, err
	}
	if !advanced {
		b.logger.Warn("ウォーターマークの前進が競合により無視されました",
			slog.String("target", model.DateKey(target)),
		)
		return false, nil
	}

	b.logger.Info("バックフィルが1日進みました",
		slog.String("collected_date", model.DateKey(target)),
		slog.String("next_date", model.DateKey(next)),
		slog.String("status", string(status)),
	)
	return true, nil
}
