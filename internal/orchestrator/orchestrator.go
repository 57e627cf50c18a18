// Package orchestrator は収集のトリガー受付と非同期実行を行う。
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/brandwatch/internal/collector"
	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/query"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// RunExecutor はRun単位の収集実行のインターフェース。
type RunExecutor interface {
	ExecuteRun(ctx context.Context, run *model.Run) (collector.CollectStats, error)
}

// BackfillStepper はバックフィルウォーターマーク操作のインターフェース。
type BackfillStepper interface {
	Target(ctx context.Context) (time.Time, bool, error)
	MarkDayDone(ctx context.Context, target time.Time) (bool, error)
}

// StartResult はトリガー受付の結果。受付時点で作成されたRunを含む。
// Runの実行は非同期であり、ここに含まれるRunはすべてin_progress。
type StartResult struct {
	Runs []*model.Run
	// TargetDate はhistoricalステップの収集対象日。他モードではnil。
	TargetDate *time.Time
}

// Orchestrator は1回の論理的な収集起動を統制する。
// 不変条件: 同一モードの収集は同時に1つしか実行されない。ガードは
// クォータ消費を伴ういかなる処理よりも前に、Runの条件付き作成として
// 取得される。受付（同期）と実行（非同期）は分離されており、
// トリガーの呼び出し元は収集の完了を待たない。
type Orchestrator struct {
	runRepo    repository.RunRepository
	termRepo   repository.TermSetRepository
	executor   RunExecutor
	backfill   BackfillStepper
	provenance string
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	runRepo repository.RunRepository,
	termRepo repository.TermSetRepository,
	executor RunExecutor,
	backfill BackfillStepper,
	provenance string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		runRepo:    runRepo,
		termRepo:   termRepo,
		executor:   executor,
		backfill:   backfill,
		provenance: provenance,
		logger:     logger,
	}
}

// StartRelevant は「今のデータ」の即時収集を受け付ける。
func (o *Orchestrator) StartRelevant(ctx context.Context) (*StartResult, error) {
	today := model.Day(time.Now())
	return o.start(ctx, model.ModeRelevant, today, today, nil)
}

// StartContinuous は直近24時間の継続収集を受け付ける。
func (o *Orchestrator) StartContinuous(ctx context.Context) (*StartResult, error) {
	today := model.Day(time.Now())
	return o.start(ctx, model.ModeContinuous, today, today, nil)
}

// StartHistoricalStep はバックフィルの次の1日分の収集を受け付ける。
// ウォーターマークが未設定または完了済みの場合はnilを返す（no-op）。
func (o *Orchestrator) StartHistoricalStep(ctx context.Context) (*StartResult, error) {
	target, ok, err := o.backfill.Target(ctx)
	if err != nil {
		return nil, fmt.Errorf("バックフィル対象日の取得に失敗しました: %w", err)
	}
	if !ok {
		o.logger.Info("バックフィルは未設定または完了済みです")
		return nil, nil
	}
	return o.start(ctx, model.ModeHistorical, target, target, &target)
}

// Wait は実行中の非同期収集がすべて完了するまで待機する。
// graceful shutdownとテストから使用する。
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// start は収集を受け付ける同期フェーズを実行する。
// 検索語の解決とクエリ組み立て、全Runの作成（1件目はガード付き）までを
// 同期で行い、成功した場合のみ実行を非同期に開始する。
func (o *Orchestrator) start(ctx context.Context, mode model.Mode, rangeStart, rangeEnd time.Time, target *time.Time) (*StartResult, error) {
	runs, err := o.plan(ctx, mode, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	// 1件目のRunの条件付き作成が重複起動ガードを兼ねる。
	// 2件目以降のin_progressなRunが残っている限り、同一モードの
	// 次の起動は拒否される。
	created, err := o.runRepo.CreateInProgressGuarded(ctx, runs[0])
	if err != nil {
		return nil, model.NewStoreWriteError(err)
	}
	if !created {
		o.logger.Info("同一モードの収集が実行中のため起動を拒否します",
			slog.String("mode", string(mode)),
		)
		return nil, model.NewDuplicateInvocationError(mode)
	}

	for _, run := range runs[1:] {
		if err := o.runRepo.Create(ctx, run); err != nil {
			o.abortCreated(ctx, runs)
			return nil, model.NewStoreWriteError(err)
		}
	}

	o.logger.Info("収集を受け付けました",
		slog.String("mode", string(mode)),
		slog.Int("runs", len(runs)),
		slog.String("range_start", model.DateKey(rangeStart)),
		slog.String("range_end", model.DateKey(rangeEnd)),
	)

	// 実行はトリガーのリクエストから切り離す。
	execCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(execCtx, mode, runs, target)
	}()

	return &StartResult{Runs: runs, TargetDate: target}, nil
}

// plan は全主体分のRunを組み立てる。検索語セットの不備は
// ここで検出され、Runは一切作成されない。
func (o *Orchestrator) plan(ctx context.Context, mode model.Mode, rangeStart, rangeEnd time.Time) ([]*model.Run, error) {
	var runs []*model.Run
	now := time.Now().UTC()

	for _, subject := range model.AllSubjects {
		ts, err := o.termRepo.FindBySubject(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("検索語セットの取得に失敗しました: %w", err)
		}
		if ts == nil {
			return nil, model.NewInvalidTermSetError(subject)
		}

		q, err := query.Build(*ts)
		if err != nil {
			return nil, err
		}

		runs = append(runs, &model.Run{
			ID:         uuid.NewString(),
			Mode:       mode,
			Subject:    subject,
			Query:      q,
			RangeStart: model.Day(rangeStart),
			RangeEnd:   model.Day(rangeEnd),
			Provenance: o.provenance,
			StartedAt:  now,
		})
	}

	return runs, nil
}

// execute は受け付けたRunを順番に実行する非同期フェーズ。
// historicalでは、全Runが打ち切りなしで完了した場合のみ
// ウォーターマークを前進させる。打ち切り・失敗時はウォーターマークを
// 動かさず、次のステップで同じ日を再収集する。
func (o *Orchestrator) execute(ctx context.Context, mode model.Mode, runs []*model.Run, target *time.Time) {
	dayFullyCollected := true

	for _, run := range runs {
		stats, err := o.executor.ExecuteRun(ctx, run)
		if err != nil {
			dayFullyCollected = false
			continue
		}
		if stats.QuotaTruncated {
			dayFullyCollected = false
		}
	}

	if mode == model.ModeHistorical && target != nil {
		if !dayFullyCollected {
			o.logger.Info("対象日の収集が不完全なためウォーターマークを維持します",
				slog.String("target", model.DateKey(*target)),
			)
			return
		}
		if _, err := o.backfill.MarkDayDone(ctx, *target); err != nil {
			o.logger.Error("ウォーターマークの前進に失敗しました",
				slog.String("target", model.DateKey(*target)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// abortCreated はRun作成の途中失敗時に、作成済みのRunを失敗として
// 確定しガードを解放する。
func (o *Orchestrator) abortCreated(ctx context.Context, runs []*model.Run) {
	now := time.Now().UTC()
	for _, run := range runs {
		if run.Status != model.RunStatusInProgress {
			continue
		}
		if err := o.runRepo.Finish(ctx, run.ID, model.RunStatusFailed, 0, false, now); err != nil {
			o.logger.Error("中断したRunの確定に失敗しました",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
