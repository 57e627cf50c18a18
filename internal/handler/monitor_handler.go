// Package handler は監視エンジンのHTTP APIを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/brandwatch/internal/middleware"
	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/orchestrator"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// TriggerServiceInterface は収集トリガーの受付インターフェース。
type TriggerServiceInterface interface {
	StartRelevant(ctx context.Context) (*orchestrator.StartResult, error)
	StartContinuous(ctx context.Context) (*orchestrator.StartResult, error)
	StartHistoricalStep(ctx context.Context) (*orchestrator.StartResult, error)
}

// BackfillServiceInterface はバックフィル状態の参照・設定インターフェース。
type BackfillServiceInterface interface {
	Status(ctx context.Context) (*model.BackfillWatermark, error)
	Configure(ctx context.Context, floor, now time.Time) (*model.BackfillWatermark, error)
}

// QuotaServiceInterface はクォータ使用状況の参照インターフェース。
type QuotaServiceInterface interface {
	Status(ctx context.Context, now time.Time) (model.DailyQuota, error)
	Enforced() bool
}

// MonitorHandler は収集トリガーと稼働状況のHTTPハンドラー。
type MonitorHandler struct {
	trigger  TriggerServiceInterface
	backfill BackfillServiceInterface
	quota    QuotaServiceInterface
	runRepo  repository.RunRepository
	results  repository.ResultRepository
	logs     repository.RequestLogRepository
	logger   *slog.Logger
}

// NewMonitorHandler はMonitorHandlerを生成する。
func NewMonitorHandler(
	trigger TriggerServiceInterface,
	backfill BackfillServiceInterface,
	quota QuotaServiceInterface,
	runRepo repository.RunRepository,
	results repository.ResultRepository,
	logs repository.RequestLogRepository,
	logger *slog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		trigger:  trigger,
		backfill: backfill,
		quota:    quota,
		runRepo:  runRepo,
		results:  results,
		logs:     logs,
		logger:   logger,
	}
}

// --- レスポンス型 ---

// runResponse はRunのレスポンス。
type runResponse struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Subject    string `json:"subject"`
	Status     string `json:"status"`
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
	Provenance string `json:"provenance"`
}

// triggerResponse はトリガー受付のレスポンス。
type triggerResponse struct {
	Accepted   bool          `json:"accepted"`
	Runs       []runResponse `json:"runs,omitempty"`
	TargetDate string        `json:"target_date,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// watermarkResponse はバックフィルウォーターマークのレスポンス。
type watermarkResponse struct {
	FloorDate         string `json:"floor_date"`
	LastCompletedDate string `json:"last_completed_date"`
	NextTarget        string `json:"next_target,omitempty"`
	Status            string `json:"status"`
}

// quotaResponse は日次クォータのレスポンス。
type quotaResponse struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Enforced  bool   `json:"enforced"`
}

// summaryResponse は稼働状況サマリーのレスポンス。
type summaryResponse struct {
	Quota         quotaResponse      `json:"quota"`
	RunsByMode    map[string]int     `json:"runs_by_mode"`
	ResultsBySubj map[string]int     `json:"results_by_subject"`
	RequestsTotal int                `json:"requests_total"`
	Backfill      *watermarkResponse `json:"backfill"`
}

// backfillConfigRequest はバックフィル設定リクエストのボディ。
type backfillConfigRequest struct {
	FloorDate string `json:"floor_date"`
}

func toRunResponses(runs []*model.Run) []runResponse {
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:         run.ID,
			Mode:       string(run.Mode),
			Subject:    string(run.Subject),
			Status:     string(model.RunStatusInProgress),
			RangeStart: model.DateKey(run.RangeStart),
			RangeEnd:   model.DateKey(run.RangeEnd),
			Provenance: run.Provenance,
		})
	}
	return out
}

func toWatermarkResponse(w *model.BackfillWatermark) *watermarkResponse {
	if w == nil {
		return nil
	}
	resp := &watermarkResponse{
		FloorDate:         model.DateKey(w.FloorDate),
		LastCompletedDate: model.DateKey(w.LastCompletedDate),
		Status:            string(w.Status),
	}
	if w.Status != model.BackfillCompleted && !w.Done() {
		resp.NextTarget = model.DateKey(w.NextTarget())
	}
	return resp
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// RunRelevant は「今のデータ」の即時収集を起動する。
// POST /api/monitor/run
func (h *MonitorHandler) RunRelevant(w http.ResponseWriter, r *http.Request) {
	h.acceptTrigger(w, r, h.trigger.StartRelevant)
}

// RunContinuous は直近24時間の継続収集を起動する。
// POST /api/monitor/run/continuous
func (h *MonitorHandler) RunContinuous(w http.ResponseWriter, r *http.Request) {
	h.acceptTrigger(w, r, h.trigger.StartContinuous)
}

// acceptTrigger はトリガーを受け付け、202で応答する。
// 収集の実行は非同期であり、レスポンスは受付時点の状態を表す。
func (h *MonitorHandler) acceptTrigger(w http.ResponseWriter, r *http.Request, start func(ctx context.Context) (*orchestrator.StartResult, error)) {
	result, err := start(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, triggerResponse{
		Accepted: true,
		Runs:     toRunResponses(result.Runs),
	})
}

// RunHistoricalStep はバックフィルの次の1日分の収集を起動する。
// 対象日が無い場合（未設定または完了済み）は受付なしの200を返す。
// POST /api/monitor/run/historical/step
func (h *MonitorHandler) RunHistoricalStep(w http.ResponseWriter, r *http.Request) {
	result, err := h.trigger.StartHistoricalStep(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, triggerResponse{
			Accepted: false,
			Message:  "バックフィルは未設定または完了済みです",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, triggerResponse{
		Accepted:   true,
		Runs:       toRunResponses(result.Runs),
		TargetDate: model.DateKey(*result.TargetDate),
	})
}

// ConfigureBackfill はバックフィルの下限日を設定する。
// POST /api/monitor/run/historical
func (h *MonitorHandler) ConfigureBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	floor, err := time.Parse("2006-01-02", req.FloorDate)
	if err != nil {
		middleware.WriteError(w, model.NewValidationError("floor_dateはYYYY-MM-DD形式で指定してください"))
		return
	}
	if !model.Day(floor).Before(model.Day(time.Now())) {
		middleware.WriteError(w, model.NewValidationError("floor_dateは過去の日付を指定してください"))
		return
	}

	wm, err := h.backfill.Configure(r.Context(), floor, time.Now())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWatermarkResponse(wm))
}

// GetBackfill はバックフィルの現在状態を返す。
// GET /api/monitor/backfill
func (h *MonitorHandler) GetBackfill(w http.ResponseWriter, r *http.Request) {
	wm, err := h.backfill.Status(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if wm == nil {
		middleware.WriteError(w, model.NewNotFoundError("バックフィル設定"))
		return
	}

	writeJSON(w, http.StatusOK, toWatermarkResponse(wm))
}

// GetSummary はクォータ・Run・結果の稼働状況サマリーを返す。
// GET /api/monitor/summary
func (h *MonitorHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()

	quota, err := h.quota.Status(ctx, now)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	runCounts, err := h.runRepo.CountByMode(ctx)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resultCounts, err := h.results.CountBySubject(ctx)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	requestsTotal, err := h.logs.Count(ctx)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	wm, err := h.backfill.Status(ctx)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	runsByMode := make(map[string]int, len(runCounts))
	for mode, count := range runCounts {
		runsByMode[string(mode)] = count
	}
	resultsBySubj := make(map[string]int, len(resultCounts))
	for subject, count := range resultCounts {
		resultsBySubj[string(subject)] = count
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Quota: quotaResponse{
			Date:      model.DateKey(quota.Date),
			Used:      quota.RequestsUsed,
			Limit:     quota.RequestsLimit,
			Remaining: quota.Remaining(),
			Enforced:  h.quota.Enforced(),
		},
		RunsByMode:    runsByMode,
		ResultsBySubj: resultsBySubj,
		RequestsTotal: requestsTotal,
		Backfill:      toWatermarkResponse(wm),
	})
}
