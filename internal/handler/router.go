package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/brandwatch/internal/middleware"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// Pinger はヘルスチェックで使うデータベース疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	Trigger  TriggerServiceInterface
	Backfill BackfillServiceInterface
	Quota    QuotaServiceInterface

	RunRepo    repository.RunRepository
	ResultRepo repository.ResultRepository
	LogRepo    repository.RequestLogRepository

	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
//
// 収集トリガー（POST /api/monitor/run*）にはさらにレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	monitorHandler := NewMonitorHandler(
		deps.Trigger,
		deps.Backfill,
		deps.Quota,
		deps.RunRepo,
		deps.ResultRepo,
		deps.LogRepo,
		deps.Logger,
	)
	resultHandler := NewResultHandler(deps.ResultRepo)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/monitor", func(r chi.Router) {
		// 収集トリガーは検索APIクォータを消費するためレート制限を適用する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.TriggerMiddleware())

			r.Post("/run", monitorHandler.RunRelevant)
			r.Post("/run/continuous", monitorHandler.RunContinuous)
			r.Post("/run/historical", monitorHandler.ConfigureBackfill)
			r.Post("/run/historical/step", monitorHandler.RunHistoricalStep)
		})

		r.Get("/summary", monitorHandler.GetSummary)
		r.Get("/backfill", monitorHandler.GetBackfill)
		r.Patch("/backfill", monitorHandler.ConfigureBackfill)
	})

	r.Route("/api/results", func(r chi.Router) {
		r.Get("/", resultHandler.ListResults)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", resultHandler.GetResult)
			r.Patch("/status", resultHandler.UpdateResultStatus)
		})
	})

	return r
}
