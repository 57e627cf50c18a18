package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/brandwatch/internal/collector"
	"github.com/hitoshi/brandwatch/internal/config"
	"github.com/hitoshi/brandwatch/internal/database"
	"github.com/hitoshi/brandwatch/internal/handler"
	"github.com/hitoshi/brandwatch/internal/logger"
	"github.com/hitoshi/brandwatch/internal/metrics"
	"github.com/hitoshi/brandwatch/internal/middleware"
	"github.com/hitoshi/brandwatch/internal/orchestrator"
	"github.com/hitoshi/brandwatch/internal/quota"
	"github.com/hitoshi/brandwatch/internal/repository"
	"github.com/hitoshi/brandwatch/internal/result"
	"github.com/hitoshi/brandwatch/internal/search"
	"github.com/hitoshi/brandwatch/internal/security"
	collectpkg "github.com/hitoshi/brandwatch/internal/worker/collect"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Int("daily_request_limit", cfg.DailyRequestLimit),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// engine は収集に関わる依存関係一式。serveとworkerで共通のワイヤリング。
type engine struct {
	runRepo      repository.RunRepository
	resultRepo   repository.ResultRepository
	logRepo      repository.RequestLogRepository
	governor     *quota.Governor
	backfill     *collector.Backfill
	orchestrator *orchestrator.Orchestrator
}

// wireEngine は収集エンジンの全依存関係を組み立てる。
// メトリクスはregistryに登録される。
func wireEngine(cfg *config.Config, db *sql.DB, registry *prometheus.Registry) *engine {
	// 1. リポジトリの初期化
	runRepo := repository.NewPostgresRunRepo(db)
	resultRepo := repository.NewPostgresResultRepo(db)
	quotaRepo := repository.NewPostgresQuotaRepo(db)
	logRepo := repository.NewPostgresRequestLogRepo(db)
	watermarkRepo := repository.NewPostgresWatermarkRepo(db)
	termRepo := repository.NewPostgresTermSetRepo(db)

	// 2. メトリクスとクォータガバナー
	metricsCollector := metrics.NewCollector(registry)
	governor := quota.NewGovernor(
		quotaRepo, cfg.DailyRequestLimit, cfg.QuotaEnforcement,
		metricsCollector, slog.Default(),
	)

	// 3. 検索クライアントと保存サービス
	searchClient := search.NewGoogleClient(
		cfg.GoogleAPIKey, cfg.GoogleCSEID,
		cfg.SearchTimeout, cfg.SearchMaxRetries, cfg.SearchRetryBackoff,
		slog.Default(),
	)
	sanitizer := security.NewSnippetSanitizer()
	upsertSvc := result.NewUpsertService(resultRepo, sanitizer, cfg.Provenance, slog.Default())

	// 4. 収集実行層
	paginator := collector.NewPaginator(
		searchClient, governor, upsertSvc, logRepo, cfg.PageCap, slog.Default(),
	)
	coll := collector.NewCollector(paginator, runRepo, metricsCollector, slog.Default())
	backfill := collector.NewBackfill(watermarkRepo, slog.Default())

	// 5. オーケストレーター
	orch := orchestrator.NewOrchestrator(
		runRepo, termRepo, coll, backfill, cfg.Provenance, slog.Default(),
	)

	return &engine{
		runRepo:      runRepo,
		resultRepo:   resultRepo,
		logRepo:      logRepo,
		governor:     governor,
		backfill:     backfill,
		orchestrator: orch,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	eng := wireEngine(cfg, db, registry)

	// トリガーのレート制限（req/min -> req/sec に変換）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		TriggerRate:     rate.Limit(float64(cfg.TriggerRateLimit) / 60.0),
		TriggerBurst:    cfg.TriggerRateLimit,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Trigger:     eng.orchestrator,
		Backfill:    eng.backfill,
		Quota:       eng.governor,
		RunRepo:     eng.runRepo,
		ResultRepo:  eng.resultRepo,
		LogRepo:     eng.logRepo,
		DB:          db,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := startMetricsServer(cfg.MetricsPort, registry)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	// 受付済みの収集が完了するまで待つ
	eng.orchestrator.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、定期収集スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	eng := wireEngine(cfg, db, registry)

	metricsServer := startMetricsServer(cfg.MetricsPort, registry)

	scheduler := collectpkg.NewScheduler(eng.orchestrator, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("continuous_interval", cfg.ContinuousInterval),
		slog.Duration("backfill_step_interval", cfg.BackfillStepInterval),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ContinuousInterval, cfg.BackfillStepInterval)

	// 受付済みの収集が完了するまで待つ
	eng.orchestrator.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// startMetricsServer はPrometheusスクレイプ用のHTTPサーバーを起動する。
func startMetricsServer(port string, registry *prometheus.Registry) *http.Server {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	return server
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
