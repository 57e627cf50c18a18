// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 収集実行層とクォータ管理層から利用する。
type MetricsCollector interface {
	RecordRun(mode, status string)
	RecordSearchRequests(count int)
	RecordNewResults(count int)
	RecordQuotaTruncation(mode string)
	RecordRunDuration(duration time.Duration)
	RecordQuotaConsumed()
	RecordQuotaExhausted()
}

var _ MetricsCollector = (*Collector)(nil)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runsTotal        *prometheus.CounterVec
	searchRequests   prometheus.Counter
	resultsNew       prometheus.Counter
	quotaTruncations *prometheus.CounterVec
	runDuration      prometheus.Histogram
	quotaConsumed    prometheus.Counter
	quotaExhausted   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandwatch_runs_total",
			Help: "モード・終了状態別の収集Runの合計数",
		}, []string{"mode", "status"}),
		searchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandwatch_search_requests_total",
			Help: "検索APIリクエストの合計数",
		}),
		resultsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandwatch_results_new_total",
			Help: "新規保存された検索結果の合計数",
		}),
		quotaTruncations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandwatch_quota_truncations_total",
			Help: "クォータ枯渇で打ち切られたRunのモード別合計数",
		}, []string{"mode"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brandwatch_run_duration_seconds",
			Help:    "Run単位の収集所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		quotaConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandwatch_quota_consumed_total",
			Help: "消費された日次クォータの合計数",
		}),
		quotaExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandwatch_quota_exhausted_total",
			Help: "クォータ枯渇により拒否された消費試行の合計数",
		}),
	}

	reg.MustRegister(
		c.runsTotal,
		c.searchRequests,
		c.resultsNew,
		c.quotaTruncations,
		c.runDuration,
		c.quotaConsumed,
		c.quotaExhausted,
	)

	return c
}

// RecordRun はRunの終了をモード・状態別に記録する。
func (c *Collector) RecordRun(mode, status string) {
	c.runsTotal.WithLabelValues(mode, status).Inc()
}

// RecordSearchRequests は検索APIリクエスト数を記録する。
func (c *Collector) RecordSearchRequests(count int) {
	c.searchRequests.Add(float64(count))
}

// RecordNewResults は新規保存された結果数を記録する。
func (c *Collector) RecordNewResults(count int) {
	c.resultsNew.Add(float64(count))
}

// RecordQuotaTruncation はクォータ枯渇による打ち切りを記録する。
func (c *Collector) RecordQuotaTruncation(mode string) {
	c.quotaTruncations.WithLabelValues(mode).Inc()
}

// RecordRunDuration はRunの収集所要時間を記録する。
func (c *Collector) RecordRunDuration(duration time.Duration) {
	c.runDuration.Observe(duration.Seconds())
}

// RecordQuotaConsumed はクォータ消費の成功を記録する。
func (c *Collector) RecordQuotaConsumed() {
	c.quotaConsumed.Inc()
}

// RecordQuotaExhausted はクォータ枯渇による消費拒否を記録する。
func (c *Collector) RecordQuotaExhausted() {
	c.quotaExhausted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
