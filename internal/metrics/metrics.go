// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordCheckIn()
	RecordCheckOut(activeMinutes int)
	RecordActivityEvent(activityType string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLogsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess   prometheus.Counter
	loginFail      prometheus.Counter
	checkIns       prometheus.Counter
	checkOuts      prometheus.Counter
	activeMinutes  prometheus.Counter
	activityEvents *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	logsDeleted    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		checkIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_check_in_total",
			Help: "チェックインの合計数",
		}),
		checkOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_check_out_total",
			Help: "チェックアウトの合計数",
		}),
		activeMinutes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_active_minutes_total",
			Help: "チェックアウト時に確定した実働時間の合計（分）",
		}),
		activityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_activity_events_total",
			Help: "種別ごとのアクティビティイベント数",
		}, []string{"type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kintai_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kintai_logs_deleted_total",
			Help: "クリーンアップで削除されたアクティビティログの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.checkIns,
		c.checkOuts,
		c.activeMinutes,
		c.activityEvents,
		c.httpStatus,
		c.requestLatency,
		c.logsDeleted,
	)

	return c
}

// RecordLogin はログイン試行の成否を記録する。
func (c *Collector) RecordLogin(success bool) {
	if success {
		c.loginSuccess.Inc()
	} else {
		c.loginFail.Inc()
	}
}

// RecordCheckIn はチェックインを記録する。
func (c *Collector) RecordCheckIn() {
	c.checkIns.Inc()
}

// RecordCheckOut はチェックアウトと確定した実働時間を記録する。
func (c *Collector) RecordCheckOut(activeMinutes int) {
	c.checkOuts.Inc()
	c.activeMinutes.Add(float64(activeMinutes))
}

// RecordActivityEvent はアクティビティイベントを種別ごとに記録する。
func (c *Collector) RecordActivityEvent(activityType string) {
	c.activityEvents.WithLabelValues(activityType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLogsDeleted はクリーンアップで削除されたログ件数を記録する。
func (c *Collector) RecordLogsDeleted(count int64) {
	c.logsDeleted.Add(float64(count))
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
