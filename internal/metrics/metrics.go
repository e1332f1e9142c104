// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordChatCommand(intent string)
	RecordIntentParseFailure()
	RecordAssistantLatency(duration time.Duration)
	RecordAuthAttempt(outcome string)
	IncReadingsInserted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chatCommands     *prometheus.CounterVec
	intentParseFail  prometheus.Counter
	assistantLatency prometheus.Histogram
	authAttempts     *prometheus.CounterVec
	readingsInserted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chatCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clemmont_chat_commands_total",
			Help: "インテント別のチャットコマンドの合計数",
		}, []string{"intent"}),
		intentParseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clemmont_intent_parse_failures_total",
			Help: "インテント解析失敗の合計数",
		}),
		assistantLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clemmont_assistant_latency_seconds",
			Help:    "アシスタント応答生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clemmont_auth_attempts_total",
			Help: "結果別の認証試行の合計数",
		}, []string{"outcome"}),
		readingsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clemmont_readings_inserted_total",
			Help: "記録されたセンサー測定値の合計数",
		}),
	}

	reg.MustRegister(
		c.chatCommands,
		c.intentParseFail,
		c.assistantLatency,
		c.authAttempts,
		c.readingsInserted,
	)

	return c
}

// RecordChatCommand は解釈されたチャットコマンドをインテント別に記録する。
func (c *Collector) RecordChatCommand(intent string) {
	c.chatCommands.WithLabelValues(intent).Inc()
}

// RecordIntentParseFailure はインテント解析失敗を記録する。
func (c *Collector) RecordIntentParseFailure() {
	c.intentParseFail.Inc()
}

// RecordAssistantLatency はアシスタント応答のレイテンシを記録する。
func (c *Collector) RecordAssistantLatency(duration time.Duration) {
	c.assistantLatency.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行を結果別に記録する。
func (c *Collector) RecordAuthAttempt(outcome string) {
	c.authAttempts.WithLabelValues(outcome).Inc()
}

// IncReadingsInserted は記録されたセンサー測定値数を加算する。
func (c *Collector) IncReadingsInserted() {
	c.readingsInserted.Inc()
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
