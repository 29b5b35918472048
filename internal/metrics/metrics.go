// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPレイヤーとドメインサービスの両方から利用される。
type Collector struct {
	httpStatus    *prometheus.CounterVec
	httpLatency   prometheus.Histogram
	signIns       *prometheus.CounterVec
	todoMutations *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todoman_http_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_sign_in_total",
			Help: "サインイン試行の結果別の合計数",
		}, []string{"result"}),
		todoMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_todo_mutations_total",
			Help: "Todoミューテーションの操作別の合計数",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.httpLatency,
		c.signIns,
		c.todoMutations,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordTodoMutation はTodoミューテーションを記録する。
func (c *Collector) RecordTodoMutation(op string) {
	c.todoMutations.WithLabelValues(op).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
