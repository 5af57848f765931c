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
// ミドルウェアやサービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordSignIn()
	RecordMagicLinkIssued()
	RecordOrderPaid(amount int64)
	RecordSessionsSwept(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
	signIns          prometheus.Counter
	magicLinksIssued prometheus.Counter
	ordersPaid       prometheus.Counter
	orderAmount      prometheus.Counter
	sessionsSwept    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "textdesk_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "textdesk_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textdesk_sign_ins_total",
			Help: "サインイン成功の合計数",
		}),
		magicLinksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textdesk_magic_links_issued_total",
			Help: "発行されたマジックリンクの合計数",
		}),
		ordersPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textdesk_orders_paid_total",
			Help: "支払い完了した注文の合計数",
		}),
		orderAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textdesk_order_amount_total",
			Help: "支払い完了した注文金額の累計",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "textdesk_sessions_swept_total",
			Help: "掃除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.signIns,
		c.magicLinksIssued,
		c.ordersPaid,
		c.orderAmount,
		c.sessionsSwept,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの完了を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordSignIn はサインイン成功を記録する。
func (c *Collector) RecordSignIn() {
	c.signIns.Inc()
}

// RecordMagicLinkIssued はマジックリンク発行を記録する。
func (c *Collector) RecordMagicLinkIssued() {
	c.magicLinksIssued.Inc()
}

// RecordOrderPaid は支払い完了した注文を記録する。
func (c *Collector) RecordOrderPaid(amount int64) {
	c.ordersPaid.Inc()
	c.orderAmount.Add(float64(amount))
}

// RecordSessionsSwept は掃除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
