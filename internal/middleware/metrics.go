package middleware

import (
	"net/http"
	"time"
)

// HTTPRecorder はHTTPリクエストのメトリクス記録先のインターフェース。
// metrics.Collectorの部分集合として定義する。
type HTTPRecorder interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
}

// NewMetricsMiddleware はリクエスト数とレイテンシを記録するミドルウェアを返す。
func NewMetricsMiddleware(recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPRequest(r.Method, rec.statusCode, time.Since(start))
		})
	}
}
