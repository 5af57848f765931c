package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぐミドルウェアを返す。
// レスポンスが未送出であれば500を返す。ページ描画の途中でpanicした場合は
// ヘッダーが送出済みのため、レスポンスはそのまま打ち切られる。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				if v := recover(); v != nil {
					slog.Error("panic recovered",
						slog.Any("panic", v),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					if !rec.written {
						http.Error(rec, "internal server error", http.StatusInternalServerError)
					}
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
