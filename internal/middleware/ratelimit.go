package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/textdesk/internal/session"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 全般のバーストサイズ
	SignInRate      rate.Limit    // サインイン要求のレート（req/sec）。5/60
	SignInBurst     int           // サインイン要求のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔

	// SignInLimitMessage が設定されている場合、サインイン要求の超過は
	// 素の429ではなくフラッシュ付きでサインインページへリダイレクトする。
	SignInLimitMessage string
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 全般 120 req/min/クライアント、サインイン要求 5 req/min/IP。
// サインインはマジックリンクのメール送信を伴うため厳しめに制限する。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		SignInRate:      rate.Limit(5.0 / 60.0),
		SignInBurst:     5,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントごとのレート制限を管理する。
// 全般のレート制限とサインイン要求のレート制限の2種類を提供する。
// キーにはセッションIDを優先し、セッション未確立のクライアントには
// リモートIPを使用する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*clientLimiter

	signInMu       sync.RWMutex
	signInLimiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*clientLimiter),
		signInLimiters:  make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware は全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			limiter := rl.getOrCreate(&rl.generalMu, rl.generalLimiters, key,
				rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SignInMiddleware はサインイン要求専用のレート制限ミドルウェアを返す。
// 全般のレート制限とは独立に、リモートIP単位で動作する。
func (rl *RateLimiter) SignInMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := remoteIP(r)

			limiter := rl.getOrCreate(&rl.signInMu, rl.signInLimiters, key,
				rl.config.SignInRate, rl.config.SignInBurst)

			if !limiter.Allow() {
				rl.rejectSignIn(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", "sign_in"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rejectSignIn はサインイン要求の超過レスポンスを書き込む。
// フォームPOSTが対象のため、メッセージが設定されていればフラッシュ付きで
// サインインページへ戻す。セッションが使えない場合は素の429に落とす。
func (rl *RateLimiter) rejectSignIn(w http.ResponseWriter, r *http.Request) {
	msg := rl.config.SignInLimitMessage
	if msg != "" {
		if err := session.RedirectWithFlash(w, r, session.NewErrorFlash(msg), SignInPath); err == nil {
			return
		}
	}
	writeRateLimitResponse(w, rl.config.SignInRate)
}

// GeneralLimiterCount は現在管理されている全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// SignInLimiterCount は現在管理されているサインインリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) SignInLimiterCount() int {
	rl.signInMu.RLock()
	defer rl.signInMu.RUnlock()
	return len(rl.signInLimiters)
}

// getOrCreate は指定キーのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreate(
	mu *sync.RWMutex,
	limiters map[string]*clientLimiter,
	key string,
	r rate.Limit,
	burst int,
) *rate.Limiter {
	mu.RLock()
	cl, exists := limiters[key]
	mu.RUnlock()

	if exists {
		mu.Lock()
		cl.lastAccess = time.Now()
		mu.Unlock()
		return cl.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if cl, exists := limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for key, cl := range rl.generalLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.generalLimiters, key)
		}
	}
	rl.generalMu.Unlock()

	rl.signInMu.Lock()
	for key, cl := range rl.signInLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.signInLimiters, key)
		}
	}
	rl.signInMu.Unlock()
}

// clientKey はレート制限のキーを返す。セッションID優先、なければリモートIP。
func clientKey(r *http.Request) string {
	if sess, err := session.FromContext(r.Context()); err == nil {
		if id := sess.ID(); id != "" {
			return "s:" + id
		}
	}
	return "ip:" + remoteIP(r)
}

// remoteIP はリクエスト元のIPアドレスを返す。
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
}
