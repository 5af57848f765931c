package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	csrfCookieName = "csrf_token"

	// csrfFormField はフォームの隠しフィールドからトークンを読み取る際のフィールド名。
	csrfFormField = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからトークンを読み取る際のヘッダー名。
	// フォーム以外のクライアント用の代替手段。
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はCSRFトークンの生成・検証ミドルウェアを返す（double-submit方式）。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップし、トークンCookieを
// 配布する。状態変更メソッド（POST, PUT, PATCH, DELETE）はCookieのトークンと
// フォームフィールド（またはヘッダー）のトークンの一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r)
				return
			}

			cookieToken, err := r.Cookie(csrfCookieName)
			if err != nil || cookieToken.Value == "" {
				slog.Warn("CSRF validation failed: missing cookie token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			submitted := r.PostFormValue(csrfFormField)
			if submitted == "" {
				submitted = r.Header.Get(csrfHeaderName)
			}
			if submitted == "" {
				slog.Warn("CSRF validation failed: missing submitted token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			if subtle.ConstantTimeCompare([]byte(cookieToken.Value), []byte(submitted)) != 1 {
				slog.Warn("CSRF validation failed: token mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromRequest はフォームの隠しフィールドに埋め込むトークンを返す。
// Cookieが未配布の場合は空文字列（次のGETで配布される）。
func CSRFTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はCSRFトークンCookieが未設定の場合に設定する。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) {
	_, err := r.Cookie(csrfCookieName)
	if err == nil {
		// 既にCookieが設定されている
		return
	}

	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   86400, // 24時間
		HttpOnly: false, // テンプレートではなくCookieから読み直すクライアント用
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
