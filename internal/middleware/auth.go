package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/session"
)

// SignInPath は未認証リクエストのリダイレクト先。
const SignInPath = "/sign_in"

// signInRequiredMessage はゲストを保護ルートから追い返すときのフラッシュ文言。
const signInRequiredMessage = "Please sign in to continue"

// forbiddenMessage は権限不足のレスポンス本文。
const forbiddenMessage = "You don't have permission to access this resource"

// newRequireAuthentication は保護ルート用の認証ゲートを返す。
// ゲートはPipeline経由でのみルーターに到達する。リゾルバーより先に
// 実行される合成を型レベルで防ぐことはできないため、到達経路を
// パイプラインに限定することで順序を構造的に保証する。
// コンテキストのCurrentUserを検査し、認証済みならキャッシュ抑止ヘッダーを
// 付与してハンドラーを実行する。ゲストにはサインイン要求のフラッシュを
// 設定してサインインページへリダイレクトし、ハンドラーは実行しない。
//
// このゲートはCurrent-Userリゾルバーが先に実行されていることを前提とする。
// コンテキストにCurrentUserがない場合、CurrentUserFromContextはGuestを
// 返すため、合成順序を誤った場合も「許可」側には倒れない。
func newRequireAuthentication() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch auth.CurrentUserFromContext(r.Context()).(type) {
			case *auth.Authenticated:
				// 認証済みレスポンスは中継・ブラウザにキャッシュさせない
				w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				next.ServeHTTP(w, r)
			default:
				redirectToSignIn(w, r)
			}
		})
	}
}

// newRequireAdmin は管理ルート用の認証ゲートを返す。
// 認証済みかつ管理者のみを通す。メカニズムはnewRequireAuthenticationと
// 同じで、許可述語だけが異なる。
func newRequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch cu := auth.CurrentUserFromContext(r.Context()).(type) {
			case *auth.Authenticated:
				if !cu.IsAdmin {
					slog.Warn("non-admin user denied on admin route",
						slog.String("user_id", cu.UserID.String()),
						slog.String("path", r.URL.Path),
					)
					http.Error(w, forbiddenMessage, http.StatusForbidden)
					return
				}
				w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				next.ServeHTTP(w, r)
			default:
				redirectToSignIn(w, r)
			}
		})
	}
}

// redirectToSignIn はサインイン要求のフラッシュを添えてリダイレクトする。
// フラッシュの設定失敗はリダイレクト自体を妨げない。
func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromContext(r.Context())
	if err == nil {
		if err := sess.SetFlash(session.NewErrorFlash(signInRequiredMessage)); err != nil {
			slog.Warn("failed to set flash message in auth gate",
				slog.String("error", err.Error()),
			)
		}
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}
