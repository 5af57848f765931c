// Package middleware はHTTPミドルウェアを提供する。
//
// ミドルウェアの合成順序には依存関係がある（セッション → Current-User
// リゾルバー → 認証ゲート）。順序はpipeline.goのNewPipelineが構造的に
// 固定しており、呼び出し側の規律には依存しない。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
)

// UserInfoFinder はCurrent-Userリゾルバーが必要とするユーザー検索インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserInfoFinder interface {
	GetUserInfo(ctx context.Context, id model.UserID) (*model.UserInfo, error)
}

// NewCurrentUserMiddleware はセッションからCurrentUserを解決するミドルウェアを返す。
// 公開・保護・管理のすべてのルートで毎リクエスト実行され、
// ルート固有の処理より先に走る。CurrentUserをコンテキストへ書き込むのは
// このミドルウェアだけである。
//
// セッションにユーザーIDがない場合はGuestとして続行する（エラーではない）。
// IDはあるがユーザーが存在しない場合（削除済みアカウントを指す古いセッション）は
// 警告ログを出してGuestへフォールバックし、セッションを破棄して
// 残骸のレコードとCookieを回収する。ルックアップのバックエンド障害は
// 「ユーザーが本当に消えた」と「確認できなかった」を区別するため、
// 降格せずリクエストを失敗させる。
func NewCurrentUserMiddleware(users UserInfoFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := session.FromContext(r.Context())
			if err != nil {
				// パイプライン不備。セッションなしでは解決できないため失敗させる。
				slog.Error("current user resolver ran without session middleware")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			var currentUser auth.CurrentUser = auth.Guest{}

			userID, ok, err := sess.UserID()
			if err != nil {
				slog.Error("failed to read user ID from session",
					slog.String("error", err.Error()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if ok {
				info, err := users.GetUserInfo(r.Context(), userID)
				if err != nil {
					slog.Error("failed to fetch user info",
						slog.String("user_id", userID.String()),
						slog.String("error", err.Error()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				if info == nil {
					slog.Warn("user ID in session but not found in database",
						slog.String("user_id", userID.String()),
					)
					sess.Destroy()
				} else {
					currentUser = &auth.Authenticated{
						UserID:  userID,
						Email:   info.Email,
						IsAdmin: info.IsAdmin,
					}
				}
			}

			// 保留中のフラッシュを破壊的に取り出す。不在はエラーではない。
			flash, err := sess.TakeFlash()
			if err != nil {
				slog.Error("failed to read flash message from session",
					slog.String("error", err.Error()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := auth.ContextWithCurrentUser(r.Context(), currentUser)
			ctx = session.ContextWithFlash(ctx, flash)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
