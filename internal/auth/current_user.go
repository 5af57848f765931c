// Package auth はリクエストスコープの認証状態、サインインフロー、
// 認証アクセス契約を提供する。
package auth

import (
	"context"

	"github.com/hitoshi/textdesk/internal/model"
)

// CurrentUser はリクエストごとに解決される閉じたバリアント型。
// 取りうる形はAuthenticatedとGuestの2つのみで、消費側は型switchで
// 網羅的に分岐すること。セッションのユーザーIDと毎リクエストの
// ルックアップから導出され、永続化されることはない。
//
// リクエストコンテキストへの書き込みはCurrent-Userリゾルバーだけが行う。
type CurrentUser interface {
	currentUser()
}

// Authenticated は認証済みユーザーを表す。
type Authenticated struct {
	UserID  model.UserID
	Email   string
	IsAdmin bool
}

func (*Authenticated) currentUser() {}

// Guest は未認証の訪問者を表す。
type Guest struct{}

func (Guest) currentUser() {}

// RequireAuthenticated は認証済みユーザーIDを取り出すアクセス契約。
// ゲストの場合は型付きのUnauthorizedエラーを返す。
//
// 正しく合成された保護ルートではRequireAuthenticationゲートが先に走るため
// この条件は成立しないはずだが、将来のルート登録漏れやミドルウェア順序の
// 変更に対する多層防御として、プロセス停止ではなく回復可能なエラーで表現する。
func RequireAuthenticated(cu CurrentUser) (model.UserID, error) {
	switch u := cu.(type) {
	case *Authenticated:
		return u.UserID, nil
	default:
		return 0, model.NewUnauthorizedError("authentication required")
	}
}

// IsAuthenticated は認証済みかどうかを返す。
func IsAuthenticated(cu CurrentUser) bool {
	_, ok := cu.(*Authenticated)
	return ok
}

// IsAdmin は管理者権限を持つかどうかを返す。ゲストは常にfalse。
func IsAdmin(cu CurrentUser) bool {
	u, ok := cu.(*Authenticated)
	return ok && u.IsAdmin
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// currentUserContextKey はリクエストコンテキストにCurrentUserを格納するためのキー。
var currentUserContextKey = contextKey("current_user")

// CurrentUserFromContext はリクエストコンテキストからCurrentUserを取得する。
// リゾルバーを通過していないコンテキストではGuestを返す（deny by default）。
func CurrentUserFromContext(ctx context.Context) CurrentUser {
	cu, ok := ctx.Value(currentUserContextKey).(CurrentUser)
	if !ok || cu == nil {
		return Guest{}
	}
	return cu
}

// ContextWithCurrentUser はコンテキストにCurrentUserを注入する。
// Current-Userリゾルバーおよびテストでのみ使用すること。
func ContextWithCurrentUser(ctx context.Context, cu CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserContextKey, cu)
}
