package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/hitoshi/textdesk/internal/session"
)

// PipelineDeps はリクエスト処理パイプラインの依存関係。
type PipelineDeps struct {
	Sessions *session.Manager
	Users    UserInfoFinder
	Logger   *slog.Logger
	// Metrics はHTTPメトリクスの記録先。nilの場合は記録しない。
	Metrics HTTPRecorder
}

// Pipeline はリクエスト処理ステージを固定順序で束ねる。
//
// 認証ゲートの健全性はCurrent-Userリゾルバーが先に実行されていることに
// 依存する。順序をコールサイトの規律やコメントではなく構造で保証するため、
// ベースチェーンは起動時にここで一度だけ組み立てられ、ゲートは
// Protected/Adminメソッド経由でのみ取得できる。
//
// ベースチェーンの実行順序:
//
//	Recovery → SecurityHeaders → Logging → (Metrics) → Session → CurrentUser
type Pipeline struct {
	base      []func(next http.Handler) http.Handler
	authGate  func(next http.Handler) http.Handler
	adminGate func(next http.Handler) http.Handler
}

// NewPipeline は全ステージを所定の順序で配線したPipelineを返す。
func NewPipeline(deps PipelineDeps) *Pipeline {
	base := []func(next http.Handler) http.Handler{
		NewRecoveryMiddleware(),
		NewSecurityHeadersMiddleware(),
		NewLoggingMiddleware(deps.Logger),
	}
	if deps.Metrics != nil {
		base = append(base, NewMetricsMiddleware(deps.Metrics))
	}
	base = append(base,
		deps.Sessions.Middleware(),
		NewCurrentUserMiddleware(deps.Users),
	)

	return &Pipeline{
		base:      base,
		authGate:  newRequireAuthentication(),
		adminGate: newRequireAdmin(),
	}
}

// Base は全ルート共通のミドルウェアチェーンを返す。
// ルーターのトップレベルで一度だけ適用すること。
func (p *Pipeline) Base() []func(next http.Handler) http.Handler {
	return slices.Clone(p.base)
}

// Protected は保護ルートグループ用の認証ゲートを返す。
func (p *Pipeline) Protected() func(next http.Handler) http.Handler {
	return p.authGate
}

// Admin は管理ルートグループ用のゲートを返す。
func (p *Pipeline) Admin() func(next http.Handler) http.Handler {
	return p.adminGate
}
