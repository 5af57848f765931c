package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/textdesk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Pipeline    *middleware.Pipeline
	RateLimiter *middleware.RateLimiter
	CSRFConfig  middleware.CSRFConfig

	// ハンドラー
	Pages    *PageHandler
	Auth     *AuthHandler
	Contact  *ContactHandler
	Todos    *TodoHandler
	Analyzer *AnalyzerHandler
	Admin    *AdminHandler

	// MetricsHandler は/metricsへマウントされるPrometheusハンドラー。nil可。
	MetricsHandler http.Handler
}

// NewRouter は全ルートのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ベースチェーンはPipelineが固定順序で供給する:
//
//	Recovery → SecurityHeaders → Logging → (Metrics) → Session → CurrentUser
//
// 認証ゲートはPipeline.Protected / Pipeline.Admin経由でのみ適用される。
// CSRF検証とレート制限はベースチェーンの直後に全ルートへ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	for _, mw := range deps.Pipeline.Base() {
		r.Use(mw)
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	r.NotFound(deps.Pages.NotFound)

	// --- 認証不要のルート ---

	r.Get("/", deps.Pages.Root)
	r.Post("/forms/contact", deps.Contact.Submit)
	r.Get("/sign_in", deps.Auth.ShowSignIn)
	r.With(deps.RateLimiter.SignInMiddleware()).Post("/forms/sign_in", deps.Auth.RequestSignIn)
	r.Get("/actions/auth/verify", deps.Auth.Verify)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Pipeline.Protected())

		r.Get("/dashboard", deps.Pages.Dashboard)
		r.Post("/actions/sign_out", deps.Auth.SignOut)

		// Todo管理
		r.Get("/todos", deps.Todos.List)
		r.Post("/forms/todos", deps.Todos.Create)
		r.Post("/actions/todos/{todo_id}/toggle", deps.Todos.Toggle)
		r.Post("/actions/todos/{todo_id}", deps.Todos.Delete)

		// テキスト解析と決済
		r.Get("/text_analyzer", deps.Analyzer.Show)
		r.Post("/forms/text_analyzer", deps.Analyzer.CreateOrder)
		r.Get("/checkout/{order_id}", deps.Analyzer.ShowCheckout)
		r.Post("/actions/payment/verify", deps.Analyzer.VerifyPayment)
	})

	// --- 管理者専用のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Pipeline.Admin())

		r.Get("/admin", deps.Admin.Dashboard)
		r.Get("/admin/users", deps.Admin.ListUsers)
		r.Get("/admin/users/{user_id}", deps.Admin.ShowUser)
		r.Post("/forms/admin/users/{user_id}/grant-role", deps.Admin.GrantRole)
		r.Post("/actions/admin/users/{user_id}/revoke-role", deps.Admin.RevokeRole)
		r.Get("/admin/orders", deps.Admin.ListOrders)
		r.Get("/admin/orders/{order_number}", deps.Admin.ShowOrder)
	})

	return r
}
