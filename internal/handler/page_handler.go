package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// DashboardTodoLister はダッシュボードが必要とするTodo一覧インターフェース。
type DashboardTodoLister interface {
	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Todo, error)
}

// PageHandler はトップページとダッシュボードのHTTPハンドラー。
type PageHandler struct {
	todos    DashboardTodoLister
	renderer *view.Renderer
	logger   *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(todos DashboardTodoLister, renderer *view.Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		todos:    todos,
		renderer: renderer,
		logger:   logger,
	}
}

// Root はトップページを表示する。認証不要。
// GET /
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "root", view.Data{
		Title:       "Home",
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
	})
}

// dashboardData はダッシュボードのコンテンツデータ。
type dashboardData struct {
	Email     string
	OpenTodos int
}

// Dashboard はサインイン後のダッシュボードを表示する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	cu := auth.CurrentUserFromContext(r.Context())
	authed, ok := cu.(*auth.Authenticated)
	if !ok {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	todos, err := h.todos.ListByUser(r.Context(), authed.UserID)
	if err != nil {
		h.logger.Error("Todo一覧の取得に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("user_id", authed.UserID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	open := 0
	for _, t := range todos {
		if !t.Completed {
			open++
		}
	}

	h.renderer.Render(w, http.StatusOK, "dashboard", view.Data{
		Title:       "Dashboard",
		CurrentUser: cu,
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
		Content: dashboardData{
			Email:     authed.Email,
			OpenTodos: open,
		},
	})
}

// NotFound はルーティングに一致しないリクエストへ404ページを描画する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// pageOffset はクエリパラメータpageから一覧のオフセットを計算する。
// 不正な値は1ページ目として扱う。
func pageOffset(r *http.Request, pageSize int) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
