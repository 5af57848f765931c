package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// adminPageSize は管理画面の一覧1ページあたりの件数。
const adminPageSize = 50

// AdminUserRepositoryInterface は管理ハンドラーが必要とするユーザーリポジトリインターフェース。
type AdminUserRepositoryInterface interface {
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	GrantAdmin(ctx context.Context, id model.UserID) error
	RevokeAdmin(ctx context.Context, id model.UserID) error
}

// AdminOrderRepositoryInterface は管理ハンドラーが必要とする注文リポジトリインターフェース。
type AdminOrderRepositoryInterface interface {
	ListRecent(ctx context.Context, limit, offset int) ([]*model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	CountByStatus(ctx context.Context, status model.OrderStatus) (int, error)
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	users    AdminUserRepositoryInterface
	orders   AdminOrderRepositoryInterface
	renderer *view.Renderer
	logger   *slog.Logger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(users AdminUserRepositoryInterface, orders AdminOrderRepositoryInterface, renderer *view.Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:    users,
		orders:   orders,
		renderer: renderer,
		logger:   logger,
	}
}

// adminDashboardData は管理ダッシュボードのコンテンツデータ。
type adminDashboardData struct {
	UserCount     int
	PendingOrders int
	PaidOrders    int
}

// Dashboard は管理ダッシュボードを表示する。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userCount, err := h.users.Count(r.Context())
	if err != nil {
		h.renderInternalError(w, r, "ユーザー数の取得に失敗しました", err)
		return
	}
	pending, err := h.orders.CountByStatus(r.Context(), model.OrderStatusPending)
	if err != nil {
		h.renderInternalError(w, r, "注文数の取得に失敗しました", err)
		return
	}
	paid, err := h.orders.CountByStatus(r.Context(), model.OrderStatusPaid)
	if err != nil {
		h.renderInternalError(w, r, "注文数の取得に失敗しました", err)
		return
	}

	h.render(w, r, "admin_dashboard", "Admin", adminDashboardData{
		UserCount:     userCount,
		PendingOrders: pending,
		PaidOrders:    paid,
	})
}

// ListUsers はユーザー一覧を表示する。
// GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), adminPageSize, pageOffset(r, adminPageSize))
	if err != nil {
		h.renderInternalError(w, r, "ユーザー一覧の取得に失敗しました", err)
		return
	}
	h.render(w, r, "admin_users", "Users", users)
}

// ShowUser はユーザー詳細を表示する。
// GET /admin/users/{user_id}
func (h *AdminHandler) ShowUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, "admin_user_detail", "User", user)
}

// GrantRole は管理者ロールを付与する。
// POST /forms/admin/users/{user_id}/grant-role
func (h *AdminHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	if err := h.users.GrantAdmin(r.Context(), user.ID); err != nil {
		h.renderInternalError(w, r, "管理者ロールの付与に失敗しました", err)
		return
	}
	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgRoleGranted), "/admin/users/"+user.ID.String())
}

// RevokeRole は管理者ロールを剥奪する。自分自身の剥奪は拒否する。
// POST /actions/admin/users/{user_id}/revoke-role
func (h *AdminHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	// 最後の管理者を閉め出さないため、自分自身の剥奪は許可しない
	if user.ID == actorID {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgSelfRevokeDenied), "/admin/users/"+user.ID.String())
		return
	}

	if err := h.users.RevokeAdmin(r.Context(), user.ID); err != nil {
		h.renderInternalError(w, r, "管理者ロールの剥奪に失敗しました", err)
		return
	}
	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgRoleRevoked), "/admin/users/"+user.ID.String())
}

// ListOrders は全ユーザーの注文一覧を表示する。
// GET /admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListRecent(r.Context(), adminPageSize, pageOffset(r, adminPageSize))
	if err != nil {
		h.renderInternalError(w, r, "注文一覧の取得に失敗しました", err)
		return
	}
	h.render(w, r, "admin_orders", "Orders", orders)
}

// ShowOrder は注文詳細を表示する。一覧が載せる公開注文番号で引く。
// GET /admin/orders/{order_number}
func (h *AdminHandler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "order_number")

	order, err := h.orders.FindByOrderNumber(r.Context(), orderNumber)
	if err != nil {
		h.renderInternalError(w, r, "注文の取得に失敗しました", err)
		return
	}
	if order == nil {
		h.renderer.RenderError(w, r, http.StatusNotFound, MsgOrderNotFound)
		return
	}
	h.render(w, r, "admin_order_detail", "Order "+order.OrderNumber, order)
}

// loadUser はURLのuser_idからユーザーを取得する。見つからない場合は404を描画する。
func (h *AdminHandler) loadUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID, ok := model.ParseID[model.UserEntity](chi.URLParam(r, "user_id"))
	if !ok {
		h.renderer.RenderError(w, r, http.StatusNotFound, "User not found.")
		return nil, false
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		h.renderInternalError(w, r, "ユーザーの取得に失敗しました", err)
		return nil, false
	}
	if user == nil {
		h.renderer.RenderError(w, r, http.StatusNotFound, "User not found.")
		return nil, false
	}
	return user, true
}

// render は管理画面ページを共通データ付きで描画する。
func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, page, title string, content any) {
	h.renderer.Render(w, http.StatusOK, page, view.Data{
		Title:       title,
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
		Content:     content,
	})
}

// renderInternalError はエラーをログに残して500ページを描画する。
func (h *AdminHandler) renderInternalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.Error(message, slog.String("error", err.Error()))
	h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}
