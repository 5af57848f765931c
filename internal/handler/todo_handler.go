package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/security"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// TodoRepositoryInterface はTodoハンドラーが必要とするリポジトリインターフェース。
type TodoRepositoryInterface interface {
	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Todo, error)
	Create(ctx context.Context, userID model.UserID, title string) (model.TodoID, error)
	Toggle(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error)
	Delete(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error)
}

// TodoHandler はTodo管理のHTTPハンドラー。
type TodoHandler struct {
	repo      TodoRepositoryInterface
	sanitizer security.InputSanitizerService
	renderer  *view.Renderer
	logger    *slog.Logger
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(repo TodoRepositoryInterface, sanitizer security.InputSanitizerService, renderer *view.Renderer, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		repo:      repo,
		sanitizer: sanitizer,
		renderer:  renderer,
		logger:    logger,
	}
}

// List はTodo一覧を表示する。
// GET /todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	todos, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Todo一覧の取得に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	h.renderer.Render(w, http.StatusOK, "todos", view.Data{
		Title:       "Todos",
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
		Content:     todos,
	})
}

// Create は新規Todoを作成する。
// POST /forms/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	if err := r.ParseForm(); err != nil {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgTodoTitleEmpty), "/todos")
		return
	}
	title := h.sanitizer.SanitizeText(r.PostFormValue("title"))
	if title == "" {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgTodoTitleEmpty), "/todos")
		return
	}

	if _, err := h.repo.Create(r.Context(), userID, title); err != nil {
		h.logger.Error("Todoの作成に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgTodoCreated), "/todos")
}

// Toggle はTodoの完了状態を反転する。
// POST /actions/todos/{todo_id}/toggle
func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, h.repo.Toggle, MsgTodoToggled)
}

// Delete はTodoを削除する。
// POST /actions/todos/{todo_id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, h.repo.Delete, MsgTodoDeleted)
}

// mutateByID はURLのtodo_idに対する所有者チェック付きの変更操作を実行する。
// 対象が見つからない場合（他人のTodoを含む）は404を返す。
func (h *TodoHandler) mutateByID(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error),
	successMessage string,
) {
	userID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	todoID, ok := model.ParseID[model.TodoEntity](chi.URLParam(r, "todo_id"))
	if !ok {
		h.renderer.RenderError(w, r, http.StatusNotFound, "Todo not found.")
		return
	}

	found, err := op(r.Context(), userID, todoID)
	if err != nil {
		h.logger.Error("Todoの更新に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID.Int64()),
			slog.Int64("todo_id", todoID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	if !found {
		h.renderer.RenderError(w, r, http.StatusNotFound, "Todo not found.")
		return
	}

	redirectFlash(w, r, h.logger, session.NewSuccessFlash(successMessage), "/todos")
}
