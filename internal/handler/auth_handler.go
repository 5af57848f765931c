// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// RequestSignIn はメールアドレスを検証しマジックリンクを送信する。
	RequestSignIn(ctx context.Context, address string) error
	// VerifySignIn はトークンを検証・消費し、対応するユーザーIDを返す。
	VerifySignIn(ctx context.Context, token string) (model.UserID, error)
}

// SignInRecorder はサインイン関連メトリクスの記録先。nil可。
type SignInRecorder interface {
	RecordSignIn()
	RecordMagicLinkIssued()
}

// AuthHandler はマジックリンク認証のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *view.Renderer
	logger   *slog.Logger
	metrics  SignInRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer *view.Renderer, logger *slog.Logger, metrics SignInRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		logger:   logger,
		metrics:  metrics,
	}
}

// ShowSignIn はサインインフォームを表示する。
// GET /sign_in
func (h *AuthHandler) ShowSignIn(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "sign_in", view.Data{
		Title:       "Sign in",
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
	})
}

// RequestSignIn はサインインフォームの送信を処理し、マジックリンクを発行する。
// POST /forms/sign_in
func (h *AuthHandler) RequestSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgEmailInvalid), middleware.SignInPath)
		return
	}
	address := r.PostFormValue("email")

	err := h.service.RequestSignIn(r.Context(), address)
	switch {
	case err == nil:
		if h.metrics != nil {
			h.metrics.RecordMagicLinkIssued()
		}
		redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgMagicLinkSent), middleware.SignInPath)
	case errors.Is(err, auth.ErrEmailSend):
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgEmailSendFailed), middleware.SignInPath)
	case model.IsKind(err, model.KindInvalidInput):
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgEmailInvalid), middleware.SignInPath)
	default:
		h.logger.Error("サインイン要求の処理に失敗しました",
			slog.String("error", err.Error()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

// Verify はマジックリンクのトークンを検証してサインインを完了する。
// GET /actions/auth/verify?token=
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	userID, err := h.service.VerifySignIn(r.Context(), token)
	if err != nil {
		if model.IsKind(err, model.KindUnauthorized) {
			redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgMagicLinkInvalid), middleware.SignInPath)
			return
		}
		h.logger.Error("マジックリンクの検証に失敗しました",
			slog.String("error", err.Error()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	sess, err := session.FromContext(r.Context())
	if err != nil {
		h.logger.Error("セッションの取得に失敗しました", slog.String("error", err.Error()))
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	if err := sess.SetUserID(userID); err != nil {
		h.logger.Error("セッションへのユーザーID記録に失敗しました", slog.String("error", err.Error()))
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	// サインイン成立時はセッションIDを使い捨てて固定化攻撃を防ぐ
	sess.Cycle()

	if h.metrics != nil {
		h.metrics.RecordSignIn()
	}
	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgSignedIn), "/dashboard")
}

// SignOut はサインアウトを処理する。
// POST /actions/sign_out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		h.logger.Error("セッションの取得に失敗しました", slog.String("error", err.Error()))
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	// 認証情報を破棄し、通知だけを新しいセッションで運ぶ
	sess.ClearUserID()
	sess.Cycle()

	redirectFlash(w, r, h.logger, session.NewInfoFlash(MsgSignedOut), "/")
}

// redirectFlash はフラッシュ付き303リダイレクトを行い、失敗をログに残す。
func redirectFlash(w http.ResponseWriter, r *http.Request, logger *slog.Logger, flash session.Flash, path string) {
	if err := session.RedirectWithFlash(w, r, flash, path); err != nil {
		logger.Error("フラッシュメッセージの設定に失敗しました",
			slog.String("error", err.Error()),
			slog.String("path", path),
		)
		http.Redirect(w, r, path, http.StatusSeeOther)
	}
}
