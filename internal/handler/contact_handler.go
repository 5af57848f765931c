package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/email"
	"github.com/hitoshi/textdesk/internal/security"
	"github.com/hitoshi/textdesk/internal/session"
)

// ContactHandler は問い合わせフォームのHTTPハンドラー。
// ゲストも認証済みユーザーも利用できる。認証済みユーザーの返信先は
// アカウントのメールアドレスを使い、フォームのメール欄は無視する。
type ContactHandler struct {
	sender    email.Sender
	sanitizer security.InputSanitizerService
	logger    *slog.Logger
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(sender email.Sender, sanitizer security.InputSanitizerService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		sender:    sender,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Submit は問い合わせフォームの送信を処理する。
// POST /forms/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgContactMessageEmpty), "/")
		return
	}

	message := h.sanitizer.SanitizeText(r.PostFormValue("message"))
	if message == "" {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgContactMessageEmpty), "/")
		return
	}

	// 返信先: 認証済みならアカウントのアドレス、ゲストはフォーム入力を検証する
	var replyTo string
	if authed, ok := auth.CurrentUserFromContext(r.Context()).(*auth.Authenticated); ok {
		replyTo = authed.Email
	} else {
		replyTo = r.PostFormValue("email")
		if !auth.ValidEmailAddress(replyTo) {
			redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgEmailInvalid), "/")
			return
		}
	}

	if err := h.sender.SendContactInquiry(r.Context(), replyTo, message); err != nil {
		h.logger.Error("問い合わせメールの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgEmailSendFailed), "/")
		return
	}

	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgContactSent), "/")
}
