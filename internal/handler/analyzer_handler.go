package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/payment"
	"github.com/hitoshi/textdesk/internal/security"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// maxUploadBytes はファイルアップロードで受け付ける最大サイズ（10MB）。
const maxUploadBytes = 10 << 20

// OrderRepositoryInterface は解析注文ハンドラーが必要とするリポジトリインターフェース。
type OrderRepositoryInterface interface {
	Create(ctx context.Context, order *model.Order) (model.OrderID, error)
	FindByID(ctx context.Context, id model.OrderID) (*model.Order, error)
	MarkPaid(ctx context.Context, id model.OrderID) (bool, error)
}

// PaymentRecorder は決済メトリクスの記録先。nil可。
type PaymentRecorder interface {
	RecordOrderPaid(amount int64)
}

// AnalyzerHandler はテキスト解析の見積もりと決済のHTTPハンドラー。
type AnalyzerHandler struct {
	orders    OrderRepositoryInterface
	confirmer payment.Confirmer
	sanitizer security.InputSanitizerService
	renderer  *view.Renderer
	logger    *slog.Logger
	metrics   PaymentRecorder
}

// NewAnalyzerHandler はAnalyzerHandlerを生成する。
func NewAnalyzerHandler(
	orders OrderRepositoryInterface,
	confirmer payment.Confirmer,
	sanitizer security.InputSanitizerService,
	renderer *view.Renderer,
	logger *slog.Logger,
	metrics PaymentRecorder,
) *AnalyzerHandler {
	return &AnalyzerHandler{
		orders:    orders,
		confirmer: confirmer,
		sanitizer: sanitizer,
		renderer:  renderer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Show はテキスト解析の入力フォームを表示する。
// GET /text_analyzer
func (h *AnalyzerHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "text_analyzer", view.Data{
		Title:       "Text Analyzer",
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
	})
}

// CreateOrder はテキストから見積もりを作成し、チェックアウトへ誘導する。
// 入力はフォームのテキスト欄とファイルアップロードの両方を受け付ける。
// 料金は1文字1セント、最低料金100セント。
// POST /forms/text_analyzer
func (h *AnalyzerHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return
	}

	raw, errMsg := submittedText(r)
	if errMsg != "" {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(errMsg), "/text_analyzer")
		return
	}
	text := h.sanitizer.SanitizeText(raw)
	if text == "" {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgTextEmpty), "/text_analyzer")
		return
	}

	charCount := utf8.RuneCountInString(text)
	order := &model.Order{
		UserID:      userID,
		OrderNumber: uuid.NewString(),
		CharCount:   charCount,
		Amount:      model.QuoteAmount(charCount),
		Status:      model.OrderStatusPending,
	}

	orderID, err := h.orders.Create(r.Context(), order)
	if err != nil {
		h.logger.Error("注文の作成に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	http.Redirect(w, r, "/checkout/"+orderID.String(), http.StatusSeeOther)
}

// ShowCheckout は注文内容と支払い状況を表示する。
// GET /checkout/{order_id}
func (h *AnalyzerHandler) ShowCheckout(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwnedOrder(w, r, chi.URLParam(r, "order_id"))
	if !ok {
		return
	}

	h.renderer.Render(w, http.StatusOK, "checkout", view.Data{
		Title:       "Checkout",
		CurrentUser: auth.CurrentUserFromContext(r.Context()),
		Flash:       session.FlashFromContext(r.Context()),
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
		Content:     order,
	})
}

// VerifyPayment は決済プロバイダに支払い状況を照会し、注文をpaidへ遷移させる。
// 確認が取れない場合は注文をpendingのまま残す。
// POST /actions/payment/verify
func (h *AnalyzerHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, r, http.StatusNotFound, MsgOrderNotFound)
		return
	}

	order, ok := h.loadOwnedOrder(w, r, r.PostFormValue("order_id"))
	if !ok {
		return
	}
	checkoutPath := "/checkout/" + order.ID.String()

	// 既にpaidなら照会せずに成功扱いとする（冪等）
	if order.Status == model.OrderStatusPaid {
		redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgPaymentSuccess), checkoutPath)
		return
	}

	paid, err := h.confirmer.ConfirmPayment(r.Context(), order.OrderNumber, int64(order.Amount))
	if err != nil {
		h.logger.Error("決済確認に失敗しました",
			slog.String("error", err.Error()),
			slog.String("order_number", order.OrderNumber),
		)
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgPaymentFailed), checkoutPath)
		return
	}
	if !paid {
		redirectFlash(w, r, h.logger, session.NewErrorFlash(MsgPaymentFailed), checkoutPath)
		return
	}

	updated, err := h.orders.MarkPaid(r.Context(), order.ID)
	if err != nil {
		h.logger.Error("注文の支払い記録に失敗しました",
			slog.String("error", err.Error()),
			slog.String("order_number", order.OrderNumber),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	if updated && h.metrics != nil {
		h.metrics.RecordOrderPaid(int64(order.Amount))
	}

	redirectFlash(w, r, h.logger, session.NewSuccessFlash(MsgPaymentSuccess), checkoutPath)
}

// submittedText は解析対象のテキストをリクエストから取り出す。
// multipart/form-dataの場合はfileフィールドのアップロードを読み、
// サイズ上限とUTF-8であることを検証する。それ以外は通常のフォーム値textを返す。
// 第2戻り値は利用者向けのエラーメッセージで、空なら成功。
func submittedText(r *http.Request) (string, string) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", MsgTextEmpty
		}
		return r.PostFormValue("text"), ""
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", MsgNoFileProvided
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", MsgNoFileProvided
	}
	defer file.Close()

	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", MsgNoFileProvided
	}
	if len(data) > maxUploadBytes {
		return "", MsgFileTooLarge
	}
	if !utf8.Valid(data) {
		return "", MsgFileNotText
	}
	return string(data), ""
}

// loadOwnedOrder はIDをパースし、現在のユーザーが所有する注文を取得する。
// 不正なID・他人の注文・存在しない注文はいずれも404として扱う。
func (h *AnalyzerHandler) loadOwnedOrder(w http.ResponseWriter, r *http.Request, rawID string) (*model.Order, bool) {
	userID, err := auth.RequireAuthenticated(auth.CurrentUserFromContext(r.Context()))
	if err != nil {
		h.renderer.RenderError(w, r, http.StatusUnauthorized, MsgSignInRequired)
		return nil, false
	}

	orderID, ok := model.ParseID[model.OrderEntity](rawID)
	if !ok {
		h.renderer.RenderError(w, r, http.StatusNotFound, MsgOrderNotFound)
		return nil, false
	}

	order, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		h.logger.Error("注文の取得に失敗しました",
			slog.String("error", err.Error()),
			slog.Int64("order_id", orderID.Int64()),
		)
		h.renderer.RenderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return nil, false
	}
	if order == nil || order.UserID != userID {
		h.renderer.RenderError(w, r, http.StatusNotFound, MsgOrderNotFound)
		return nil, false
	}
	return order, true
}
