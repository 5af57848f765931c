package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
)

// discardLogger はテスト用の出力を捨てるロガー。
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestRenderer はテスト用のRendererを生成する。
func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	renderer, err := view.NewRenderer(discardLogger, "Textdesk")
	if err != nil {
		t.Fatalf("failed to build renderer: %v", err)
	}
	return renderer
}

// testRequest はセッションとゲストの認証状態を持つリクエストを生成する。
func testRequest(method, target string, form url.Values) (*http.Request, *session.Session) {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	sess := session.NewForTest()
	ctx := session.ContextWithSession(req.Context(), sess)
	ctx = auth.ContextWithCurrentUser(ctx, auth.Guest{})
	return req.WithContext(ctx), sess
}

// asUser はリクエストの認証状態を指定ユーザーに差し替える。
func asUser(req *http.Request, userID int64, email string, isAdmin bool) *http.Request {
	ctx := auth.ContextWithCurrentUser(req.Context(), &auth.Authenticated{
		UserID:  model.IDFromDB[model.UserEntity](userID),
		Email:   email,
		IsAdmin: isAdmin,
	})
	return req.WithContext(ctx)
}

// withURLParam はchiのルートパラメータをリクエストに注入する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// assertRedirectWithFlash は303リダイレクトとセッション上のフラッシュを検証する。
func assertRedirectWithFlash(t *testing.T, w *httptest.ResponseRecorder, sess *session.Session, wantPath string, wantKind session.FlashKind, wantMessage string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if got := w.Header().Get("Location"); got != wantPath {
		t.Errorf("Location = %q, want %q", got, wantPath)
	}
	flash, err := sess.TakeFlash()
	if err != nil {
		t.Fatal(err)
	}
	if flash == nil {
		t.Fatal("no flash message stored")
	}
	if flash.Kind != wantKind || flash.Message != wantMessage {
		t.Errorf("flash = %+v, want kind=%s message=%q", flash, wantKind, wantMessage)
	}
}
