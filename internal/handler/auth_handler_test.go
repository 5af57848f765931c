package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
)

// mockAuthService はAuthServiceInterfaceのモック。
type mockAuthService struct {
	requestSignInFn func(ctx context.Context, address string) error
	verifySignInFn  func(ctx context.Context, token string) (model.UserID, error)
}

func (m *mockAuthService) RequestSignIn(ctx context.Context, address string) error {
	if m.requestSignInFn != nil {
		return m.requestSignInFn(ctx, address)
	}
	return nil
}

func (m *mockAuthService) VerifySignIn(ctx context.Context, token string) (model.UserID, error) {
	if m.verifySignInFn != nil {
		return m.verifySignInFn(ctx, token)
	}
	return model.UserID(0), model.NewUnauthorizedError("unknown token")
}

// mockSignInRecorder はSignInRecorderのモック。
type mockSignInRecorder struct {
	signIns     int
	linksIssued int
}

func (m *mockSignInRecorder) RecordSignIn()         { m.signIns++ }
func (m *mockSignInRecorder) RecordMagicLinkIssued() { m.linksIssued++ }

func TestAuthHandler_ShowSignIn_RendersForm(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRenderer(t), discardLogger, nil)

	req, _ := testRequest(http.MethodGet, "/sign_in", nil)
	w := httptest.NewRecorder()
	h.ShowSignIn(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `name="email"`) {
		t.Error("sign-in form should contain an email field")
	}
}

func TestAuthHandler_RequestSignIn_SendsLinkAndRedirects(t *testing.T) {
	var requested string
	service := &mockAuthService{
		requestSignInFn: func(ctx context.Context, address string) error {
			requested = address
			return nil
		},
	}
	metrics := &mockSignInRecorder{}
	h := NewAuthHandler(service, newTestRenderer(t), discardLogger, metrics)

	req, sess := testRequest(http.MethodPost, "/forms/sign_in", url.Values{"email": {"alice@example.com"}})
	w := httptest.NewRecorder()
	h.RequestSignIn(w, req)

	if requested != "alice@example.com" {
		t.Errorf("requested address = %q", requested)
	}
	assertRedirectWithFlash(t, w, sess, middleware.SignInPath, session.FlashSuccess, MsgMagicLinkSent)
	if metrics.linksIssued != 1 {
		t.Errorf("links issued = %d, want 1", metrics.linksIssued)
	}
}

func TestAuthHandler_RequestSignIn_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		serviceErr  error
		wantMessage string
	}{
		{name: "invalid email", serviceErr: model.NewInvalidInputError("bad address"), wantMessage: MsgEmailInvalid},
		{name: "email send failure", serviceErr: fmt.Errorf("%w: smtp timeout", auth.ErrEmailSend), wantMessage: MsgEmailSendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockAuthService{
				requestSignInFn: func(ctx context.Context, address string) error {
					return tt.serviceErr
				},
			}
			h := NewAuthHandler(service, newTestRenderer(t), discardLogger, nil)

			req, sess := testRequest(http.MethodPost, "/forms/sign_in", url.Values{"email": {"x"}})
			w := httptest.NewRecorder()
			h.RequestSignIn(w, req)

			assertRedirectWithFlash(t, w, sess, middleware.SignInPath, session.FlashError, tt.wantMessage)
		})
	}
}

func TestAuthHandler_RequestSignIn_UnexpectedErrorRenders500(t *testing.T) {
	service := &mockAuthService{
		requestSignInFn: func(ctx context.Context, address string) error {
			return errors.New("db down")
		},
	}
	h := NewAuthHandler(service, newTestRenderer(t), discardLogger, nil)

	req, _ := testRequest(http.MethodPost, "/forms/sign_in", url.Values{"email": {"alice@example.com"}})
	w := httptest.NewRecorder()
	h.RequestSignIn(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAuthHandler_Verify_SignsInAndRedirects(t *testing.T) {
	service := &mockAuthService{
		verifySignInFn: func(ctx context.Context, token string) (model.UserID, error) {
			if token != "valid-token" {
				t.Errorf("token = %q", token)
			}
			return model.IDFromDB[model.UserEntity](7), nil
		},
	}
	metrics := &mockSignInRecorder{}
	h := NewAuthHandler(service, newTestRenderer(t), discardLogger, metrics)

	req, sess := testRequest(http.MethodGet, "/actions/auth/verify?token=valid-token", nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	assertRedirectWithFlash(t, w, sess, "/dashboard", session.FlashSuccess, MsgSignedIn)

	userID, ok, err := sess.UserID()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || userID.Int64() != 7 {
		t.Errorf("session user = %v (present=%t), want 7", userID, ok)
	}
	if metrics.signIns != 1 {
		t.Errorf("sign-ins recorded = %d, want 1", metrics.signIns)
	}
}

func TestAuthHandler_Verify_InvalidTokenRedirectsWithError(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRenderer(t), discardLogger, nil)

	req, sess := testRequest(http.MethodGet, "/actions/auth/verify?token=bogus", nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	assertRedirectWithFlash(t, w, sess, middleware.SignInPath, session.FlashError, MsgMagicLinkInvalid)

	if _, ok, _ := sess.UserID(); ok {
		t.Error("session must not carry a user after a failed verification")
	}
}

func TestAuthHandler_Verify_BackendFailureRenders500(t *testing.T) {
	service := &mockAuthService{
		verifySignInFn: func(ctx context.Context, token string) (model.UserID, error) {
			return model.UserID(0), errors.New("db down")
		},
	}
	h := NewAuthHandler(service, newTestRenderer(t), discardLogger, nil)

	req, _ := testRequest(http.MethodGet, "/actions/auth/verify?token=t", nil)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAuthHandler_SignOut_ClearsUserAndRedirects(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRenderer(t), discardLogger, nil)

	req, sess := testRequest(http.MethodPost, "/actions/sign_out", nil)
	if err := sess.SetUserID(model.IDFromDB[model.UserEntity](7)); err != nil {
		t.Fatal(err)
	}
	req = asUser(req, 7, "alice@example.com", false)

	w := httptest.NewRecorder()
	h.SignOut(w, req)

	assertRedirectWithFlash(t, w, sess, "/", session.FlashInfo, MsgSignedOut)

	if _, ok, _ := sess.UserID(); ok {
		t.Error("session must not carry a user after sign-out")
	}
}
