package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
)

// mockUserFinder はUserInfoFinderのモック。
type mockUserFinder struct {
	getUserInfoFn func(ctx context.Context, id model.UserID) (*model.UserInfo, error)
}

func (m *mockUserFinder) GetUserInfo(ctx context.Context, id model.UserID) (*model.UserInfo, error) {
	if m.getUserInfoFn != nil {
		return m.getUserInfoFn(ctx, id)
	}
	return nil, nil
}

// requestWithSession はセッションを注入したリクエストを生成する。
func requestWithSession(sess *session.Session) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	return req.WithContext(session.ContextWithSession(req.Context(), sess))
}

func TestCurrentUserMiddleware_NoUserIDResolvesGuest(t *testing.T) {
	mw := NewCurrentUserMiddleware(&mockUserFinder{})

	var resolved auth.CurrentUser
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = auth.CurrentUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), requestWithSession(session.NewForTest()))

	if _, ok := resolved.(auth.Guest); !ok {
		t.Errorf("resolved = %T, want Guest", resolved)
	}
}

func TestCurrentUserMiddleware_ResolvesAuthenticated(t *testing.T) {
	users := &mockUserFinder{
		getUserInfoFn: func(ctx context.Context, id model.UserID) (*model.UserInfo, error) {
			return &model.UserInfo{Email: "alice@example.com", IsAdmin: true}, nil
		},
	}
	mw := NewCurrentUserMiddleware(users)

	sess := session.NewForTest()
	if err := sess.SetUserID(model.IDFromDB[model.UserEntity](42)); err != nil {
		t.Fatal(err)
	}

	var resolved auth.CurrentUser
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = auth.CurrentUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), requestWithSession(sess))

	authed, ok := resolved.(*auth.Authenticated)
	if !ok {
		t.Fatalf("resolved = %T, want *Authenticated", resolved)
	}
	if authed.UserID.Int64() != 42 || authed.Email != "alice@example.com" || !authed.IsAdmin {
		t.Errorf("authenticated = %+v", authed)
	}
}

// 削除済みユーザーを指す古いセッションはゲストにフォールバックする
func TestCurrentUserMiddleware_MissingUserFallsBackToGuest(t *testing.T) {
	mw := NewCurrentUserMiddleware(&mockUserFinder{}) // GetUserInfoはnilを返す

	sess := session.NewForTest()
	if err := sess.SetUserID(model.IDFromDB[model.UserEntity](404)); err != nil {
		t.Fatal(err)
	}

	var resolved auth.CurrentUser
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = auth.CurrentUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession(sess))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if _, ok := resolved.(auth.Guest); !ok {
		t.Errorf("resolved = %T, want Guest", resolved)
	}
}

// 削除済みユーザーを指すセッションはレコードごと破棄され、Cookieも失効する
func TestCurrentUserMiddleware_MissingUserDestroysSession(t *testing.T) {
	store := session.NewMemoryStore()
	manager := session.NewManager(store, session.ManagerConfig{TTL: time.Hour})

	// まず認証済みセッションを仕込む
	seed := manager.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := session.FromContext(r.Context())
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.SetUserID(model.IDFromDB[model.UserEntity](404)); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	seed.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie issued")
	}
	if rec, _ := store.Load(context.Background(), cookie.Value); rec == nil {
		t.Fatal("session record should exist after seeding")
	}

	// ユーザーが見つからないままセッション付きでアクセスする
	chain := manager.Middleware()(NewCurrentUserMiddleware(&mockUserFinder{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if rec, _ := store.Load(context.Background(), cookie.Value); rec != nil {
		t.Error("stale session record should be deleted")
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge >= 0 {
			t.Errorf("session cookie MaxAge = %d, want expiry (negative)", c.MaxAge)
		}
	}
}

// ルックアップ障害はゲスト降格せず500を返す
func TestCurrentUserMiddleware_LookupFailureIsHardError(t *testing.T) {
	users := &mockUserFinder{
		getUserInfoFn: func(ctx context.Context, id model.UserID) (*model.UserInfo, error) {
			return nil, errors.New("db down")
		},
	}
	mw := NewCurrentUserMiddleware(users)

	sess := session.NewForTest()
	if err := sess.SetUserID(model.IDFromDB[model.UserEntity](1)); err != nil {
		t.Fatal(err)
	}

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession(sess))

	if called {
		t.Error("handler must not run on lookup failure")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCurrentUserMiddleware_SessionMissingIsHardError(t *testing.T) {
	mw := NewCurrentUserMiddleware(&mockUserFinder{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without session middleware")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// フラッシュは取り出されてコンテキストに移り、セッションからは消える
func TestCurrentUserMiddleware_MovesFlashToContext(t *testing.T) {
	mw := NewCurrentUserMiddleware(&mockUserFinder{})

	sess := session.NewForTest()
	if err := sess.SetFlash(session.NewSuccessFlash("welcome")); err != nil {
		t.Fatal(err)
	}

	var fromCtx *session.Flash
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = session.FlashFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), requestWithSession(sess))

	if fromCtx == nil || fromCtx.Message != "welcome" {
		t.Errorf("flash = %+v, want welcome", fromCtx)
	}

	remaining, err := sess.TakeFlash()
	if err != nil {
		t.Fatal(err)
	}
	if remaining != nil {
		t.Error("flash should be removed from the session after resolution")
	}
}
