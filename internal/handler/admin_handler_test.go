package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/session"
)

// mockAdminUserRepo はAdminUserRepositoryInterfaceのモック。
type mockAdminUserRepo struct {
	findByIDFn    func(ctx context.Context, id model.UserID) (*model.User, error)
	listFn        func(ctx context.Context, limit, offset int) ([]*model.User, error)
	countFn       func(ctx context.Context) (int, error)
	grantAdminFn  func(ctx context.Context, id model.UserID) error
	revokeAdminFn func(ctx context.Context, id model.UserID) error
}

func (m *mockAdminUserRepo) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAdminUserRepo) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockAdminUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockAdminUserRepo) GrantAdmin(ctx context.Context, id model.UserID) error {
	if m.grantAdminFn != nil {
		return m.grantAdminFn(ctx, id)
	}
	return nil
}

func (m *mockAdminUserRepo) RevokeAdmin(ctx context.Context, id model.UserID) error {
	if m.revokeAdminFn != nil {
		return m.revokeAdminFn(ctx, id)
	}
	return nil
}

// mockAdminOrderRepo はAdminOrderRepositoryInterfaceのモック。
type mockAdminOrderRepo struct {
	listRecentFn        func(ctx context.Context, limit, offset int) ([]*model.Order, error)
	findByOrderNumberFn func(ctx context.Context, orderNumber string) (*model.Order, error)
	countByStatusFn     func(ctx context.Context, status model.OrderStatus) (int, error)
}

func (m *mockAdminOrderRepo) ListRecent(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockAdminOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	if m.findByOrderNumberFn != nil {
		return m.findByOrderNumberFn(ctx, orderNumber)
	}
	return nil, nil
}

func (m *mockAdminOrderRepo) CountByStatus(ctx context.Context, status model.OrderStatus) (int, error) {
	if m.countByStatusFn != nil {
		return m.countByStatusFn(ctx, status)
	}
	return 0, nil
}

func newTestAdminHandler(t *testing.T, users *mockAdminUserRepo, orders *mockAdminOrderRepo) *AdminHandler {
	t.Helper()
	return NewAdminHandler(users, orders, newTestRenderer(t), discardLogger)
}

// adminRequest は管理者として認証済みのリクエストを生成する。
func adminRequest(method, target string) (*http.Request, *session.Session) {
	req, sess := testRequest(method, target, nil)
	return asUser(req, 1, "admin@example.com", true), sess
}

func TestAdminHandler_Dashboard_ShowsCounts(t *testing.T) {
	users := &mockAdminUserRepo{
		countFn: func(ctx context.Context) (int, error) { return 42, nil },
	}
	orders := &mockAdminOrderRepo{
		countByStatusFn: func(ctx context.Context, status model.OrderStatus) (int, error) {
			switch status {
			case model.OrderStatusPending:
				return 5, nil
			case model.OrderStatusPaid:
				return 17, nil
			}
			return 0, nil
		},
	}
	h := newTestAdminHandler(t, users, orders)

	req, _ := adminRequest(http.MethodGet, "/admin")
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"42", "5", "17"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard should show count %s", want)
		}
	}
}

func TestAdminHandler_Dashboard_BackendFailureRenders500(t *testing.T) {
	users := &mockAdminUserRepo{
		countFn: func(ctx context.Context) (int, error) { return 0, errors.New("db down") },
	}
	h := newTestAdminHandler(t, users, &mockAdminOrderRepo{})

	req, _ := adminRequest(http.MethodGet, "/admin")
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAdminHandler_ListUsers_PassesPaging(t *testing.T) {
	var gotLimit, gotOffset int
	users := &mockAdminUserRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]*model.User, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.User{
				{ID: model.IDFromDB[model.UserEntity](2), Email: "bob@example.com"},
			}, nil
		},
	}
	h := newTestAdminHandler(t, users, &mockAdminOrderRepo{})

	req, _ := adminRequest(http.MethodGet, "/admin/users?page=2")
	w := httptest.NewRecorder()
	h.ListUsers(w, req)

	if gotLimit != adminPageSize || gotOffset != adminPageSize {
		t.Errorf("paging = (%d, %d), want (%d, %d)", gotLimit, gotOffset, adminPageSize, adminPageSize)
	}
	if !strings.Contains(w.Body.String(), "bob@example.com") {
		t.Error("user list should show emails")
	}
}

func TestAdminHandler_ShowUser_UnknownIDReturns404(t *testing.T) {
	h := newTestAdminHandler(t, &mockAdminUserRepo{}, &mockAdminOrderRepo{})

	req, _ := adminRequest(http.MethodGet, "/admin/users/999")
	req = withURLParam(req, "user_id", "999")
	w := httptest.NewRecorder()
	h.ShowUser(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAdminHandler_GrantRole_Success(t *testing.T) {
	var granted model.UserID
	users := &mockAdminUserRepo{
		findByIDFn: func(ctx context.Context, id model.UserID) (*model.User, error) {
			return &model.User{ID: id, Email: "bob@example.com"}, nil
		},
		grantAdminFn: func(ctx context.Context, id model.UserID) error {
			granted = id
			return nil
		},
	}
	h := newTestAdminHandler(t, users, &mockAdminOrderRepo{})

	req, sess := adminRequest(http.MethodPost, "/forms/admin/users/2/grant-role")
	req = withURLParam(req, "user_id", "2")
	w := httptest.NewRecorder()
	h.GrantRole(w, req)

	if granted.Int64() != 2 {
		t.Errorf("granted id = %d, want 2", granted.Int64())
	}
	assertRedirectWithFlash(t, w, sess, "/admin/users/2", session.FlashSuccess, MsgRoleGranted)
}

func TestAdminHandler_RevokeRole_Success(t *testing.T) {
	var revoked model.UserID
	users := &mockAdminUserRepo{
		findByIDFn: func(ctx context.Context, id model.UserID) (*model.User, error) {
			return &model.User{ID: id, Email: "bob@example.com", IsAdmin: true}, nil
		},
		revokeAdminFn: func(ctx context.Context, id model.UserID) error {
			revoked = id
			return nil
		},
	}
	h := newTestAdminHandler(t, users, &mockAdminOrderRepo{})

	req, sess := adminRequest(http.MethodPost, "/actions/admin/users/2/revoke-role")
	req = withURLParam(req, "user_id", "2")
	w := httptest.NewRecorder()
	h.RevokeRole(w, req)

	if revoked.Int64() != 2 {
		t.Errorf("revoked id = %d, want 2", revoked.Int64())
	}
	assertRedirectWithFlash(t, w, sess, "/admin/users/2", session.FlashSuccess, MsgRoleRevoked)
}

// 最後の管理者の閉め出しを防ぐため、自分自身の剥奪は拒否する
func TestAdminHandler_RevokeRole_SelfRevokeDenied(t *testing.T) {
	users := &mockAdminUserRepo{
		findByIDFn: func(ctx context.Context, id model.UserID) (*model.User, error) {
			return &model.User{ID: id, Email: "admin@example.com", IsAdmin: true}, nil
		},
		revokeAdminFn: func(ctx context.Context, id model.UserID) error {
			t.Fatal("self revoke must not reach the repository")
			return nil
		},
	}
	h := newTestAdminHandler(t, users, &mockAdminOrderRepo{})

	// adminRequestはユーザーID 1として認証する
	req, sess := adminRequest(http.MethodPost, "/actions/admin/users/1/revoke-role")
	req = withURLParam(req, "user_id", "1")
	w := httptest.NewRecorder()
	h.RevokeRole(w, req)

	assertRedirectWithFlash(t, w, sess, "/admin/users/1", session.FlashError, MsgSelfRevokeDenied)
}

func TestAdminHandler_ListOrders_ShowsRecentOrders(t *testing.T) {
	orders := &mockAdminOrderRepo{
		listRecentFn: func(ctx context.Context, limit, offset int) ([]*model.Order, error) {
			return []*model.Order{
				{
					ID:          model.IDFromDB[model.OrderEntity](10),
					UserID:      model.IDFromDB[model.UserEntity](7),
					OrderNumber: "ord-123",
					Amount:      250,
					Status:      model.OrderStatusPaid,
				},
			}, nil
		},
	}
	h := newTestAdminHandler(t, &mockAdminUserRepo{}, orders)

	req, _ := adminRequest(http.MethodGet, "/admin/orders")
	w := httptest.NewRecorder()
	h.ListOrders(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ord-123") {
		t.Error("order list should show order numbers")
	}
}

func TestAdminHandler_ShowOrder_ShowsDetail(t *testing.T) {
	orders := &mockAdminOrderRepo{
		findByOrderNumberFn: func(ctx context.Context, orderNumber string) (*model.Order, error) {
			if orderNumber != "ord-123" {
				return nil, nil
			}
			return &model.Order{
				ID:          model.IDFromDB[model.OrderEntity](10),
				UserID:      model.IDFromDB[model.UserEntity](7),
				OrderNumber: "ord-123",
				CharCount:   250,
				Amount:      250,
				Status:      model.OrderStatusPending,
			}, nil
		},
	}
	h := newTestAdminHandler(t, &mockAdminUserRepo{}, orders)

	req, _ := adminRequest(http.MethodGet, "/admin/orders/ord-123")
	req = withURLParam(req, "order_number", "ord-123")
	w := httptest.NewRecorder()
	h.ShowOrder(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"ord-123", "250", "pending", "/admin/users/7"} {
		if !strings.Contains(body, want) {
			t.Errorf("order detail should contain %q", want)
		}
	}
}

func TestAdminHandler_ShowOrder_UnknownNumberReturns404(t *testing.T) {
	h := newTestAdminHandler(t, &mockAdminUserRepo{}, &mockAdminOrderRepo{})

	req, _ := adminRequest(http.MethodGet, "/admin/orders/ord-missing")
	req = withURLParam(req, "order_number", "ord-missing")
	w := httptest.NewRecorder()
	h.ShowOrder(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
