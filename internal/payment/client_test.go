package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(serverURL string) *Client {
	return NewClient(
		&http.Client{Timeout: 5 * time.Second},
		discardLogger,
		serverURL,
		"sk-test-secret",
	)
}

// TestConfirmPayment_Paid は支払い完了レスポンスがtrueとして返ることを検証する。
func TestConfirmPayment_Paid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	paid, err := client.ConfirmPayment(context.Background(), "ord-123", 250)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !paid {
		t.Error("expected paid = true")
	}
}

// TestConfirmPayment_Unpaid は未払いレスポンスがfalseとして返ることを検証する。
func TestConfirmPayment_Unpaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": false}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	paid, err := client.ConfirmPayment(context.Background(), "ord-123", 250)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if paid {
		t.Error("expected paid = false")
	}
}

// TestConfirmPayment_SendsOrderDetails はリクエストボディと認証ヘッダーを検証する。
func TestConfirmPayment_SendsOrderDetails(t *testing.T) {
	var gotMethod, gotAuth, gotContentType string
	var gotBody confirmRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Write([]byte(`{"paid": true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.ConfirmPayment(context.Background(), "ord-456", 1200); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotAuth != "Bearer sk-test-secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer sk-test-secret")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody.OrderNumber != "ord-456" {
		t.Errorf("order_number = %q, want %q", gotBody.OrderNumber, "ord-456")
	}
	if gotBody.Amount != 1200 {
		t.Errorf("amount = %d, want 1200", gotBody.Amount)
	}
}

// TestConfirmPayment_ErrorStatus はプロバイダのエラーステータスがエラーになることを検証する。
func TestConfirmPayment_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"400 Bad Request", http.StatusBadRequest},
		{"401 Unauthorized", http.StatusUnauthorized},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			paid, err := client.ConfirmPayment(context.Background(), "ord-123", 250)
			if err == nil {
				t.Fatal("expected error for non-200 status, got nil")
			}
			if paid {
				t.Error("paid should be false on error")
			}
		})
	}
}

// TestConfirmPayment_InvalidJSON は不正なレスポンスボディがエラーになることを検証する。
func TestConfirmPayment_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.ConfirmPayment(context.Background(), "ord-123", 250); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// TestConfirmPayment_ConnectionError は接続失敗がエラーになることを検証する。
func TestConfirmPayment_ConnectionError(t *testing.T) {
	// 閉じたサーバーのURLを使用して接続エラーを発生させる
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := newTestClient(serverURL)
	if _, err := client.ConfirmPayment(context.Background(), "ord-123", 250); err == nil {
		t.Fatal("expected error for connection failure, got nil")
	}
}

// TestConfirmPayment_ContextCancellation はコンテキストキャンセルが反映されることを検証する。
func TestConfirmPayment_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.Write([]byte(`{"paid": true}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	if _, err := client.ConfirmPayment(ctx, "ord-123", 250); err == nil {
		t.Fatal("expected error for canceled context, got nil")
	}
}

// ClientはConfirmerインターフェースを満たすことを検証
func TestClient_ImplementsConfirmer(t *testing.T) {
	var _ Confirmer = (*Client)(nil)
}
