// Package payment は外部決済プロバイダ連携機能を提供する。
// 決済確認APIの呼び出しを含む。
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Confirmer は決済確認のインターフェース。
// テスト時にモックに差し替え可能。
type Confirmer interface {
	// ConfirmPayment は注文番号と金額を決済プロバイダに照会し、
	// 支払いが完了しているかどうかを返す。
	// 照会自体に失敗した場合はエラーを返す（呼び出し元が未確定として扱う）。
	ConfirmPayment(ctx context.Context, orderNumber string, amount int64) (bool, error)
}

// Client は決済プロバイダAPIのクライアント。
// 確認エンドポイントを使用して注文の支払い状況を照会する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	secretKey  string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, secretKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		secretKey:  secretKey,
	}
}

// confirmRequest は決済確認APIへのリクエストボディ。
type confirmRequest struct {
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
}

// confirmResponse は決済確認APIのレスポンスボディ。
type confirmResponse struct {
	Paid bool `json:"paid"`
}

// ConfirmPayment は注文番号と金額を決済プロバイダに照会し、支払い完了かどうかを返す。
func (c *Client) ConfirmPayment(ctx context.Context, orderNumber string, amount int64) (bool, error) {
	// リクエストボディ構築
	payload, err := json.Marshal(confirmRequest{
		OrderNumber: orderNumber,
		Amount:      amount,
	})
	if err != nil {
		return false, fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	// HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("決済確認APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("order_number", orderNumber),
		)
		return false, err
	}
	defer resp.Body.Close()

	// HTTPステータスチェック
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("決済確認APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("order_number", orderNumber),
		)
		return false, fmt.Errorf("決済確認APIがステータス %d を返しました", resp.StatusCode)
	}

	// レスポンスボディ読み取り
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// JSONデコード
	var result confirmResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("決済確認APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return result.Paid, nil
}
