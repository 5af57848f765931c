// Package email はメール送信の契約を定義する。
// 実際の配送基盤（SMTP等）は外部コラボレーターであり、
// このパッケージは契約と開発用実装のみを持つ。
package email

import (
	"context"
	"log/slog"
)

// Sender はメール送信の契約。
type Sender interface {
	// SendMagicLink はサインイン用の検証URLを指定アドレスへ送信する。
	SendMagicLink(ctx context.Context, to, verifyURL string) error

	// SendContactInquiry は問い合わせメッセージを運営宛に送信する。
	// fromは利用者の返信先アドレス。
	SendContactInquiry(ctx context.Context, from, message string) error
}

// LogSender はメールを送信せずログに出力する開発用Sender。
type LogSender struct{}

// NewLogSender はLogSenderを生成する。
func NewLogSender() *LogSender {
	return &LogSender{}
}

// SendMagicLink は検証URLをログに記録する。
func (s *LogSender) SendMagicLink(ctx context.Context, to, verifyURL string) error {
	slog.Info("magic link email (dev sender)",
		slog.String("to", to),
		slog.String("verify_url", verifyURL),
	)
	return nil
}

// SendContactInquiry は問い合わせ内容をログに記録する。
func (s *LogSender) SendContactInquiry(ctx context.Context, from, message string) error {
	slog.Info("contact inquiry (dev sender)",
		slog.String("from", from),
		slog.String("message", message),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*LogSender)(nil)
