// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はユーザーが入力したテキスト（Todoタイトルや
// 解析対象テキストなど）をサニタイズし、XSS攻撃などのセキュリティ
// リスクからユーザーを保護する。bluemondayライブラリを使用した
// 許可リストベースのポリシーで、HTMLタグを全て除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// フォーム入力の保存前および画面表示前に使用される。
type InputSanitizerService interface {
	// SanitizeText はプレーンテキスト入力からHTMLタグを全て除去して返す。
	// script, iframe, styleタグおよびon*イベント属性を含む全てのマークアップが対象。
	// 前後の空白は除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyを使用し、HTMLタグを一切許可しない。
// Todoタイトルや解析テキストはプレーンテキストとして扱うため、
// マークアップが必要になることはない。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はプレーンテキスト入力からHTMLタグを全て除去して返す。
func (s *inputSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
