// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        UserID
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
}

// UserInfo はセッション解決時に参照するユーザーの最小プロフィール。
// Current-Userリゾルバーが毎リクエスト取得するため、
// メール・ロールの変更は次のリクエストから反映される。
type UserInfo struct {
	Email   string
	IsAdmin bool
}

// MagicLink はサインイン用のワンタイムトークンを表す。
type MagicLink struct {
	Token     string
	UserID    UserID
	ExpiresAt time.Time
	CreatedAt time.Time
}
