// Package model はドメインモデルを定義する。
package model

import "time"

// OrderStatus はテキスト解析注文の決済状態を表す。
type OrderStatus string

const (
	// OrderStatusPending は未決済の注文を示す。
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid は決済確認済みの注文を示す。
	OrderStatusPaid OrderStatus = "paid"
)

// 料金計算の定数。1文字1セント、最低100セント。
const (
	PricePerCharacter  = 1
	MinimumOrderAmount = 100
)

// Order はテキスト解析の注文を表す。
// OrderNumberは外部決済プロバイダーに渡す公開識別子で、
// 内部IDとは独立したUUID。
type Order struct {
	ID          OrderID
	UserID      UserID
	OrderNumber string
	CharCount   int
	Amount      int // 金額（セント）
	Status      OrderStatus
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// QuoteAmount は文字数から注文金額を算出する。
// 最低注文金額を下回る場合は最低金額に切り上げる。
func QuoteAmount(charCount int) int {
	amount := charCount * PricePerCharacter
	if amount < MinimumOrderAmount {
		return MinimumOrderAmount
	}
	return amount
}
