// Package model はドメインモデルを定義する。
package model

import "time"

// Todo はユーザーのTodo項目を表す。
type Todo struct {
	ID        TodoID
	UserID    UserID
	Title     string
	Completed bool
	CreatedAt time.Time
}
