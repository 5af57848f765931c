// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strconv"
)

// EntityTag はID型が属するエンティティを表す型レベルのタグ。
// タグ型ごとに別のID型がインスタンス化されるため、
// 基底の値が同じint64でもエンティティ間でIDを取り違えることはできない。
type EntityTag interface {
	entityName() string
}

// UserEntity はユーザーIDのタグ。
type UserEntity struct{}

func (UserEntity) entityName() string { return "user" }

// TodoEntity はTodo IDのタグ。
type TodoEntity struct{}

func (TodoEntity) entityName() string { return "todo" }

// OrderEntity は注文IDのタグ。
type OrderEntity struct{}

func (OrderEntity) entityName() string { return "order" }

// ID はデータベースキーの型安全なラッパー。
// 生成経路は2つに限定する:
//   - IDFromDB: データベースまたは検証済みセッション値から読み取る場合
//   - ParseID: HTTP境界でパス・クエリ・フォームパラメータを受け取る場合
//
// 裸のint64からの暗黙変換は提供しない。
type ID[E EntityTag] int64

// IDFromDB はデータベースが生成した値からIDを生成する。
// 永続化層または検証済みセッション値の読み取り時のみ使用すること。
func IDFromDB[E EntityTag](raw int64) ID[E] {
	return ID[E](raw)
}

// ParseID はテキスト形式のIDを検証付きでパースする。
// 数値として不正な場合、および正の整数でない場合はfalseを返す。
func ParseID[E EntityTag](s string) (ID[E], bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return ID[E](v), true
}

// ParseIDOrNotFound はParseIDの失敗をNotFoundエラーに変換する。
// 存在しえないIDでのリソース参照を404として扱うハンドラー用。
func ParseIDOrNotFound[E EntityTag](s string) (ID[E], error) {
	id, ok := ParseID[E](s)
	if !ok {
		var tag E
		return 0, NewNotFoundError(fmt.Sprintf("%s not found", tag.entityName()))
	}
	return id, nil
}

// ParseIDOrInvalid はParseIDの失敗をInvalidInputエラーに変換する。
func ParseIDOrInvalid[E EntityTag](s string) (ID[E], error) {
	id, ok := ParseID[E](s)
	if !ok {
		var tag E
		return 0, NewInvalidInputError(fmt.Sprintf("invalid %s id: %q", tag.entityName(), s))
	}
	return id, nil
}

// Int64 はデータベース操作用に内部値を返す。
func (id ID[E]) Int64() int64 {
	return int64(id)
}

// String はfmt.Stringerを実装する。
func (id ID[E]) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UserID はユーザーの型安全な識別子。
type UserID = ID[UserEntity]

// TodoID はTodoの型安全な識別子。
type TodoID = ID[TodoEntity]

// OrderID は注文の型安全な識別子。
type OrderID = ID[OrderEntity]
