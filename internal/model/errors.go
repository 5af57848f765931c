// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"net/http"
)

// ErrorKind はアプリケーションエラーの分類。
type ErrorKind string

const (
	// KindNotFound はエンティティが存在しないことを示す。
	KindNotFound ErrorKind = "not_found"
	// KindUnauthorized は認証されていないことを示す。
	// 保護ルートにゲストが到達した場合もこれに含まれる。
	KindUnauthorized ErrorKind = "unauthorized"
	// KindForbidden は認証済みだが権限が不足していることを示す。
	KindForbidden ErrorKind = "forbidden"
	// KindInvalidInput は識別子やフォームデータが不正であることを示す。
	KindInvalidInput ErrorKind = "invalid_input"
	// KindInternal は永続化・エンコードなどのバックエンド障害を示す。
	// ユーザーには汎用エラーページのみを返し、詳細はサーバーログに記録する。
	KindInternal ErrorKind = "internal"
)

// AppError はDB障害と意味的エラー（not found、unauthorized等）を区別する。
type AppError struct {
	Kind    ErrorKind
	Message string
	// Err は内部障害の原因。KindInternal以外ではnil。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError はエンティティ未検出エラーを生成する。
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NewInvalidInputError は入力不正エラーを生成する。
func NewInvalidInputError(message string) *AppError {
	return &AppError{Kind: KindInvalidInput, Message: message}
}

// NewInternalError はバックエンド障害をラップする。
func NewInternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf はエラーの分類を返す。AppErrorでない場合はKindInternalとして扱う。
func KindOf(err error) ErrorKind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind はエラーが指定の分類かどうかを判定する。
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
