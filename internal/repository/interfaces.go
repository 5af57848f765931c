// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/textdesk/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// GetUserInfo はセッション解決用の最小プロフィールを取得する。
	// ユーザーが存在しない場合はnilを返す（エラーにしない）。
	GetUserInfo(ctx context.Context, id model.UserID) (*model.UserInfo, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create は新規ユーザーを作成し、データベースが採番したIDを返す。
	Create(ctx context.Context, email string) (model.UserID, error)

	// List はユーザー一覧をページ指定で返す。
	List(ctx context.Context, limit, offset int) ([]*model.User, error)

	// Count はユーザーの総数を返す。
	Count(ctx context.Context) (int, error)

	// GrantAdmin は管理者ロールを付与する。冪等。
	GrantAdmin(ctx context.Context, id model.UserID) error

	// RevokeAdmin は管理者ロールを剥奪する。冪等。
	RevokeAdmin(ctx context.Context, id model.UserID) error
}

// MagicLinkRepository はサインイン用ワンタイムトークンの永続化インターフェース。
type MagicLinkRepository interface {
	// Create はマジックリンクを保存する。
	Create(ctx context.Context, link *model.MagicLink) error

	// Consume はトークンを検証して削除する。
	// 未知のトークンと期限切れトークンはどちらも(0, false, nil)を返す。
	// 期限比較はデータベースの現在時刻で行う。
	Consume(ctx context.Context, token string) (model.UserID, bool, error)

	// DeleteExpired は期限切れトークンを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TodoRepository はTodoデータの永続化インターフェース。
type TodoRepository interface {
	// ListByUser は指定ユーザーのTodo一覧を作成日時順で返す。
	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Todo, error)

	// Create は新規Todoを作成し、採番されたIDを返す。
	Create(ctx context.Context, userID model.UserID, title string) (model.TodoID, error)

	// Toggle は完了状態を反転する。
	// 所有者が一致しない、またはTodoが存在しない場合はfalseを返す。
	Toggle(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error)

	// Delete はTodoを削除する。所有者チェック付き。削除できた場合はtrue。
	Delete(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error)
}

// OrderRepository はテキスト解析注文の永続化インターフェース。
type OrderRepository interface {
	// Create は未決済の注文を作成し、採番されたIDを返す。
	Create(ctx context.Context, order *model.Order) (model.OrderID, error)

	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.OrderID) (*model.Order, error)

	// FindByOrderNumber は公開注文番号で注文を検索する。見つからない場合はnilを返す。
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// MarkPaid は注文をpendingからpaidへ遷移させる。
	// 既にpaidの場合はfalseを返す（二重決済の防止）。
	MarkPaid(ctx context.Context, id model.OrderID) (bool, error)

	// ListRecent は全ユーザーの注文を新しい順にページ指定で返す。管理画面用。
	ListRecent(ctx context.Context, limit, offset int) ([]*model.Order, error)

	// CountByStatus は指定ステータスの注文数を返す。管理画面用。
	CountByStatus(ctx context.Context, status model.OrderStatus) (int, error)
}
