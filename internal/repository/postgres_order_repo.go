package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/textdesk/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// Create は未決済の注文を作成し、採番されたIDを返す。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) (model.OrderID, error) {
	var rawID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, char_count, amount, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		order.UserID.Int64(), order.OrderNumber, order.CharCount, order.Amount, string(order.Status),
	).Scan(&rawID)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return model.IDFromDB[model.OrderEntity](rawID), nil
}

// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id model.OrderID) (*model.Order, error) {
	return r.scanOrder(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, char_count, amount, status, created_at, paid_at
		 FROM orders
		 WHERE id = $1`,
		id.Int64(),
	))
}

// FindByOrderNumber は公開注文番号で注文を検索する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.scanOrder(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, char_count, amount, status, created_at, paid_at
		 FROM orders
		 WHERE order_number = $1`,
		orderNumber,
	))
}

// MarkPaid は注文をpendingからpaidへ遷移させる。
// WHERE句でstatusを条件にすることで、並行する二重確認でも
// 成功するのは一方のみになる。
func (r *PostgresOrderRepo) MarkPaid(ctx context.Context, id model.OrderID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = 'paid', paid_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id.Int64(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListRecent は全ユーザーの注文を新しい順にページ指定で返す。
func (r *PostgresOrderRepo) ListRecent(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, order_number, char_count, amount, status, created_at, paid_at
		 FROM orders
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := r.scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// CountByStatus は指定ステータスの注文数を返す。
func (r *PostgresOrderRepo) CountByStatus(ctx context.Context, status model.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// scanOrder は1行の注文を読み取る。sql.ErrNoRowsはnilに変換する。
func (r *PostgresOrderRepo) scanOrder(row *sql.Row) (*model.Order, error) {
	var rawID, rawUserID int64
	var status string
	var paidAt sql.NullTime
	order := &model.Order{}
	err := row.Scan(&rawID, &rawUserID, &order.OrderNumber, &order.CharCount,
		&order.Amount, &status, &order.CreatedAt, &paidAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	order.ID = model.IDFromDB[model.OrderEntity](rawID)
	order.UserID = model.IDFromDB[model.UserEntity](rawUserID)
	order.Status = model.OrderStatus(status)
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}

// scanOrderRow は複数行クエリの1行を読み取る。
func (r *PostgresOrderRepo) scanOrderRow(rows *sql.Rows) (*model.Order, error) {
	var rawID, rawUserID int64
	var status string
	var paidAt sql.NullTime
	order := &model.Order{}
	err := rows.Scan(&rawID, &rawUserID, &order.OrderNumber, &order.CharCount,
		&order.Amount, &status, &order.CreatedAt, &paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	order.ID = model.IDFromDB[model.OrderEntity](rawID)
	order.UserID = model.IDFromDB[model.UserEntity](rawUserID)
	order.Status = model.OrderStatus(status)
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
