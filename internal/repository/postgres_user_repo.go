package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/textdesk/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// GetUserInfo はセッション解決用の最小プロフィールを取得する。
// 管理者判定はuser_rolesテーブルとのEXISTSで行う。
func (r *PostgresUserRepo) GetUserInfo(ctx context.Context, id model.UserID) (*model.UserInfo, error) {
	info := &model.UserInfo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email,
		        EXISTS (
		           SELECT 1 FROM user_roles
		           WHERE user_id = users.id AND role = 'admin'
		        ) AS is_admin
		 FROM users
		 WHERE id = $1`,
		id.Int64(),
	).Scan(&info.Email, &info.IsAdmin)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	return info, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email,
		        EXISTS (
		           SELECT 1 FROM user_roles
		           WHERE user_id = users.id AND role = 'admin'
		        ) AS is_admin,
		        created_at
		 FROM users
		 WHERE id = $1`,
		id.Int64(),
	))
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email,
		        EXISTS (
		           SELECT 1 FROM user_roles
		           WHERE user_id = users.id AND role = 'admin'
		        ) AS is_admin,
		        created_at
		 FROM users
		 WHERE email = $1`,
		email,
	))
}

// Create は新規ユーザーを作成し、データベースが採番したIDを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, email string) (model.UserID, error) {
	var rawID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email) VALUES ($1) RETURNING id`,
		email,
	).Scan(&rawID)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return model.IDFromDB[model.UserEntity](rawID), nil
}

// List はユーザー一覧を作成日時の新しい順でページ指定で返す。
func (r *PostgresUserRepo) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email,
		        EXISTS (
		           SELECT 1 FROM user_roles
		           WHERE user_id = users.id AND role = 'admin'
		        ) AS is_admin,
		        created_at
		 FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var rawID int64
		user := &model.User{}
		if err := rows.Scan(&rawID, &user.Email, &user.IsAdmin, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.ID = model.IDFromDB[model.UserEntity](rawID)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Count はユーザーの総数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GrantAdmin は管理者ロールを付与する。既に付与済みの場合は何もしない。
func (r *PostgresUserRepo) GrantAdmin(ctx context.Context, id model.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, 'admin')
		 ON CONFLICT (user_id, role) DO NOTHING`,
		id.Int64(),
	)
	if err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}
	return nil
}

// RevokeAdmin は管理者ロールを剥奪する。未付与の場合は何もしない。
func (r *PostgresUserRepo) RevokeAdmin(ctx context.Context, id model.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role = 'admin'`,
		id.Int64(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke admin role: %w", err)
	}
	return nil
}

// scanUser は1行のユーザーを読み取る。sql.ErrNoRowsはnilに変換する。
func (r *PostgresUserRepo) scanUser(row *sql.Row) (*model.User, error) {
	var rawID int64
	user := &model.User{}
	err := row.Scan(&rawID, &user.Email, &user.IsAdmin, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user.ID = model.IDFromDB[model.UserEntity](rawID)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
