package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/textdesk/internal/model"
)

// PostgresMagicLinkRepo はPostgreSQLを使用したマジックリンクリポジトリ。
type PostgresMagicLinkRepo struct {
	db *sql.DB
}

// NewPostgresMagicLinkRepo はPostgresMagicLinkRepoを生成する。
func NewPostgresMagicLinkRepo(db *sql.DB) *PostgresMagicLinkRepo {
	return &PostgresMagicLinkRepo{db: db}
}

// Create はマジックリンクを保存する。
func (r *PostgresMagicLinkRepo) Create(ctx context.Context, link *model.MagicLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_link_tokens (token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		link.Token, link.UserID.Int64(), link.ExpiresAt, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}
	return nil
}

// Consume はトークンを検証して削除する。
// DELETE ... RETURNINGの単一文でワンタイム性を保証するため、
// 同じトークンの並行検証でも成功するのは一方のみ。
func (r *PostgresMagicLinkRepo) Consume(ctx context.Context, token string) (model.UserID, bool, error) {
	var rawID int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM magic_link_tokens
		 WHERE token = $1 AND expires_at > now()
		 RETURNING user_id`,
		token,
	).Scan(&rawID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume magic link: %w", err)
	}

	return model.IDFromDB[model.UserEntity](rawID), true, nil
}

// DeleteExpired は期限切れトークンを一括削除し、削除件数を返す。
func (r *PostgresMagicLinkRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM magic_link_tokens WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic links: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted magic links: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ MagicLinkRepository = (*PostgresMagicLinkRepo)(nil)
