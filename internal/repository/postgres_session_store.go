package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/textdesk/internal/session"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresSessionStore はPostgreSQLを使用したセッションストア。
// ペイロードはbytea列にそのまま保存し、内容には一切関与しない。
type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore はPostgresSessionStoreを生成する。
func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// Create は新規セッションレコードを保存する。
// IDが既に存在する場合はsession.ErrDuplicateIDを返す。
func (s *PostgresSessionStore) Create(ctx context.Context, record *session.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, payload, expires_at)
		 VALUES ($1, $2, $3)`,
		record.ID, record.Payload, record.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return session.ErrDuplicateID
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Save はIDをキーとした冪等なupsertを行う。
// 単一行のUPSERTのため、失敗したSaveが直前のコミット済みレコードを
// 破壊することはない。
func (s *PostgresSessionStore) Save(ctx context.Context, record *session.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, payload, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		record.ID, record.Payload, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load は指定IDのセッションレコードを取得する。
// 未知のIDと期限切れレコードはどちらもnilを返す。
// 期限比較はデータベースの現在時刻（now()）で行う。
func (s *PostgresSessionStore) Load(ctx context.Context, id string) (*session.Record, error) {
	record := &session.Record{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, payload, expires_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&record.ID, &record.Payload, &record.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return record, nil
}

// Delete は指定IDのセッションレコードを削除する。
// 存在しないIDの削除はエラーにならない。
func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
// 期限内のレコードには触れないため、進行中のLoad/Saveと並行実行しても安全。
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ session.Store = (*PostgresSessionStore)(nil)
