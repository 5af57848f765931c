package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/textdesk/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
// 所有者チェックはすべてWHERE句で行い、他ユーザーのTodoへの操作は
// 「存在しない」のと同じ結果になる。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// ListByUser は指定ユーザーのTodo一覧を作成日時順で返す。
func (r *PostgresTodoRepo) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, completed, created_at
		 FROM todos
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []*model.Todo
	for rows.Next() {
		var rawID, rawUserID int64
		todo := &model.Todo{}
		if err := rows.Scan(&rawID, &rawUserID, &todo.Title, &todo.Completed, &todo.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todo.ID = model.IDFromDB[model.TodoEntity](rawID)
		todo.UserID = model.IDFromDB[model.UserEntity](rawUserID)
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}

	return todos, nil
}

// Create は新規Todoを作成し、採番されたIDを返す。
func (r *PostgresTodoRepo) Create(ctx context.Context, userID model.UserID, title string) (model.TodoID, error) {
	var rawID int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO todos (user_id, title) VALUES ($1, $2) RETURNING id`,
		userID.Int64(), title,
	).Scan(&rawID)
	if err != nil {
		return 0, fmt.Errorf("failed to create todo: %w", err)
	}
	return model.IDFromDB[model.TodoEntity](rawID), nil
}

// Toggle は完了状態を反転する。対象が存在しない場合はfalseを返す。
func (r *PostgresTodoRepo) Toggle(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE todos SET completed = NOT completed
		 WHERE id = $1 AND user_id = $2`,
		id.Int64(), userID.Int64(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to toggle todo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// Delete はTodoを削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresTodoRepo) Delete(ctx context.Context, userID model.UserID, id model.TodoID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		id.Int64(), userID.Int64(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
