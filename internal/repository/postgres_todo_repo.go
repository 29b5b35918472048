package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Rettend/todoman/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// ListByUserID はユーザーのTodo一覧を作成日時の新しい順で返す。
// created_atが同一の場合に順序が安定するようidを第2キーにする。
func (r *PostgresTodoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, text, completed, created_at
		 FROM todos
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := []*model.Todo{}
	for rows.Next() {
		todo := &model.Todo{}
		if err := rows.Scan(&todo.ID, &todo.UserID, &todo.Text, &todo.Completed, &todo.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}

	return todos, nil
}

// Create はTodoを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, user_id, text, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		todo.ID, todo.UserID, todo.Text, todo.Completed, todo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

// UpdateCompleted は所有者が一致する場合のみcompletedを更新し、更新後の行を返す。
// 行が存在しない、または所有者が異なる場合はnilを返す（両者は区別しない）。
func (r *PostgresTodoRepo) UpdateCompleted(ctx context.Context, id, userID string, completed bool) (*model.Todo, error) {
	todo := &model.Todo{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE todos SET completed = $1
		 WHERE id = $2 AND user_id = $3
		 RETURNING id, user_id, text, completed, created_at`,
		completed, id, userID,
	).Scan(&todo.ID, &todo.UserID, &todo.Text, &todo.Completed, &todo.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	return todo, nil
}

// Delete は所有者が一致する場合のみTodoを削除する。
// 削除した場合はtrue、行が存在しない・所有者が異なる場合はfalseを返す。
func (r *PostgresTodoRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
