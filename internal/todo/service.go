// Package todo はTodo管理のドメインロジックを提供する。
package todo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rettend/todoman/internal/model"
	"github.com/Rettend/todoman/internal/repository"
)

// Todoミューテーションのメトリクスラベル
const (
	MutationCreate = "create"
	MutationToggle = "toggle"
	MutationDelete = "delete"
)

// MetricsRecorder はTodoミューテーションのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordTodoMutation(op string)
}

// TextSanitizer はTodoテキストのサニタイズインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Service はTodo管理のサービス層。
// 全ての操作は呼び出し元セッションのユーザーIDでスコープされる。
type Service struct {
	repo      repository.TodoRepository
	sanitizer TextSanitizer
	metrics   MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(repo repository.TodoRepository, sanitizer TextSanitizer, metrics MetricsRecorder) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// List はユーザーのTodo一覧を作成日時の新しい順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// Create は新しいTodoを作成して返す。
// テキストは前後の空白を除去して保存する。除去後に空の場合はバリデーションエラー。
func (s *Service) Create(ctx context.Context, userID, text string) (*model.Todo, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, model.NewEmptyTodoTextError()
	}

	if s.sanitizer != nil {
		trimmed = strings.TrimSpace(s.sanitizer.Sanitize(trimmed))
		if trimmed == "" {
			return nil, model.NewEmptyTodoTextError()
		}
	}

	todo := &model.Todo{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      trimmed,
		Completed: false,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	s.recordMutation(MutationCreate)
	return todo, nil
}

// SetCompleted は指定Todoのcompletedを更新して返す。
// 行が存在しない、または他ユーザー所有の場合はTodoNotFoundエラーを返す
// （両者を区別しないことで他ユーザーのTodoの存在を漏らさない）。
func (s *Service) SetCompleted(ctx context.Context, userID, todoID string, completed bool) (*model.Todo, error) {
	todo, err := s.repo.UpdateCompleted(ctx, todoID, userID, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError(todoID)
	}

	s.recordMutation(MutationToggle)
	return todo, nil
}

// Delete は指定Todoを削除する。
// 行が存在しない、または他ユーザー所有の場合はTodoNotFoundエラーを返す。
func (s *Service) Delete(ctx context.Context, userID, todoID string) error {
	deleted, err := s.repo.Delete(ctx, todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError(todoID)
	}

	s.recordMutation(MutationDelete)
	return nil
}

// recordMutation はメトリクスが設定されている場合のみ記録する。
func (s *Service) recordMutation(op string) {
	if s.metrics != nil {
		s.metrics.RecordTodoMutation(op)
	}
}
