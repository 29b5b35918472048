package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Rettend/todoman/internal/middleware"
	"github.com/Rettend/todoman/internal/model"
)

// --- モック定義 ---

type mockTodoService struct {
	listFn         func(ctx context.Context, userID string) ([]*model.Todo, error)
	createFn       func(ctx context.Context, userID, text string) (*model.Todo, error)
	setCompletedFn func(ctx context.Context, userID, todoID string, completed bool) (*model.Todo, error)
	deleteFn       func(ctx context.Context, userID, todoID string) error
}

func (m *mockTodoService) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTodoService) Create(ctx context.Context, userID, text string) (*model.Todo, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, text)
	}
	return nil, nil
}

func (m *mockTodoService) SetCompleted(ctx context.Context, userID, todoID string, completed bool) (*model.Todo, error) {
	if m.setCompletedFn != nil {
		return m.setCompletedFn(ctx, userID, todoID, completed)
	}
	return nil, nil
}

func (m *mockTodoService) Delete(ctx context.Context, userID, todoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, todoID)
	}
	return nil
}

var _ TodoServiceInterface = (*mockTodoService)(nil)

// newTodoTestRouter は認証済みユーザーをコンテキストに注入した
// Todoルートのみのルーターを構築する。
func newTodoTestRouter(service TodoServiceInterface, userID string) http.Handler {
	r := chi.NewRouter()
	if userID != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.ContextWithUserID(req.Context(), userID)))
			})
		})
	}

	h := NewTodoHandler(service)
	r.Route("/api/todos", func(r chi.Router) {
		r.Get("/", h.ListTodos)
		r.Post("/", h.CreateTodo)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.UpdateTodo)
			r.Delete("/", h.DeleteTodo)
		})
	})
	return r
}

// --- テスト ---

// TestListTodos_ReturnsOwnedTodos は一覧取得を検証する。
func TestListTodos_ReturnsOwnedTodos(t *testing.T) {
	service := &mockTodoService{
		listFn: func(_ context.Context, userID string) ([]*model.Todo, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return []*model.Todo{
				{ID: "todo-2", UserID: userID, Text: "newer", CreatedAt: time.Now()},
				{ID: "todo-1", UserID: userID, Text: "older", CreatedAt: time.Now().Add(-time.Hour)},
			}, nil
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var todos []todoResponse
	if err := json.NewDecoder(rec.Body).Decode(&todos); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(todos) != 2 || todos[0].ID != "todo-2" {
		t.Errorf("todos = %+v, want newest first", todos)
	}
}

// TestListTodos_EmptyListReturnsArray は空一覧が[]で返ることを検証する。
func TestListTodos_EmptyListReturnsArray(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{}, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Errorf("body = %q, want JSON array (not null)", rec.Body.String())
	}
}

// TestListTodos_Unauthenticated は未認証コンテキストで401になることを検証する。
func TestListTodos_Unauthenticated(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestCreateTodo_Returns201 は作成成功で201と作成済みTodoが返ることを検証する。
func TestCreateTodo_Returns201(t *testing.T) {
	service := &mockTodoService{
		createFn: func(_ context.Context, userID, text string) (*model.Todo, error) {
			return &model.Todo{ID: "todo-1", UserID: userID, Text: text, CreatedAt: time.Now()}, nil
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"text":"buy milk"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var todo todoResponse
	if err := json.NewDecoder(rec.Body).Decode(&todo); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if todo.ID != "todo-1" || todo.Text != "buy milk" {
		t.Errorf("todo = %+v, want created todo", todo)
	}
}

// TestCreateTodo_EmptyTextReturns400 は空テキストが400になることを検証する。
func TestCreateTodo_EmptyTextReturns400(t *testing.T) {
	service := &mockTodoService{
		createFn: func(_ context.Context, _, _ string) (*model.Todo, error) {
			return nil, model.NewEmptyTodoTextError()
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{"text":"  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeEmptyTodoText {
		t.Errorf("body.Code = %q, want EMPTY_TODO_TEXT", body.Code)
	}
}

// TestCreateTodo_InvalidJSONReturns400 は壊れたJSONが400になることを検証する。
func TestCreateTodo_InvalidJSONReturns400(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{}, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/todos", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestUpdateTodo_TogglesCompleted は完了状態の更新を検証する。
func TestUpdateTodo_TogglesCompleted(t *testing.T) {
	service := &mockTodoService{
		setCompletedFn: func(_ context.Context, userID, todoID string, completed bool) (*model.Todo, error) {
			if todoID != "todo-1" {
				t.Errorf("todoID = %q, want todo-1", todoID)
			}
			return &model.Todo{ID: todoID, UserID: userID, Text: "task", Completed: completed}, nil
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodPut, "/api/todos/todo-1", strings.NewReader(`{"completed":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var todo todoResponse
	if err := json.NewDecoder(rec.Body).Decode(&todo); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !todo.Completed {
		t.Error("todo.Completed should be true")
	}
}

// TestUpdateTodo_MissingCompletedReturns400 はcompleted未指定が400になることを検証する。
func TestUpdateTodo_MissingCompletedReturns400(t *testing.T) {
	router := newTodoTestRouter(&mockTodoService{}, "user-1")

	req := httptest.NewRequest(http.MethodPut, "/api/todos/todo-1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestUpdateTodo_NotFoundReturns404 は存在しないTodoの更新が404になることを検証する。
func TestUpdateTodo_NotFoundReturns404(t *testing.T) {
	service := &mockTodoService{
		setCompletedFn: func(_ context.Context, _, todoID string, _ bool) (*model.Todo, error) {
			return nil, model.NewTodoNotFoundError(todoID)
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodPut, "/api/todos/missing", strings.NewReader(`{"completed":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestDeleteTodo_Returns200WithMessage は削除成功で200とメッセージが返ることを検証する。
func TestDeleteTodo_Returns200WithMessage(t *testing.T) {
	deleted := ""
	service := &mockTodoService{
		deleteFn: func(_ context.Context, _, todoID string) error {
			deleted = todoID
			return nil
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/todos/todo-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if deleted != "todo-1" {
		t.Errorf("deleted = %q, want todo-1", deleted)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] == "" {
		t.Error("response should contain a message")
	}
}

// TestDeleteTodo_NotFoundReturns404 は存在しないTodoの削除が404になることを検証する。
func TestDeleteTodo_NotFoundReturns404(t *testing.T) {
	service := &mockTodoService{
		deleteFn: func(_ context.Context, _, todoID string) error {
			return model.NewTodoNotFoundError(todoID)
		},
	}
	router := newTodoTestRouter(service, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/todos/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
