package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Rettend/todoman/internal/middleware"
	"github.com/Rettend/todoman/internal/model"
)

// TodoServiceInterface はTodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	// List はユーザーのTodo一覧を作成日時の新しい順で返す。
	List(ctx context.Context, userID string) ([]*model.Todo, error)
	// Create は新しいTodoを作成して返す。
	Create(ctx context.Context, userID, text string) (*model.Todo, error)
	// SetCompleted は指定Todoのcompletedを更新して返す。
	SetCompleted(ctx context.Context, userID, todoID string, completed bool) (*model.Todo, error)
	// Delete は指定Todoを削除する。
	Delete(ctx context.Context, userID, todoID string) error
}

// TodoHandler はTodo管理のHTTPハンドラー。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// todoResponse はTodo 1件のレスポンス。
type todoResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// createTodoRequest はTodo作成リクエストのボディ。
type createTodoRequest struct {
	Text string `json:"text"`
}

// updateTodoRequest はTodo更新リクエストのボディ。
// Completedがnilの場合はバリデーションエラーとして扱う。
type updateTodoRequest struct {
	Completed *bool `json:"completed"`
}

// toTodoResponse はモデルをレスポンス型に変換する。
// user_idは所有者スコープの内部情報のためレスポンスに含めない。
func toTodoResponse(t *model.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
	}
}

// ListTodos はTodo一覧を取得する。
// GET /api/todos
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	todos, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 空一覧でもnullではなく[]を返す
	resp := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		resp = append(resp, toTodoResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateTodo は新しいTodoを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	todo, err := h.service.Create(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTodoResponse(todo))
}

// UpdateTodo はTodoの完了状態を更新する。
// PUT /api/todos/{id}
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	todoID := chi.URLParam(r, "id")

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if req.Completed == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("completedを指定してください。"))
		return
	}

	todo, err := h.service.SetCompleted(r.Context(), userID, todoID, *req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTodoResponse(todo))
}

// DeleteTodo はTodoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	todoID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, todoID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
}
