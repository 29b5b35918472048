package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rettend/todoman/internal/middleware"
	"github.com/Rettend/todoman/internal/model"
)

// RPCプロシージャ名
const (
	procTodosList   = "todos.list"
	procTodosCreate = "todos.create"
	procTodosToggle = "todos.toggle"
	procTodosDelete = "todos.delete"
)

// RPCHandler はプロシージャ呼び出し形式のTodo APIハンドラー。
// REST APIと同じサービス層を共有し、エンベロープ形式のみが異なる。
type RPCHandler struct {
	service TodoServiceInterface
}

// NewRPCHandler はRPCHandlerを生成する。
func NewRPCHandler(service TodoServiceInterface) *RPCHandler {
	return &RPCHandler{service: service}
}

// --- エンベロープ型 ---

// rpcErrorBody はRPCエラーエンベロープの中身。
type rpcErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rpcCreateParams はtodos.createの入力。
type rpcCreateParams struct {
	Text string `json:"text"`
}

// rpcToggleParams はtodos.toggleの入力。
type rpcToggleParams struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// rpcDeleteParams はtodos.deleteの入力。
type rpcDeleteParams struct {
	ID string `json:"id"`
}

// Call はRPCプロシージャを実行する。
// POST /rpc/{procedure}（todos.listのみGETでも呼び出せる）
// GETはCSRF検証をスキップする安全メソッドのため、
// ミューテーションプロシージャのGET呼び出しは405で拒否する。
func (h *RPCHandler) Call(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeRPCError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	procedure := chi.URLParam(r, "procedure")

	if r.Method != http.MethodPost && procedure != procTodosList {
		writeRPCError(w, http.StatusMethodNotAllowed,
			model.NewInvalidRequestError("このプロシージャはPOSTでのみ呼び出せます。"))
		return
	}

	switch procedure {
	case procTodosList:
		h.callList(w, r, userID)
	case procTodosCreate:
		h.callCreate(w, r, userID)
	case procTodosToggle:
		h.callToggle(w, r, userID)
	case procTodosDelete:
		h.callDelete(w, r, userID)
	default:
		writeRPCError(w, http.StatusNotFound,
			model.NewInvalidRequestError("未知のプロシージャです。"))
	}
}

func (h *RPCHandler) callList(w http.ResponseWriter, r *http.Request, userID string) {
	todos, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleRPCServiceError(w, err)
		return
	}

	result := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		result = append(result, toTodoResponse(t))
	}
	writeRPCResult(w, result)
}

func (h *RPCHandler) callCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var params rpcCreateParams
	if !decodeRPCParams(w, r, &params) {
		return
	}

	todo, err := h.service.Create(r.Context(), userID, params.Text)
	if err != nil {
		handleRPCServiceError(w, err)
		return
	}
	writeRPCResult(w, toTodoResponse(todo))
}

func (h *RPCHandler) callToggle(w http.ResponseWriter, r *http.Request, userID string) {
	var params rpcToggleParams
	if !decodeRPCParams(w, r, &params) {
		return
	}

	todo, err := h.service.SetCompleted(r.Context(), userID, params.ID, params.Completed)
	if err != nil {
		handleRPCServiceError(w, err)
		return
	}
	writeRPCResult(w, toTodoResponse(todo))
}

func (h *RPCHandler) callDelete(w http.ResponseWriter, r *http.Request, userID string) {
	var params rpcDeleteParams
	if !decodeRPCParams(w, r, &params) {
		return
	}

	if err := h.service.Delete(r.Context(), userID, params.ID); err != nil {
		handleRPCServiceError(w, err)
		return
	}
	writeRPCResult(w, map[string]string{"id": params.ID})
}

// decodeRPCParams はリクエストボディをパラメータ構造体にデコードする。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func decodeRPCParams(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeRPCError(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// writeRPCResult は成功エンベロープ {"result": ...} を書き込む。
func writeRPCResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"result": result,
	})
}

// writeRPCError はエラーエンベロープ {"error": {"code", "message"}} を書き込む。
func writeRPCError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": rpcErrorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// handleRPCServiceError はサービス層のエラーをRPCエンベロープに変換する。
func handleRPCServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeRPCError(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeRPCError(w, http.StatusInternalServerError, model.NewInternalError())
}
