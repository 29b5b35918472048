// Package client はtodoman APIのGoクライアントを提供する。
//
// ClientがHTTPトランスポート（Cookieセッション・CSRFトークン）を担い、
// Storeが楽観的更新付きのローカルキャッシュを担う。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// Todo はAPIが返すTodo項目。
type Todo struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// User は /auth/me が返すユーザー情報。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// API はStoreが必要とするサーバー操作のインターフェース。
// Clientが実装する。テストではモック実装を注入する。
type API interface {
	ListTodos(ctx context.Context) ([]Todo, error)
	CreateTodo(ctx context.Context, text string) (*Todo, error)
	UpdateTodo(ctx context.Context, id string, completed bool) (*Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

// Client はREST APIのHTTPクライアント実装。
// セッションCookieはcookie jarで保持し、状態変更リクエストには
// CSRFトークンを自動付与する。
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	csrfToken string
}

// コンパイル時にAPIインターフェースの実装を保証する
var _ API = (*Client)(nil)

// NewClient はClientを生成する。baseURLはAPIサーバーのルートURL。
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

// ListTodos はTodo一覧を取得する。
func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	if err := c.doJSON(ctx, http.MethodGet, "/api/todos", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// CreateTodo は新しいTodoを作成する。
func (c *Client) CreateTodo(ctx context.Context, text string) (*Todo, error) {
	var todo Todo
	body := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPost, "/api/todos", body, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// UpdateTodo はTodoの完了状態を更新する。
func (c *Client) UpdateTodo(ctx context.Context, id string, completed bool) (*Todo, error) {
	var todo Todo
	body := map[string]bool{"completed": completed}
	if err := c.doJSON(ctx, http.MethodPut, "/api/todos/"+id, body, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// DeleteTodo はTodoを削除する。
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/todos/"+id, nil, nil)
}

// Me は現在のログインユーザーを取得する。未認証の場合は(nil, nil)を返す。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// doJSON はJSONリクエストを送信し、レスポンスをoutにデコードする。
// 状態変更メソッドにはCSRFトークンを付与する。
// 非2xxレスポンスはサーバーのエラーメッセージを含むerrorに変換する。
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !isSafeMethod(method) {
		token, err := c.ensureCSRFToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ensureCSRFToken はCSRFトークンを取得してキャッシュする。
func (c *Client) ensureCSRFToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.csrfToken
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/csrf-token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create csrf request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode csrf token: %w", err)
	}

	c.mu.Lock()
	c.csrfToken = body.Token
	c.mu.Unlock()
	return body.Token, nil
}

// decodeAPIError は非2xxレスポンスをerrorに変換する。
// サーバーが返すmessageフィールドをそのままエラーメッセージとして用いる。
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		return fmt.Errorf("%s", body.Message)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// isSafeMethod はCSRFトークンが不要な読み取り専用メソッドかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
