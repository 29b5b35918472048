package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rettend/todoman/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		registerAuthRoutes(r, h)
	})

	return r
}

// registerAuthRoutes は/auth配下のルートを登録する。
func registerAuthRoutes(r chi.Router, h *AuthHandler) {
	// OAuthフロー
	r.Get("/{provider}/login", h.Login)
	r.Get("/{provider}/callback", h.Callback)

	// セッション管理
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
}

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	MetricsRecorder   middleware.HTTPMetricsRecorder
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// Todo
	TodoService TodoServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging →（認証ルート以外）Session → CSRF
//
// 認証ルート（/auth/*）、/healthz、/metrics、/api/csrf-tokenは
// セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	todoHandler := NewTodoHandler(deps.TodoService)
	rpcHandler := NewRPCHandler(deps.TodoService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		registerAuthRoutes(r, authHandler)
	})

	// ヘルスチェック
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// Todo管理（REST）
		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", todoHandler.ListTodos)
			r.Post("/", todoHandler.CreateTodo)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", todoHandler.UpdateTodo)
				r.Delete("/", todoHandler.DeleteTodo)
			})
		})

		// Todo管理（RPC）
		r.Route("/rpc/{procedure}", func(r chi.Router) {
			r.Get("/", rpcHandler.Call) // todos.listの読み取り呼び出し用
			r.Post("/", rpcHandler.Call)
		})
	})

	return r
}
