package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kintai/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder

	// サービス
	AuthService        AuthServiceInterface
	TrackerService     TrackerServiceInterface
	ActivityLogService ActivityLogServiceInterface
	UserService        UserServiceInterface

	// 公開用メトリクスハンドラー。nilの場合は/metricsを公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	SecurityHeaders → CORS → Recovery → Logging → Auth → RateLimit(General)
//
// ログインルート（/auth/login）は認証ミドルウェアの外に配置し、
// IPベースのログイン専用レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	trackerHandler := NewTrackerHandler(deps.TrackerService)
	activityHandler := NewActivityLogHandler(deps.ActivityLogService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// ログイン（IPベースのログイン専用レート制限を適用）
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/auth/login", authHandler.Login)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// 勤務セッション
		r.Route("/api/session", func(r chi.Router) {
			r.Post("/checkin", trackerHandler.CheckIn)
			r.Post("/checkout", trackerHandler.CheckOut)
			r.Post("/activity", trackerHandler.RecordActivity)
			r.Post("/idle/start", trackerHandler.IdleStart)
			r.Post("/idle/end", trackerHandler.IdleEnd)
			r.Get("/current", trackerHandler.CurrentSession)
		})

		// セッション履歴
		r.Get("/api/sessions", trackerHandler.History)

		// アクティビティログ
		r.Get("/api/logs", activityHandler.ListLogs)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			// 自分自身の退会
			r.Delete("/me", userHandler.Withdraw)

			// 管理者専用の操作
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequireAdminMiddleware())
				r.Post("/", userHandler.CreateUser)
				r.Get("/", userHandler.ListUsers)
				r.Get("/{id}", userHandler.GetUser)
				r.Delete("/{id}", userHandler.DeleteUser)
			})
		})
	})

	return r
}
