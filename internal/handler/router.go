package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/clemmont/internal/metrics"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アシスタント
	Interpreter CommandInterpreterInterface

	// デバイス・センサー
	DeviceService DeviceServiceInterface
	SensorService SensorServiceInterface

	// メトリクス。nilの場合は/metricsを公開せず、記録もしない。
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF
//	（/api配下はさらに Session → RateLimit(General)）
//
// 認証前エンドポイント（signup/login/OAuthフロー）はセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	var authMetrics AuthMetrics
	var chatMetrics ChatMetrics
	if deps.Metrics != nil {
		authMetrics = deps.Metrics
		chatMetrics = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, authMetrics, deps.AuthConfig)
	chatHandler := NewChatHandler(deps.Interpreter, chatMetrics)
	deviceHandler := NewDeviceHandler(deps.DeviceService)
	statusHandler := NewStatusHandler(deps.SensorService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// OAuthフロー（ブラウザリダイレクト経由）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	// メール/パスワード認証とセッション管理
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// チャット（アシスタント呼び出しを伴うため専用レート制限を追加）
		r.With(deps.RateLimiter.ChatMiddleware()).Post("/api/chat", chatHandler.HandleChat)

		// デバイス管理
		r.Route("/api/devices", func(r chi.Router) {
			r.Post("/", deviceHandler.LinkDevice)
			r.Get("/", deviceHandler.ListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", deviceHandler.UnlinkDevice)

				// GET /api/devices/{id}/readings - 計測値履歴
				r.Get("/readings", statusHandler.ListReadings)
			})
		})

		// センサーステータス
		r.Get("/api/status", statusHandler.GetStatus)
	})

	return r
}
