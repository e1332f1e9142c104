package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/clemmont/internal/assistant"
	"github.com/hitoshi/clemmont/internal/auth"
	"github.com/hitoshi/clemmont/internal/avatar"
	"github.com/hitoshi/clemmont/internal/config"
	"github.com/hitoshi/clemmont/internal/database"
	"github.com/hitoshi/clemmont/internal/device"
	"github.com/hitoshi/clemmont/internal/handler"
	"github.com/hitoshi/clemmont/internal/logger"
	"github.com/hitoshi/clemmont/internal/metrics"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/hitoshi/clemmont/internal/repository"
	"github.com/hitoshi/clemmont/internal/security"
	"github.com/hitoshi/clemmont/internal/sensor"
	"github.com/hitoshi/clemmont/internal/worker/cleanup"
	"github.com/hitoshi/clemmont/internal/worker/sample"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newClassifierAndSummarizer はアシスタントの意図分類器と要約器を構築する。
// GEMINI_API_KEYが設定されている場合はGemini実装を、
// 未設定の場合はルールベース分類器とテンプレート要約器を使用する。
func newClassifierAndSummarizer(ctx context.Context, cfg *config.Config) (assistant.IntentClassifier, assistant.Summarizer, error) {
	if cfg.GeminiAPIKey == "" {
		slog.Info("assistant running in rule-based mode (GEMINI_API_KEY is not set)")
		return assistant.NewRuleClassifier(), assistant.NewTemplateSummarizer(), nil
	}

	client, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	slog.Info("assistant running in gemini mode",
		slog.String("model", cfg.AssistantModel),
	)
	return assistant.NewGeminiClassifier(client, cfg.AssistantModel),
		assistant.NewGeminiSummarizer(client, cfg.AssistantModel), nil
}

// rateLimiterConfig はconfigのreq/min単位の値をrate.Limit（req/sec）に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitChat > 0 {
		rlCfg.ChatRate = rate.Limit(float64(cfg.RateLimitChat) / 60.0)
		rlCfg.ChatBurst = cfg.RateLimitChat
	}
	return rlCfg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	deviceRepo := repository.NewPostgresDeviceRepo(db)
	readingRepo := repository.NewPostgresReadingRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	avatarFetcher := avatar.NewFetcher(ssrfGuard)
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.NewPasswordHasher(), avatarFetcher, sanitizer,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	deviceService := device.NewService(deviceRepo, sanitizer, cfg.DeviceLimit)
	sensorService := sensor.NewService(readingRepo, deviceRepo)

	// 5. アシスタントの初期化
	classifier, summarizer, err := newClassifierAndSummarizer(context.Background(), cfg)
	if err != nil {
		return err
	}
	interpreter := handler.NewInterpreterAdapter(classifier, summarizer, sensorService)

	// 6. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Interpreter: interpreter,

		DeviceService: deviceService,
		SensorService: sensorService,

		Metrics:  collector,
		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、センサーサンプリングスケジューラとクリーンアップジョブを起動する。
// /metricsと/healthのみを公開する軽量HTTPサーバーも併せて起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	deviceRepo := repository.NewPostgresDeviceRepo(db)
	readingRepo := repository.NewPostgresReadingRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. サンプリングスケジューラの初期化
	sensorService := sensor.NewService(readingRepo, deviceRepo)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	scheduler := sample.NewScheduler(
		deviceRepo, sensorService, collector, slog.Default(), cfg.SensorMaxConcurrent,
	)

	// 4. クリーンアップジョブの初期化
	cleanupRunner := cleanup.NewRunner(
		readingRepo, sessionRepo, slog.Default(), cfg.SensorRetentionDays,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 5. メトリクス公開用の軽量HTTPサーバーを起動
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	metricsServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("sample_interval", cfg.SensorSampleInterval),
		slog.Int("max_concurrent", cfg.SensorMaxConcurrent),
		slog.Int("retention_days", cfg.SensorRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupRunner.Start(ctx, 24*time.Hour)

	// サンプリングスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SensorSampleInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
