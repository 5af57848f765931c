package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/config"
	"github.com/hitoshi/textdesk/internal/database"
	"github.com/hitoshi/textdesk/internal/email"
	"github.com/hitoshi/textdesk/internal/handler"
	"github.com/hitoshi/textdesk/internal/logger"
	"github.com/hitoshi/textdesk/internal/metrics"
	"github.com/hitoshi/textdesk/internal/middleware"
	"github.com/hitoshi/textdesk/internal/payment"
	"github.com/hitoshi/textdesk/internal/repository"
	"github.com/hitoshi/textdesk/internal/security"
	"github.com/hitoshi/textdesk/internal/session"
	"github.com/hitoshi/textdesk/internal/view"
	"github.com/hitoshi/textdesk/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envファイルの読み込み（なければ環境変数のみ）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
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

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 期限切れデータの削除ジョブも同一プロセス内でバックグラウンド実行する。
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

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	linkRepo := repository.NewPostgresMagicLinkRepo(db)
	todoRepo := repository.NewPostgresTodoRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	sessionStore := repository.NewPostgresSessionStore(db)

	// 4. セッションマネージャーの初期化
	sessionManager := session.NewManager(sessionStore, session.ManagerConfig{
		TTL:          cfg.SessionTTL(),
		CookieDomain: cfg.CookieDomain,
		CookieSecure: cfg.CookieSecure,
	})

	// 5. ドメインサービスの初期化
	sanitizer := security.NewInputSanitizer()
	sender := email.NewLogSender()
	authService := auth.NewService(userRepo, linkRepo, sender, auth.ServiceConfig{
		MagicLinkTTL: cfg.MagicLinkTTL,
		BaseURL:      cfg.BaseURL,
	})
	paymentClient := payment.NewClient(
		&http.Client{Timeout: cfg.PaymentTimeout},
		slog.Default(),
		cfg.PaymentConfirmURL,
		cfg.PaymentSecretKey,
	)

	// 6. ビューの初期化
	renderer, err := view.NewRenderer(slog.Default(), cfg.SiteName)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	// 7. パイプラインとレート制限の構築
	pipeline := middleware.NewPipeline(middleware.PipelineDeps{
		Sessions: sessionManager,
		Users:    userRepo,
		Logger:   slog.Default(),
		Metrics:  collector,
	})

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SignInRate = perMinute(cfg.RateLimitSignIn)
	rateLimiterCfg.SignInBurst = cfg.RateLimitSignIn
	rateLimiterCfg.SignInLimitMessage = handler.MsgTooManyRequests
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Pipeline:    pipeline,
		RateLimiter: rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		Pages:    handler.NewPageHandler(todoRepo, renderer, slog.Default()),
		Auth:     handler.NewAuthHandler(authService, renderer, slog.Default(), collector),
		Contact:  handler.NewContactHandler(sender, sanitizer, slog.Default()),
		Todos:    handler.NewTodoHandler(todoRepo, sanitizer, renderer, slog.Default()),
		Analyzer: handler.NewAnalyzerHandler(orderRepo, paymentClient, sanitizer, renderer, slog.Default(), collector),
		Admin:    handler.NewAdminHandler(userRepo, orderRepo, renderer, slog.Default()),

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 9. 期限切れデータ削除ジョブをバックグラウンド起動
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	sweepJob := cleanup.NewSweepJob(sessionStore, linkRepo, slog.Default(), collector)
	sweepJob.Interval = cfg.SweepInterval
	go sweepJob.Start(sweepCtx)

	// 10. HTTPサーバーの起動
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
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")
	sweepCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れデータ削除ジョブのみを実行する。
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
	linkRepo := repository.NewPostgresMagicLinkRepo(db)
	sessionStore := repository.NewPostgresSessionStore(db)

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

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// 3. 削除ジョブをメインgoroutineで実行（ブロッキング）
	sweepJob := cleanup.NewSweepJob(sessionStore, linkRepo, slog.Default(), nil)
	sweepJob.Interval = cfg.SweepInterval
	sweepJob.Start(ctx)

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

// perMinute は1分あたりのリクエスト数をrate.Limit（req/sec）に変換する。
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// maskDatabaseURL は接続URLのパスワード部分をマスクする。ログ出力用。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "(unparsable)"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
