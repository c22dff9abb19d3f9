package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hello-world-api/internal/app"
	"hello-world-api/internal/config"
	"hello-world-api/internal/infra/ipapi"
	"hello-world-api/internal/infra/memory"
	"hello-world-api/internal/infra/postgres"
	infraredis "hello-world-api/internal/infra/redis"
	"hello-world-api/internal/logging"
	"hello-world-api/internal/metrics"
	transport "hello-world-api/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, cfg.Server.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	key, generated, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	if generated {
		log.Warn("auth secret not configured, using a random per-process key; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *app.Store
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Strings("migrations", applied))

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(db, pool)
	} else {
		log.Warn("postgres url not configured, using the in-memory store")
		store = memory.NewStore()
	}

	attempts := cfg.Auth.LoginAttempts
	window := config.TTLDuration(cfg.Auth.LoginWindow, time.Minute)
	var (
		limiter  transport.LoginLimiter
		notifier app.Notifier
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		limiter = infraredis.NewLoginLimiter(client, attempts, window)
		notifier = infraredis.NewNotifier(client)
	} else {
		limiter = memory.NewLoginLimiter(attempts, window)
		notifier = memory.NewNotifier()
	}

	m := metrics.New()
	sessions, err := app.NewSessionManager(key, store.Sessions, store.Users,
		app.WithTokenTTL(config.TTLDuration(cfg.Auth.TokenTTL, app.DefaultTokenTTL)),
		app.WithLogger(log),
		app.WithObserver(m),
	)
	if err != nil {
		return err
	}
	quizzes := app.NewQuizService(store, notifier, m, log)
	board := app.NewLeaderboard(store.Users, cfg.Leaderboard.Size, notifier, log)

	router := transport.NewRouter(transport.Deps{
		Accounts:       app.NewAccountService(store, app.NewHasher(app.DefaultHasherParams), sessions, log),
		Sessions:       sessions,
		Courses:        app.NewCourseService(store, quizzes.Gate(), time.Now),
		Quizzes:        quizzes,
		Inbox:          app.NewInboxService(store, time.Now),
		Leaderboard:    board,
		Locator:        ipapi.NewLocator(cfg.Geo.BaseURL),
		LoginLimiter:   limiter,
		Metrics:        m,
		Log:            log,
		Debug:          cfg.Server.Debug,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestsPerSec: cfg.Server.RequestsPerSec,
		RequestBurst:   cfg.Server.RequestBurst,
	})

	sweeper, err := newSessionSweeper(ctx, cfg.Sessions.SweepSchedule, sessions, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := board.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting api server", zap.String("addr", server.Addr), zap.Bool("debug", cfg.Server.Debug))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
