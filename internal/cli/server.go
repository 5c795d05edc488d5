package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knowledge-test-service/internal/app"
	"knowledge-test-service/internal/clock"
	"knowledge-test-service/internal/config"
	"knowledge-test-service/internal/infra/memory"
	pginfra "knowledge-test-service/internal/infra/postgres"
	redisinfra "knowledge-test-service/internal/infra/redis"
	transport "knowledge-test-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the knowledge test server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewBuiltinBankLoader()
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	bankTTL := config.Duration(cfg.Test.BankTTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewBankRepository(loader, bankTTL)
	}

	cooldown := config.Duration(cfg.Test.Cooldown, 24*time.Hour)

	// Attempts live in the richest configured store: postgres keeps full
	// per-question detail, redis keeps the latest attempt plus the cooldown
	// key, memory is the dev fallback.
	var status app.StatusProvider
	var results app.ResultSubmitter
	switch {
	case pool != nil:
		recorder := pginfra.NewAttemptRecorder(pool, cooldown)
		status, results = recorder, recorder
	case redisClient != nil:
		store := redisinfra.NewAttemptStore(redisClient, cooldown)
		status, results = store, store
	default:
		store := memory.NewAttemptStore(cooldown)
		status, results = store, store
	}

	fmtr, err := clock.NewFormatter(cfg.Test.Timezone)
	if err != nil {
		return err
	}

	service := app.NewTestService(memory.NewSessionStore(), bank, status, results, app.Options{
		PassMark:      cfg.Test.PassMark,
		SubmitTimeout: config.Duration(cfg.Test.SubmitTimeout, 10*time.Second),
		Formatter:     fmtr,
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting knowledge test service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
