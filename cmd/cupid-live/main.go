package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/aicupid/cupid-live/pkg/core/live"
	"github.com/aicupid/cupid-live/pkg/core/voice/tts"
	"github.com/aicupid/cupid-live/pkg/events"
	"github.com/aicupid/cupid-live/pkg/gateway/config"
	gatewayserver "github.com/aicupid/cupid-live/pkg/gateway/server"
	"github.com/aicupid/cupid-live/pkg/store"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// buildStore picks the persistence backend. With DATABASE_URL set it
// runs migrations and connects a pgx pool; otherwise conversations live in
// process memory and vanish on restart.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("using postgres store")
	return store.NewPostgres(pool), pool.Close, nil
}

// buildEngine wires exactly one quiz trigger per the configured strategy.
func buildEngine(cfg config.Config, generator events.QuizGenerator, judge events.Judge, logger *slog.Logger) *events.Engine {
	var trigger events.Trigger
	switch cfg.TriggerStrategy {
	case config.TriggerStrategyAgent:
		trigger = events.NewAgentTrigger(events.AgentTriggerConfig{
			MinConversationTurns: cfg.AgentMinConversationTurns,
			MinGapTurns:          cfg.AgentMinGapTurns,
		}, judge, generator)
	default:
		trigger = events.NewRuleTrigger(cfg.QuizInterval, generator)
	}
	return events.NewEngine(logger, trigger)
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := live.NewGeminiProvider(ctx, live.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiLiveModel,
	}, logger)
	if err != nil {
		return fmt.Errorf("gemini live provider: %w", err)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	generator := events.NewGeminiQuizGenerator(genaiClient, cfg.QuizModel, logger)
	judge := events.NewGeminiJudge(genaiClient, cfg.QuizModel)

	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var ttsProvider tts.Provider
	if cfg.OpenAIAPIKey != "" {
		ttsProvider = tts.NewOpenAI(cfg.OpenAIAPIKey)
	}

	engine := buildEngine(cfg, generator, judge, logger)

	gw := gatewayserver.New(cfg, gatewayserver.Dependencies{
		Logger:   logger,
		Provider: provider,
		TTS:      ttsProvider,
		Store:    st,
		Engine:   engine,
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"trigger_strategy", cfg.TriggerStrategy,
		"persistent", cfg.DatabaseURL != "",
		"text_mode", ttsProvider != nil,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	gw.WarnLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitLiveSessions(waitCtx) {
		gw.CancelLiveSessions()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "cupid-live: load .env: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "cupid-live: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
