package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nstogner/nevernood/pkg/chat"
	"github.com/nstogner/nevernood/pkg/config"
	"github.com/nstogner/nevernood/pkg/logging"
	"github.com/nstogner/nevernood/pkg/mcp"
	"github.com/nstogner/nevernood/pkg/metrics"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/model/gemini"
	"github.com/nstogner/nevernood/pkg/model/openai"
	"github.com/nstogner/nevernood/pkg/server"
	"github.com/nstogner/nevernood/pkg/session"
	"github.com/nstogner/nevernood/pkg/store/sqlite"
	"github.com/nstogner/nevernood/pkg/tools"
	"github.com/nstogner/nevernood/pkg/wardrobe"
)

const (
	capabilityServerName    = "demo-server"
	capabilityServerVersion = "1.0.0"
)

func main() {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()

	root := &cobra.Command{
		Use:          "nevernood",
		Short:        "Morning outfit assistant: streaming chat plus a tool session server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flags.StringVar(&cfg.Provider, "provider", cfg.Provider, "model provider (openai|gemini)")
	flags.StringVar(&cfg.Model, "model", cfg.Model, "model name (defaults per provider)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "wardrobe database path")
	flags.StringVar(&cfg.SessionMode, "session-mode", cfg.SessionMode, "session mode (stream|buffered)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize store.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	// Initialize model provider.
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}

	// Tools.
	registry := tools.NewRegistry()
	if err := wardrobe.Register(registry, st); err != nil {
		return fmt.Errorf("registering wardrobe tools: %w", err)
	}
	toolProvider := tools.Cached(registry, cfg.ToolCacheTTL)

	sessions := session.NewRegistry()
	m := metrics.New(sessions.Len)

	pipeline := chat.New(provider, toolProvider, chat.Options{
		Model:       cfg.ModelName(),
		Temperature: &cfg.Temperature,
		MaxSteps:    cfg.MaxSteps,
		Metrics:     m,
	})

	srv := server.New(server.Options{
		Provider:     provider,
		Chat:         pipeline,
		Sessions:     sessions,
		MCP:          mcp.NewServer(capabilityServerName, capabilityServerVersion, toolProvider),
		Wardrobe:     st,
		Metrics:      m,
		SessionMode:  cfg.SessionMode,
		MessagesPath: cfg.MessagesPath,
	})

	slog.Info("Configured chat", "provider", provider.Name(), "model", cfg.ModelName(), "maxSteps", cfg.MaxSteps)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Start(cfg.Addr)
	})
	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func newProvider(ctx context.Context, cfg *config.Config) (model.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		p, err := gemini.New(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini provider: %w", err)
		}
		return p, nil
	default:
		p, err := openai.New(openai.Config{APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL})
		if err != nil {
			return nil, fmt.Errorf("initializing OpenAI provider: %w", err)
		}
		return p, nil
	}
}
