// Command holonic-engine runs the heartbeat scheduler for an agent tree,
// persisting it to SQLite and exposing the HTTP inspection surface and
// (optionally) an MCP tool bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nullcoward/holonic-engine/pkg/aitokens"
	"github.com/nullcoward/holonic-engine/pkg/aitransport"
	"github.com/nullcoward/holonic-engine/pkg/config"
	"github.com/nullcoward/holonic-engine/pkg/heart"
	"github.com/nullcoward/holonic-engine/pkg/heartbeat"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
	"github.com/nullcoward/holonic-engine/pkg/holonmcp"
	"github.com/nullcoward/holonic-engine/pkg/inspect"
	"github.com/nullcoward/holonic-engine/pkg/storage"
	"github.com/nullcoward/holonic-engine/pkg/telemetry"
)

var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	log.Info().Str("tag", Tag).Str("commit", Commit).Str("build_time", BuildTime).Msg("starting holonic-engine")

	if err := run(*configPath, log); err != nil {
		log.Fatal().Err(err).Msg("holonic-engine exited with an error")
	}
}

func run(configPath string, log zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage.Path, cfg.Storage.Passphrase, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	root, err := bootstrapRoot(ctx, store, log)
	if err != nil {
		return fmt.Errorf("bootstrap agent tree: %w", err)
	}

	transport, err := buildTransport(cfg, log)
	if err != nil {
		return fmt.Errorf("build AI transport: %w", err)
	}

	estimator := aitokens.TiktokenEstimator{}
	telem := telemetry.New()

	h := heart.New(root, transport, estimator, log,
		heart.WithModel(cfg.Scheduler.Model),
		heart.WithInterval(*cfg.Scheduler.Interval),
		heart.WithMaxTokens(*cfg.Scheduler.MaxTokens),
		heart.WithStructuredOutput(*cfg.Scheduler.StructuredOutput),
		heart.WithTelemetry(telem),
	)

	var inspectSrv *inspect.Server
	if *cfg.Inspect.Enabled {
		inspectSrv = inspect.New(root, estimator, cfg.Scheduler.Model, telem, log)
	}

	h.OnHeartbeat(func(hb *heartbeat.Heartbeat) {
		if _, err := store.SaveHeartbeat(ctx, hb, 0); err != nil {
			log.Error().Err(err).Msg("failed to persist heartbeat")
		}
		if inspectSrv != nil {
			inspectSrv.HandleHeartbeat(hb)
		}
	})

	var mcpSrv *holonmcp.Server
	if *cfg.MCP.Enabled {
		mcpSrv = holonmcp.New(root, log)
	}

	h.Start()
	defer h.Stop()

	var httpServer *http.Server
	if inspectSrv != nil {
		httpServer = &http.Server{Addr: cfg.Inspect.ListenAddr, Handler: inspectSrv.Handler()}
		go func() {
			log.Info().Str("addr", cfg.Inspect.ListenAddr).Msg("inspection surface listening")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("inspection surface stopped")
			}
		}()
	}

	mcpDone := make(chan error, 1)
	if mcpSrv != nil {
		switch cfg.MCP.Transport {
		case "http":
			mcpHTTP := &http.Server{Addr: cfg.MCP.ListenAddr, Handler: mcpSrv.Handler()}
			go func() {
				log.Info().Str("addr", cfg.MCP.ListenAddr).Msg("MCP bridge listening over HTTP")
				mcpDone <- mcpHTTP.ListenAndServe()
			}()
		default:
			log.Info().Msg("MCP bridge listening over stdio")
			go func() { mcpDone <- mcpSrv.ServeStdio(ctx) }()
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// bootstrapRoot restores the interface holon's tree from storage, or
// creates and persists a fresh one if this is the first run.
func bootstrapRoot(ctx context.Context, store *storage.Store, log zerolog.Logger) (*holonagent.Agent, error) {
	root, err := store.RestoreTree(ctx, holonagent.InterfaceID)
	if err != nil {
		return nil, err
	}
	if root != nil {
		root.BindStorageTree(ctx, store, false)
		log.Info().Str("holon_id", root.ID()).Msg("restored agent tree from storage")
		return root, nil
	}

	root = holonagent.NewWithID(nil, holonagent.InterfaceID)
	root.BindStorageTree(ctx, store, true)
	log.Info().Str("holon_id", root.ID()).Msg("bootstrapped a fresh interface holon")
	return root, nil
}

func buildTransport(cfg *config.Config, log zerolog.Logger) (aitransport.Transport, error) {
	apiKey := cfg.Transport.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set %s or transport.credential", cfg.Transport.CredentialEnv)
	}
	switch cfg.Transport.Vendor {
	case "anthropic":
		return aitransport.NewAnthropicTransport(apiKey, cfg.Transport.BaseURL, log), nil
	case "openai", "":
		return aitransport.NewOpenAITransport(apiKey, cfg.Transport.BaseURL, log), nil
	default:
		return nil, fmt.Errorf("unsupported transport vendor %q", cfg.Transport.Vendor)
	}
}
