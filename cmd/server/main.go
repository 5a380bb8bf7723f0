// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tubejuke/internal/api/connect"
	"github.com/osa030/tubejuke/internal/app/jukebox"
	"github.com/osa030/tubejuke/internal/app/resolver"
	"github.com/osa030/tubejuke/internal/infra/config"
	"github.com/osa030/tubejuke/internal/infra/logger"
	"github.com/osa030/tubejuke/internal/infra/metrics"
)

var (
	app        = kingpin.New("tubejuke-server", "tubejuke jukebox server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-tiers command
	listTiersCmd = app.Command("list-tiers", "List configured resolver tiers and exit")

	// resolve command
	resolveCmd    = app.Command("resolve", "Resolve a reference through the tier chain and exit")
	resolveRef    = resolveCmd.Arg("reference", "Video URL or ID").Required().String()
	resolveStream = resolveCmd.Flag("stream", "Resolve a playable stream URL instead of metadata").Bool()
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %+v", err)
	}

	switch command {
	case listTiersCmd.FullCommand():
		printTiers(cfg)
		return
	case resolveCmd.FullCommand():
		if err := resolveOnce(cfg, *resolveRef, *resolveStream); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	m := metrics.New()

	svc, err := jukebox.NewFromConfig(cfg, m)
	if err != nil {
		return errors.Wrap(err, "failed to create jukebox")
	}

	mux := http.NewServeMux()
	path, handler := apiconnect.NewHandler(apiconnect.NewJukeboxService(svc, cfg.Admin.Token))
	mux.Handle(path, handler)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	if cfg.Admin.Token == "" {
		zlog.Warn().Msg("admin token not configured, skip is open to every client")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	// Stop playback first so watch streams end before the listener closes
	svc.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printTiers prints the configured resolver tiers in fallback order.
func printTiers(cfg *config.Config) {
	fmt.Println("Resolver Tiers:")
	for i, t := range cfg.Resolver.Tiers {
		fmt.Printf("  %d. %-12s type=%-10s settings=%v\n", i+1, t.Name, t.Type, t.Settings)
	}
	if cfg.Resolver.EmbedFallbackEnabled() {
		fmt.Printf("  -  %-12s degraded last resort\n", resolver.EmbedTierName)
	}
}

// resolveOnce runs the resolver chain for a single reference.
func resolveOnce(cfg *config.Config, reference string, stream bool) error {
	chain, err := resolver.NewChainFromConfig(&cfg.Resolver, resolver.Backends{}, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !stream {
		meta := chain.ResolveMetadata(ctx, reference)
		fmt.Printf("ID:       %s\n", meta.ID)
		fmt.Printf("Title:    %s\n", meta.Title)
		fmt.Printf("Duration: %ds\n", meta.DurationSeconds)
		fmt.Printf("Tier:     %s\n", meta.Tier)
		if meta.Thumbnail != "" {
			fmt.Printf("Thumb:    %s\n", meta.Thumbnail)
		}
		return nil
	}

	res, err := chain.ResolveStream(ctx, reference)
	if err != nil {
		return err
	}
	fmt.Printf("Tier:     %s (degraded=%t)\n", res.Tier, res.Degraded)
	fmt.Printf("URL:      %s\n", res.URL)
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
