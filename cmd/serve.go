package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cooksey99/nucleus/internal/chatmanager"
	"github.com/Cooksey99/nucleus/internal/indexer"
	"github.com/Cooksey99/nucleus/internal/ipc"
	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/pkg/config"
	"github.com/Cooksey99/nucleus/pkg/metrics"
	"github.com/Cooksey99/nucleus/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nucleus IPC server",
	Long: `Starts the Nucleus runtime: a local IPC endpoint (Unix socket or
Windows named pipe) speaking newline-delimited JSON, backed by the
configured LLM provider, vector store, and plugin registry, plus a
Prometheus /metrics endpoint.

Example:
  nucleus serve
  nucleus serve --socket /tmp/nucleus.sock --metrics-port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("socket", "", "IPC endpoint path (default: platform-specific)")
	serveCmd.Flags().Int("metrics-port", 9090, "Prometheus /metrics HTTP port")

	_ = viper.BindPFlag("server.socket", serveCmd.Flags().Lookup("socket"))
	_ = viper.BindPFlag("server.metrics_port", serveCmd.Flags().Lookup("metrics-port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigForCommand()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.Default()

	if err := detectOllama(cfg); err != nil {
		return err
	}

	registry := buildPluginRegistry(cfg)

	prov, err := buildProvider(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		logger.Warn("serve: embedding client unavailable, RAG context disabled", "error", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m := metrics.New()

	tp, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return nucleuserr.Wrap(nucleuserr.KindConfig, "initialize telemetry", err)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	conversations := chatmanager.NewRegistry()
	newManager := newChatManagerFactory(ctx, cfg, prov, registry, embedder, store, logger)

	ix := indexer.New(indexer.Config{
		Extensions:      cfg.RAG.Indexer.Extensions,
		ExcludePatterns: cfg.RAG.Indexer.ExcludePatterns,
		ChunkSize:       cfg.RAG.Indexer.ChunkSize,
		ChunkOverlap:    cfg.RAG.Indexer.ChunkOverlap,
	}, embedder, store, logger)

	handler := ipc.NewRequestHandler(conversations, newManager, ix, store, logger)
	server := ipc.New(viper.GetString("server.socket"), handler.Handle, logger)

	metricsAddr := fmt.Sprintf(":%d", viper.GetInt("server.metrics_port"))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: m.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("serve: metrics server error", "error", err)
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	fmt.Printf("Nucleus serving (provider=%s, storage=%s)\n", cfg.LLM.Provider, cfg.Storage.StorageMode.Mode)
	fmt.Printf("  metrics: http://localhost%s/metrics\n", metricsAddr)

	return server.Serve(ctx)
}

// loadConfigForCommand loads the config file resolved by initConfig's viper
// search, falling back to defaults if none was found.
func loadConfigForCommand() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return config.LoadFromFile(used)
	}
	return config.DefaultConfig(), nil
}
