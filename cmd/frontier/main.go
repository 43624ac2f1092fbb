package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/crawlkit/frontier/internal/cmd/client"
	serverrun "github.com/crawlkit/frontier/internal/cmd/server"
	cfgpkg "github.com/crawlkit/frontier/internal/config"
	"github.com/crawlkit/frontier/internal/frontier"
	logpkg "github.com/crawlkit/frontier/pkg/log"
)

func main() {
	// Respect FRONTIER_LOG_LEVEL for CLI output as well as server start
	level := os.Getenv("FRONTIER_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "frontier",
		Short: "Frontier crawl queue CLI",
		Long:  "Frontier is a deduplicated, lease-based crawl work queue. This CLI manages the server and queue operations.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the frontier server (HTTP API)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			backend, _ := cmd.Flags().GetString("backend")
			redisAddr, _ := cmd.Flags().GetString("redis")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			dedup, _ := cmd.Flags().GetString("dedup")
			bloomCapacity, _ := cmd.Flags().GetInt("bloom-capacity")
			bloomFPRate, _ := cmd.Flags().GetFloat64("bloom-fp-rate")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if backend != "" {
				cfg.Backend = backend
			}
			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}
			if fsyncMode != "" {
				switch fsyncMode {
				case "always", "interval", "never":
					cfg.Fsync = fsyncMode
				default:
					return fmt.Errorf("invalid --fsync; use always|interval|never")
				}
			}
			if dedup != "" {
				cfg.Dedup.Kind = frontier.DedupKind(dedup)
			}
			if bloomCapacity > 0 {
				cfg.Dedup.BloomCapacity = bloomCapacity
			}
			if bloomFPRate > 0 {
				cfg.Dedup.BloomFPRate = bloomFPRate
			}
			if err := cfg.Dedup.Validate(); err != nil {
				return err
			}
			if logLevel != "" {
				_ = os.Setenv("FRONTIER_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("FRONTIER_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("FRONTIER_CONFIG"), "Path to JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (OS-specific default when empty)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("backend", "", "Queue backend: pebble|redis")
	serverStartCmd.Flags().String("redis", "", "Redis address for the redis backend")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("dedup", "", "Default dedup filter: exact|bloom")
	serverStartCmd.Flags().Int("bloom-capacity", 0, "Expected distinct keys for the bloom filter")
	serverStartCmd.Flags().Float64("bloom-fp-rate", 0, "Target bloom false-positive rate")
	serverStartCmd.Flags().String("log-level", os.Getenv("FRONTIER_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("FRONTIER_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewQueueCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("FRONTIER_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
