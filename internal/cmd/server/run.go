package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/crawlkit/frontier/internal/config"
	"github.com/crawlkit/frontier/internal/runtime"
	httpserver "github.com/crawlkit/frontier/internal/server/http"
	logpkg "github.com/crawlkit/frontier/pkg/log"
)

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

type Options struct {
	Config cfgpkg.Config
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := &logpkg.Config{
		Level:  getenvDefault("FRONTIER_LOG_LEVEL", "info"),
		Format: getenvDefault("FRONTIER_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting frontier server",
		logpkg.Str("backend", opts.Config.Backend),
		logpkg.Str("http", opts.Config.HTTPAddr),
		logpkg.Str("dedup", string(opts.Config.Dedup.Kind)),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	hsrv, err := httpserver.New(rt, procLogger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.Config.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()

	<-sctx.Done()
	// Shut the server down before closing the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}
