package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// flags override the loaded configuration when set.
type flags struct {
	config string
	mode   string
	raceID int
	output string
	data   string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("pitwall", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "YAML config file (overrides PITWALL_CONFIG)")
	fs.StringVar(&f.mode, "mode", "", "training, prediction or weather")
	fs.IntVar(&f.raceID, "race", 0, "target raceId in prediction mode")
	fs.StringVar(&f.output, "output", "", "output path or s3://bucket/key")
	fs.StringVar(&f.data, "data", "", "archive directory")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func (f flags) apply(cfg *config.Config) {
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.raceID > 0 {
		cfg.RaceID = f.raceID
		if f.mode == "" {
			cfg.Mode = config.ModePrediction
		}
	}
	if f.output != "" {
		cfg.Output = f.output
	}
	if f.data != "" {
		cfg.DataDir = f.data
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		_, _ = fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if f.config != "" {
		_ = os.Setenv(config.EnvConfigFile, f.config)
	}
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx, f.apply)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "failed to load config:", err)
		return 1
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(ctx, cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	_, runErr := service.New(cfg, service.WithLogger(log.Named("service"))).Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn(ctx, "metrics textfile not written", logger.Error(err))
		}
	}

	if runErr != nil {
		log.Error(ctx, "run failed", logger.Error(runErr))
		_, _ = fmt.Fprintln(stderr, "pitwall:", runErr)
		return 1
	}
	return 0
}

func serveMetrics(ctx context.Context, addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "serving metrics", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", logger.Error(err))
		}
	}()
	return srv
}
