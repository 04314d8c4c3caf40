package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/server"
	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/internal/telemetry"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/config"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
)

type options struct {
	configPath  string
	dataset     string
	httpAddr    string
	grpcAddr    string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func main() {
	fs := flag.NewFlagSet("tabbenchd", flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML daemon config")
	fs.StringVar(&opts.dataset, "dataset", "", "dataset file (overrides recipe.dataset)")
	fs.StringVar(&opts.httpAddr, "http-addr", "", "HTTP listen address (overrides server.http_addr)")
	fs.StringVar(&opts.grpcAddr, "grpc-addr", "", "gRPC listen address (overrides server.grpc_addr)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address; empty serves /metrics on the HTTP listener")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tabbenchd:", err)
		os.Exit(2)
	}

	log, err := logger.NewFormat(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tabbenchd:", err)
		os.Exit(2)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("tabbenchd failed", "error", err)
		os.Exit(1)
	}
}

// buildConfig loads the config file, if any, and applies flag overrides.
func buildConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.dataset != "" {
		cfg.Recipe.Dataset = opts.dataset
	}
	if opts.httpAddr != "" {
		cfg.Server.HTTPAddr = opts.httpAddr
	}
	if opts.grpcAddr != "" {
		cfg.Server.GRPCAddr = opts.grpcAddr
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}

	if cfg.Recipe.Dataset == "" {
		return nil, errors.New("a dataset is required: set recipe.dataset in -config or pass -dataset")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	factory, err := benchmark.RecipeFromConfig(cfg.Recipe).CreateFactoryContext(ctx)
	if err != nil {
		return err
	}

	provider, err := telemetry.NewPrometheus("tabbenchd")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("meter provider shutdown error", "error", err)
		}
	}()
	meters, err := telemetry.New(provider)
	if err != nil {
		return err
	}

	store := session.NewStore(factory, session.Limits{
		MaxProblems:   cfg.Sessions.MaxProblems,
		MaxEvaluators: cfg.Sessions.MaxEvaluators,
	})
	store.SetObserver(meters)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var httpServers []*http.Server
	serveHTTP := func(name, addr string, h http.Handler) {
		srv := &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		httpServers = append(httpServers, srv)
		go func() {
			logger.Info(name+" server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(name+" server error", "error", err)
				stop()
			}
		}()
	}

	if cfg.Server.HTTPAddr != "" {
		api := server.NewHTTPServer(store)
		if cfg.Server.MetricsAddr == "" {
			api.Handle("/metrics", provider.Handler())
		}
		serveHTTP("HTTP", cfg.Server.HTTPAddr, api.Handler())
	}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", provider.Handler())
		serveHTTP("metrics", cfg.Server.MetricsAddr, mux)
	}

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen for gRPC on %s: %w", cfg.Server.GRPCAddr, err)
		}
		// TODO: TLS and per-client auth before exposing beyond localhost.
		grpcServer = grpc.NewServer()
		server.RegisterBenchmarkServer(grpcServer, server.NewGRPCServer(store))
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	for _, srv := range httpServers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "addr", srv.Addr, "error", err)
		}
	}
	return nil
}
