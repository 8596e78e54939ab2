// Maia command line entry point.
//
// Usage:
//
//	maia run "request..." [more requests]   # execute requests through the core
//	maia chain --spec chain.yaml "input"    # run a prompt chain spec
//	maia version                            # show version information
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/maiahq/maia/audit"
	"github.com/maiahq/maia/config"
	"github.com/maiahq/maia/dispatch"
	"github.com/maiahq/maia/internal/metrics"
	"github.com/maiahq/maia/internal/telemetry"
	"github.com/maiahq/maia/llm"
	"github.com/maiahq/maia/orchestrator"
	"github.com/maiahq/maia/promptchain"
	"github.com/maiahq/maia/registry"
	"github.com/maiahq/maia/routing"
	"github.com/maiahq/maia/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "chain":
		runChain(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// core bundles the wired pipeline shared by the run and chain commands.
type core struct {
	cfg       *config.Config
	logger    *zap.Logger
	otel      *telemetry.Providers
	collector *metrics.Collector
	policy    *dispatch.Policy
	provider  llm.Provider
	sink      audit.Sink
	store     *audit.Store
}

func (c *core) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("closing audit store", zap.Error(err))
		}
	}
	if c.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.otel.Shutdown(ctx); err != nil {
			c.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	c.logger.Sync()
}

func buildCore(configPath, baseURL, apiKey string) (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := initLogger(cfg.Log)
	logger.Info("starting maia",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without it", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	sinks := []audit.Sink{}
	if cfg.Audit.Stream {
		sinks = append(sinks, audit.NewStreamSink(os.Stderr))
	}
	var store *audit.Store
	if cfg.Audit.StorePath != "" {
		store, err = audit.OpenStore(cfg.Audit.StorePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		sinks = append(sinks, store)
	}
	var sink audit.Sink = audit.NopSink{}
	if len(sinks) > 0 {
		sink = audit.NewMultiSink(sinks...)
	}

	table := dispatch.NewPriceTable()
	policy := dispatch.NewPolicy(dispatch.NewLedger(), dispatch.PolicyOptions{
		SessionCostCap:    cfg.Dispatch.SessionCostCap,
		RequestsPerSecond: cfg.Dispatch.RequestsPerSecond,
		Table:             table,
		Logger:            logger,
		Observer:          collector,
	})

	prices := make(map[string]float64)
	for _, tier := range []dispatch.Tier{dispatch.TierFast, dispatch.TierStandard, dispatch.TierPremium} {
		if p, ok := table.Price(tier); ok {
			prices[p.Model] = p.PricePer1K
		}
	}
	provider := llm.NewOpenAIProvider(llm.OpenAIOptions{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		PricePer1K: prices,
	}, logger)

	return &core{
		cfg:       cfg,
		logger:    logger,
		otel:      otelProviders,
		collector: collector,
		policy:    policy,
		provider:  provider,
		sink:      sink,
		store:     store,
	}, nil
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	baseURL := fs.String("base-url", envOr("MAIA_LLM_BASE_URL", "http://localhost:11434/v1"), "OpenAI-compatible endpoint")
	apiKey := fs.String("api-key", os.Getenv("MAIA_LLM_API_KEY"), "API key for the endpoint")
	fs.Parse(args)

	requests := fs.Args()
	if len(requests) == 0 {
		fmt.Fprintln(os.Stderr, "run requires at least one request")
		os.Exit(1)
	}

	c, err := buildCore(*configPath, *baseURL, *apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer c.close()

	handlers := registry.New(c.logger)
	if err := registerBuiltins(handlers, c.policy, c.provider, c.logger); err != nil {
		c.logger.Fatal("registering handlers", zap.Error(err))
	}

	stats := routing.NewStats()
	classifier := routing.NewClassifier(handlers, stats, c.logger)
	selector := routing.NewSelector(c.logger)
	orch := orchestrator.New(handlers, orchestrator.Options{
		MaxHandoffs:   c.cfg.Orchestrator.MaxHandoffs,
		RetryAttempts: c.cfg.Orchestrator.RetryAttempts,
		BackoffBase:   c.cfg.Orchestrator.BackoffBase(),
		CallTimeout:   c.cfg.Orchestrator.HandoffCallTimeout(),
		AuditSink:     c.sink,
		Stats:         stats,
		Metrics:       c.collector,
		Logger:        c.logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	results := make([]*orchestrator.ChainResult, len(requests))
	for i, req := range requests {
		g.Go(func() error {
			cls, err := classifier.Classify(req)
			if err != nil {
				return err
			}
			plan, err := selector.Select(cls)
			if err != nil {
				return err
			}
			task := types.NewTask(req)
			task.Complexity = cls.Complexity

			res, err := orch.Execute(ctx, task, plan)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	exitCode := 0
	for _, res := range results {
		enc.Encode(res)
		if res.Failed() {
			exitCode = 1
		}
	}
	c.logger.Info("session cost", zap.Float64("usd", c.policy.Ledger().Total()))
	os.Exit(exitCode)
}

func runChain(args []string) {
	fs := flag.NewFlagSet("chain", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	specPath := fs.String("spec", "", "Path to chain spec YAML")
	baseURL := fs.String("base-url", envOr("MAIA_LLM_BASE_URL", "http://localhost:11434/v1"), "OpenAI-compatible endpoint")
	apiKey := fs.String("api-key", os.Getenv("MAIA_LLM_API_KEY"), "API key for the endpoint")
	fs.Parse(args)

	if *specPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "chain requires --spec and an input argument")
		os.Exit(1)
	}

	chain, err := promptchain.Load(*specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load chain: %v\n", err)
		os.Exit(1)
	}

	c, err := buildCore(*configPath, *baseURL, *apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer c.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := promptchain.NewExecutor(c.policy, c.provider, c.logger)
	result, err := executor.Run(ctx, chain, fs.Arg(0), nil)
	if err != nil {
		c.logger.Error("chain failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Println(result.Final)
	c.logger.Info("session cost", zap.Float64("usd", c.policy.Ledger().Total()))
}

func printVersion() {
	fmt.Printf("maia %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Maia - multi-agent orchestration core

Usage:
  maia <command> [options]

Commands:
  run       Execute one or more requests through the orchestration pipeline
  chain     Run a prompt chain spec against the model endpoint
  version   Show version information
  help      Show this help message

Options for 'run' and 'chain':
  --config <path>     Path to configuration file (YAML)
  --base-url <url>    OpenAI-compatible endpoint (default $MAIA_LLM_BASE_URL)
  --api-key <key>     API key for the endpoint (default $MAIA_LLM_API_KEY)

Examples:
  maia run "summarize the attached report"
  maia run --config /etc/maia/config.yaml "plan a launch" "fix typos in README"
  maia chain --spec chains/review.yaml "draft text"
  maia version`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
