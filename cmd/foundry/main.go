// Package main implements the entry point for the Foundry deployment
// service. Foundry compiles visual infrastructure canvases into
// CloudFormation documents, deploys them, and streams provisioning
// progress back to the canvas editor.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/csakilan/FoundryBackend/config"
	"github.com/csakilan/FoundryBackend/costs"
	"github.com/csakilan/FoundryBackend/deployer"
	gateway "github.com/csakilan/FoundryBackend/gateway/http"
	"github.com/csakilan/FoundryBackend/generation"
	"github.com/csakilan/FoundryBackend/health"
	"github.com/csakilan/FoundryBackend/hub"
	"github.com/csakilan/FoundryBackend/metric"
	"github.com/csakilan/FoundryBackend/provisioner"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "foundry"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	slog.Info("starting foundry",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"region", cfg.AWS.Region)

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	ctx := context.Background()
	clients, err := buildAWSClients(ctx, cfg)
	if err != nil {
		return err
	}

	registry := metric.NewMetricsRegistry()
	stopMetrics := startMetricsServer(cfg, registry)
	defer stopMetrics()

	gw, trackingHub, err := buildService(cfg, clients, registry, logger)
	if err != nil {
		return err
	}
	defer trackingHub.Close()

	return runWithSignalHandling(ctx, gw, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and installs a bootstrap logger so config
// errors are reported in the configured shape once loading succeeds.
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	slog.SetDefault(setupLogger("info", "json"))
	return cliCfg, false, nil
}

// loadConfiguration layers the optional config file over built-in
// defaults, applies flag overrides and validates the result.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides lets explicit flags win over file and environment
// values. Zero values mean the flag was not set.
func applyFlagOverrides(cfg *config.Config, cli *CLIConfig) {
	if cli.Port != 0 {
		cfg.Server.Port = cli.Port
	}
	if cli.Region != "" {
		cfg.AWS.Region = cli.Region
	}
	if cli.StoreDir != "" {
		cfg.Store.Directory = cli.StoreDir
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
}

// awsClients bundles the SDK clients the service talks to.
type awsClients struct {
	cloudFormation *cloudformation.Client
	ec2            *ec2.Client
	rds            *rds.Client
	pricing        *pricing.Client
}

func buildAWSClients(ctx context.Context, cfg *config.Config) (*awsClients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	base, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// The pricing catalog only has an endpoint in us-east-1.
	pricingCfg := base.Copy()
	pricingCfg.Region = "us-east-1"

	return &awsClients{
		cloudFormation: cloudformation.NewFromConfig(base),
		ec2:            ec2.NewFromConfig(base),
		rds:            rds.NewFromConfig(base),
		pricing:        pricing.NewFromConfig(pricingCfg),
	}, nil
}

// startMetricsServer runs the Prometheus endpoint when enabled and
// returns its stop function.
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}

	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("metrics server started", "address", srv.Address())

	return func() {
		if err := srv.Stop(); err != nil {
			slog.Warn("stopping metrics server", "error", err)
		}
	}
}

// buildService wires the deployment pipeline end to end: provisioning
// engine, generation store, deployer, tracking hub, cost estimator,
// health monitor and the gateway that serves them.
func buildService(cfg *config.Config, clients *awsClients,
	registry *metric.MetricsRegistry, logger *slog.Logger) (*gateway.Server, *hub.Hub, error) {

	engine := provisioner.NewAWSEngine(clients.cloudFormation)

	store, err := generation.NewStore(cfg.Store.Directory)
	if err != nil {
		return nil, nil, fmt.Errorf("open generation store: %w", err)
	}

	dep, err := deployer.New(engine, clients.ec2, clients.rds,
		deployer.WithStore(store),
		deployer.WithStackPrefix(cfg.Deploy.StackPrefix),
		deployer.WithKeyPairs(cfg.Deploy.KeyPairs),
		deployer.WithLogger(logger),
		deployer.WithMetrics(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create deployer: %w", err)
	}

	trackingHub, err := hub.New(engine,
		hub.WithPollInterval(cfg.Deploy.PollInterval),
		hub.WithHoldOpen(cfg.Deploy.HoldOpenDelay),
		hub.WithLogger(logger),
		hub.WithMetrics(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create tracking hub: %w", err)
	}

	estimator, err := costs.New(clients.pricing, costs.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("create estimator: %w", err)
	}

	monitor := health.NewMonitor()
	monitor.Register("generation-store", func(ctx context.Context) health.Status {
		_, err := store.List(ctx)
		return health.FromError("generation-store", err)
	})

	gw, err := gateway.New(gateway.Config{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		CORSOrigins: cfg.Server.CORSOrigins,
		Region:      cfg.AWS.Region,
	}, dep, trackingHub,
		gateway.WithEstimator(estimator),
		gateway.WithMonitor(monitor),
		gateway.WithLogger(logger),
		gateway.WithMetrics(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create gateway: %w", err)
	}

	return gw, trackingHub, nil
}

// runWithSignalHandling serves until SIGINT or SIGTERM arrives, then
// drains the gateway within the shutdown timeout.
func runWithSignalHandling(ctx context.Context, gw *gateway.Server,
	shutdownTimeout time.Duration) error {

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- gw.Start(context.Background(), ready)
	}()

	select {
	case <-ready:
		slog.Info("foundry started")
	case err := <-serveErr:
		return fmt.Errorf("start gateway: %w", err)
	case <-signalCtx.Done():
		return gw.Stop(shutdownTimeout)
	}

	select {
	case <-signalCtx.Done():
		slog.Info("received shutdown signal")
		stopErr := gw.Stop(shutdownTimeout)
		if err := <-serveErr; err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		if stopErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", stopErr)
		}
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
	}

	slog.Info("foundry shutdown complete")
	return nil
}
