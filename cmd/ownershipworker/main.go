package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/chain"
	"github.com/0xmhha/ownershipworker/internal/classify"
	"github.com/0xmhha/ownershipworker/internal/config"
	"github.com/0xmhha/ownershipworker/internal/head"
	"github.com/0xmhha/ownershipworker/internal/logger"
	"github.com/0xmhha/ownershipworker/internal/mongostore"
	"github.com/0xmhha/ownershipworker/internal/ownership"
	"github.com/0xmhha/ownershipworker/internal/retry"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile        = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion       = flag.Bool("version", false, "Show version information and exit")
		rpcEndpoint       = flag.String("rpc", "", "Ethereum RPC endpoint URL")
		host              = flag.String("host", "", "Document store connection URI")
		name              = flag.String("name", "", "Document store database name")
		genesisBlock      = flag.Uint64("genesis-block", 0, "Block height to start indexing from")
		confirmationDepth = flag.Uint64("confirmation-depth", 0, "Number of blocks to stay behind chain head")
		persistCursor     = flag.Bool("persist-cursor", false, "Persist the processing cursor across restarts")
		logLevel          = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat         = flag.String("log-format", "", "Log format (json, console)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("ownershipworker version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var persistCursorOverride *bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "persist-cursor" {
			persistCursorOverride = persistCursor
		}
	})

	applyFlags(cfg, *rpcEndpoint, *host, *name, *genesisBlock, *confirmationDepth, persistCursorOverride, *logLevel, *logFormat)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting ownership worker",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.Uint64("genesis_block", cfg.Indexer.GenesisBlock),
		zap.Uint64("confirmation_depth", cfg.Indexer.ConfirmationDepth),
		zap.Bool("persist_cursor", cfg.Indexer.PersistCursor),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	chainClient, err := chain.NewClient(&chain.Config{
		Endpoint: cfg.RPC.Endpoint,
		Timeout:  cfg.RPC.Timeout,
		Logger:   log,
	})
	if err != nil {
		log.Fatal("failed to connect to chain RPC", zap.Error(err))
	}
	defer chainClient.Close()

	store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	if err != nil {
		log.Fatal("failed to connect to mongo", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error("failed to close mongo connection", zap.Error(err))
		}
	}()

	if err := store.Ping(ctx); err != nil {
		log.Fatal("mongo health probe failed", zap.Error(err))
	}
	log.Info("connected to mongo", zap.String("database", cfg.Mongo.Database))

	rpcLimiter := retry.NewLimiter(4, 4)
	classifier := classify.New(chainClient, store, log)

	headCell := &head.Cell{}
	headTracker := head.NewTracker(chainClient, headCell, 0, log, rpcLimiter)

	var cursorStore ownership.CursorStore
	if cfg.Indexer.PersistCursor {
		cursorStore = store
	}

	processor := ownership.New(chainClient, classifier, store, cursorStore, headCell, ownership.Config{
		GenesisBlock:      cfg.Indexer.GenesisBlock,
		ConfirmationDepth: cfg.Indexer.ConfirmationDepth,
	}, log, rpcLimiter)

	errChan := make(chan error, 2)
	go func() {
		errChan <- headTracker.Run(ctx)
	}()
	go func() {
		errChan <- processor.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped with error", zap.Error(err))
			cancel()
			<-errChan
			os.Exit(1)
		}
		cancel()
	}

	<-errChan
	log.Info("ownership worker stopped")
}

func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func applyFlags(cfg *config.Config, rpcEndpoint, host, name string, genesisBlock, confirmationDepth uint64, persistCursor *bool, logLevel, logFormat string) {
	if rpcEndpoint != "" {
		cfg.RPC.Endpoint = rpcEndpoint
	}
	if host != "" {
		cfg.Mongo.URI = host
	}
	if name != "" {
		cfg.Mongo.Database = name
	}
	if genesisBlock > 0 {
		cfg.Indexer.GenesisBlock = genesisBlock
	}
	if confirmationDepth > 0 {
		cfg.Indexer.ConfirmationDepth = confirmationDepth
	}
	if persistCursor != nil {
		cfg.Indexer.PersistCursor = *persistCursor
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
}
