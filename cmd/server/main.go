package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	env "github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-notify/auth"
	"chat-notify/internal"
	"chat-notify/projection"
	"chat-notify/repositories"
	"chat-notify/runtime"
	"chat-notify/runtime/workers"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the engine lifecycle, and
// centralizes error reporting, so every defer (database close, index
// close) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeCfg := bluge.DefaultConfig(config.BlugeFilepath)
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories sharing one change log
	eventLog := repositories.NewEventLog(db, logger)
	users := repositories.NewUserRepository(db, logger)
	chats := repositories.NewChatRepository(db, eventLog, logger)

	if err := users.EnsureDefaults(); err != nil {
		return exitRuntime, fmt.Errorf("bootstrap defaults failed: %w", err)
	}

	// 4. Engine
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	supervisor := workers.NewSupervisor(logger)
	engine := runtime.NewEngine(eventLog, chats, tokens, supervisor, runtime.Options{
		Shards:            config.DispatchShards,
		ShardBuffer:       config.ShardBufferSize,
		OutboundQueueSize: config.OutboundQueueSize,
		TailBatchSize:     config.TailBatchSize,
		PollInterval:      config.PollInterval,
		SinkTimeout:       config.SinkTimeout,
		CatchupTimeout:    config.CatchupTimeout,
		RetentionWindow:   config.RetentionWindow,
		RetentionInterval: config.RetentionInterval,
		TelemetryInterval: config.TelemetryInterval,
	}, logger)
	engine.Add(projection.NewSearchIndex(blugeWriter, logger))

	// 5. Lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Signal received, shutting down")
		engine.Stop()
		cancel()
	}()

	if err := engine.Start(ctx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
