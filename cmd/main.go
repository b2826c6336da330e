package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/docker"
	"github.com/mosteligible/mcp-codemode/internal/kv"
	"github.com/mosteligible/mcp-codemode/internal/logging"
	"github.com/mosteligible/mcp-codemode/internal/proxy"
	"github.com/mosteligible/mcp-codemode/internal/sandbox"
	"github.com/mosteligible/mcp-codemode/internal/server"
	"github.com/mosteligible/mcp-codemode/internal/tools"
)

func main() {
	// Load .env file, falling back to the parent directory.
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	logging.Init()
	defer logging.Sync()
	log := logging.L()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration error", zap.Error(err))
	}

	driver, err := docker.NewDriver()
	if err != nil {
		log.Fatal("docker client unavailable", zap.Error(err))
	}

	pool := sandbox.NewPool(driver, cfg)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelStart()

	log.Info("starting sandbox pool",
		zap.String("image", cfg.SandboxImage),
		zap.Int("pool_size", cfg.PoolSize),
	)
	if err := pool.Start(startCtx); err != nil {
		log.Fatal("sandbox pool start failed", zap.Error(err))
	}

	store, err := kv.NewStore(nil)
	if err != nil {
		pool.Shutdown(context.Background())
		log.Fatal("credential store configuration error", zap.Error(err))
	}

	registry := tools.NewRegistry(pool, cfg)
	forwarder := proxy.New(store, cfg)
	srv := server.New(cfg, registry, forwarder)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()
	log.Info("mcp-codemode ready", zap.String("mcp_url", cfg.MCPURL()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	pool.Shutdown(shutdownCtx)
	if err := store.Close(); err != nil {
		log.Error("credential store close error", zap.Error(err))
	}

	log.Info("shutdown complete")
	os.Exit(exitCode)
}
