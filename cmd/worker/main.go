package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"proctoring/internal/config"
	"proctoring/internal/queue"
	"proctoring/internal/store"
	"proctoring/internal/tally"
)

// Worker drains activity events from the Redis queue into per-student tallies.
func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := config.NewLogger(cfg, os.Stdout).With("component", "worker")

	if cfg.QueueBackend == "memory" {
		logger.Error("worker needs QUEUE_BACKEND=redis; the api tallies in-process with a memory queue")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will retry", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	t := tally.NewRedisTally(redisClient.Client)

	logger.Info("worker started, waiting for messages", "queue", queue.DefaultKey)
	if err := tally.Consume(ctx, q, t, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
