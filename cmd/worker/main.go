package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"classboard/internal/audit"
	"classboard/internal/config"
	"classboard/internal/logger"
	"classboard/internal/queue"
	"classboard/internal/store"
)

// Worker consumes marking audit events published by the API and persists
// them for the attempts feed.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Env)
	log := logger.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classboard:marks")
	}

	repo := audit.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Info("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "mark" {
			continue
		}

		var attempt audit.Attempt
		if err := json.Unmarshal(msg.Body, &attempt); err != nil {
			log.Warnf("bad audit payload: %v", err)
			continue
		}

		if _, err := repo.InsertAttempt(ctx, attempt); err != nil {
			log.Errorf("insert attempt for student %s failed: %v", attempt.StudentID, err)
			continue
		}
		log.Infof("recorded %s attempt for student %s subject %q", attempt.Outcome, attempt.StudentID, attempt.SubjectID)
	}

	log.Info("worker stopped")
}
