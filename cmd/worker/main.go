/**
 * OCR Feedback Worker - Main Entry Point
 *
 * Consumes corrected business-card documents enqueued by the annotation
 * editor and keeps them for training the field detector.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed feedback queue
 * - PostgreSQL: one corrected sample per contact
 * - Qdrant: text-shape vector per mapped block, with its field
 * - Redis counters and events for mapping statistics
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/newwdead/bizcard-annotator/internal/config"
	"github.com/newwdead/bizcard-annotator/internal/detect"
	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/queue"
	"github.com/newwdead/bizcard-annotator/internal/storage"
)

const statsInterval = 5 * time.Minute

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("OCR feedback worker starting (env=%s)...", cfg.Environment)
	log.Printf("Configuration loaded: Redis=%s, Qdrant=%s/%s, Workers=%d",
		cfg.RedisURL, cfg.QdrantURL, cfg.QdrantCollection, cfg.WorkerConcurrency)

	detector := detect.Default()

	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(&storage.ManagerConfig{
		DatabaseURL:      cfg.DatabaseURL,
		QdrantURL:        cfg.QdrantURL,
		QdrantCollection: cfg.QdrantCollection,
		Dims:             detect.ShapeDims,
		Vectorize:        detector.ShapeVector,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	log.Printf("Storage manager initialized")

	stats, err := queue.NewStats(cfg.RedisURL, cfg.FeedbackQueue)
	if err != nil {
		storageManager.Close()
		log.Fatalf("Failed to initialize feedback stats: %v", err)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.FeedbackQueue,
		Concurrency:       cfg.WorkerConcurrency,
		Store:             storageManager,
		Stats:             stats,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
		Logger:            logging.NewLogger("worker"),
	})
	if err != nil {
		storageManager.Close()
		stats.Close()
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("OCR feedback worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.FeedbackQueue)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Shape vector size: %d", detect.ShapeDims)
	log.Printf("Consumer: %v", consumer.GetStatistics())
	log.Printf("===========================================")

	go reportStats(ctx, stats, storageManager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	cancel()

	if err := consumer.Stop(context.Background()); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	if err := stats.Close(); err != nil {
		log.Printf("Error closing Redis: %v", err)
	}

	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// reportStats logs the feedback counters until ctx is done
func reportStats(ctx context.Context, stats *queue.Stats, sm *storage.StorageManager) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := sm.HealthCheck(ctx); err != nil {
			log.Printf("[Stats] Storage unhealthy: %v", err)
		}

		counters, err := stats.GetStats(ctx)
		if err != nil {
			log.Printf("[Stats] Failed to read counters: %v", err)
			continue
		}
		fields, _ := stats.FieldCounts(ctx)
		log.Printf("[Stats] samples=%d contacts=%d agreement=%d/%d confirmed=%v",
			counters["samples"], counters["contacts"], counters["agreed"], counters["compared"], fields)

		if storeStats, err := sm.GetStats(ctx); err == nil {
			log.Printf("[Stats] storage=%v", storeStats)
		}
	}
}
