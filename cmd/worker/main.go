/**
 * NutriScan Worker - Main Entry Point
 *
 * Go worker turning food photos and nutrition-label photos into nutrient
 * records.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed scan queue
 * - Photo pipeline: image classifier -> portion weight estimate -> Open Food
 *   Facts lookup -> portion-scaled nutrient record
 * - Label pipeline: binarization -> Tesseract OCR -> nutrient field parser
 * - PostgreSQL persistence for scan lifecycle and results
 * - Redis status sets and pub/sub events for queue-side consumers
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nutriscan/scan-worker/internal/config"
	"github.com/nutriscan/scan-worker/internal/processor"
	"github.com/nutriscan/scan-worker/internal/queue"
	"github.com/nutriscan/scan-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("NutriScan worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Queue=%s, Workers=%d",
		cfg.RedisURL, cfg.QueueName, cfg.WorkerConcurrency)

	// Initialize scan store
	log.Printf("Connecting to PostgreSQL...")
	store, err := storage.NewScanStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize scan store: %v", err)
	}
	defer store.Close()
	log.Printf("Scan store initialized")

	// Initialize Redis status tracker
	log.Printf("Connecting to Redis status tracker...")
	status, err := queue.NewStatusTracker(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize status tracker: %v", err)
	}
	defer status.Close()
	log.Printf("Status tracker initialized")

	// Initialize scan processor
	log.Printf("Initializing scan processor...")
	proc, err := processor.NewScanProcessor(&processor.ProcessorConfig{
		ClassifierURL:    cfg.ClassifierURL,
		OpenFoodFactsURL: cfg.OpenFoodFactsURL,
		TesseractPath:    cfg.TesseractPath,
		LookupTimeout:    time.Duration(cfg.LookupTimeoutMs) * time.Millisecond,
		Calibration: processor.Calibration{
			PixelToCmRatio: cfg.PixelToCmRatio,
			SlabHeightCm:   cfg.SlabHeightCm,
			DensityGCm3:    cfg.DensityGCm3,
		},
		MaskThreshold: uint8(cfg.MaskThreshold),
		Store:         store,
	})
	if err != nil {
		log.Fatalf("Failed to initialize scan processor: %v", err)
	}
	log.Printf("Scan processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		Processor:   proc,
		Status:      status,
		ScanTimeout: time.Duration(cfg.ScanTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Start queue consumer
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("NutriScan worker is READY (queue=%s, workers=%d)", cfg.QueueName, cfg.WorkerConcurrency)
	log.Printf("Waiting for scans...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	if err := healthCheck(store); err != nil {
		log.Printf("Database unhealthy at shutdown: %v", err)
	}

	log.Printf("Shutdown complete")
}

func healthCheck(store *storage.ScanStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
