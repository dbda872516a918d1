package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/taxdoc-worker/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Process queued extraction jobs",
	Args:  cobra.NoArgs,
	RunE:  runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd, "taxdoc-worker")

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	if !cfg.QueueEnabled() {
		return fmt.Errorf("REDIS_URL is required to consume jobs")
	}

	sm, err := newStorage(cfg, logger.Named("taxdoc-storage"))
	if err != nil {
		return err
	}
	defer sm.Close()

	proc, err := newProcessor(cfg, logger.Named("taxdoc-processor"))
	if err != nil {
		return err
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		Recorder:          sm,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
		Logger:            logger.Named("taxdoc-queue"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("Worker ready", "queue", cfg.QueueName, "concurrency", cfg.WorkerConcurrency)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	return consumer.Stop(ctx)
}
