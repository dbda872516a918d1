package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/taxdoc-worker/internal/queue"
	"github.com/adverant/nexus/taxdoc-worker/internal/server"
)

var serveWithConsumer bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves synchronous extraction on /api/v1/documents/extract. When REDIS_URL
is set, jobs can also be queued and looked up under /api/v1/documents/jobs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithConsumer, "with-consumer", false, "also consume queued jobs in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd, "taxdoc-server")

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg, logger.Named("taxdoc-processor"))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	deps := server.Deps{Processor: proc, Logger: logger}

	if cfg.QueueEnabled() {
		sm, err := newStorage(cfg, logger.Named("taxdoc-storage"))
		if err != nil {
			return err
		}
		defer sm.Close()

		producer, err := queue.NewProducer(cfg.RedisURL, cfg.QueueName, sm)
		if err != nil {
			return err
		}
		defer producer.Close()

		deps.Queue = producer
		deps.Jobs = sm

		if serveWithConsumer {
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
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			defer consumer.Stop(ctx)
		}
	} else if serveWithConsumer {
		return fmt.Errorf("--with-consumer requires REDIS_URL")
	} else {
		logger.Warn("REDIS_URL not configured, job endpoints disabled")
	}

	return server.New(cfg, deps).Run(ctx)
}
