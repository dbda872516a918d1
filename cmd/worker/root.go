package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/taxdoc-worker/internal/clients"
	"github.com/adverant/nexus/taxdoc-worker/internal/config"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "taxdoc-worker",
	Short:         "Tax document intake and field extraction",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")
}

// loadConfig seeds the environment from envFile (if present) and loads config
func loadConfig(logger logging.Sink) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logger.Debug("Environment file not loaded, using system environment", "file", envFile)
		}
	}
	return config.LoadConfig()
}

func newLogger(cmd *cobra.Command, prefix string) *logging.Logger {
	return logging.NewLoggerTo(cmd.ErrOrStderr(), prefix)
}

// newProcessor builds the extraction pipeline. Tests replace it.
var newProcessor = func(cfg *config.Config, logger logging.Sink) (processor.DocumentProcessorInterface, error) {
	store, err := tempstore.New(cfg.TempStorage, cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize temporary storage: %w", err)
	}

	registry, err := taxdoc.LoadRegistry(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	return processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Store:           store,
		Recognizer:      newRecognizer(cfg, logger),
		Registry:        registry,
		DefaultLanguage: cfg.DefaultLanguage,
		MaxFileSize:     cfg.MaxFileSize,
		Logger:          logger,
	})
}

func newRecognizer(cfg *config.Config, logger logging.Sink) processor.Recognizer {
	if cfg.OCREngine == "remote" {
		return processor.NewRemoteOCR(processor.RemoteOCRConfig{
			Client: clients.NewVisionClient(clients.VisionClientConfig{
				BaseURL: cfg.OCRServiceURL,
				APIKey:  cfg.OCRServiceAPIKey,
				Logger:  logger,
			}),
			AsyncThreshold: cfg.OCRAsyncThreshold,
			PollInterval:   cfg.OCRPollInterval,
			Logger:         logger,
		})
	}
	return processor.NewTesseractOCR(&processor.TesseractConfig{
		TessdataPrefix: cfg.TessdataPrefix,
		Logger:         logger,
	})
}

func newStorage(cfg *config.Config, logger logging.Sink) (*storage.StorageManager, error) {
	return storage.NewStorageManager(&storage.StorageConfig{
		RedisURL:    cfg.RedisURL,
		KeyPrefix:   cfg.QueueName,
		ResultTTL:   cfg.ResultTTL,
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
