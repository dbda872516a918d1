package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/taxdoc-worker/internal/ingest"
)

var (
	watchOutDir      string
	watchInitialScan bool
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Extract documents dropped into an inbox directory",
	Long:  `Watches DIR recursively and writes <file>.json results to the output directory.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "", "result directory (default DIR/results)")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", true, "process files already in DIR")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd, "taxdoc-watch")
	inbox := args[0]

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	outDir := watchOutDir
	if outDir == "" {
		outDir = filepath.Join(inbox, "results")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	proc, err := newProcessor(cfg, logger.Named("taxdoc-processor"))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{inbox},
		InitialScan: watchInitialScan,
		Debounce:    watchDebounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Watching inbox", "dir", inbox, "out", outDir)

	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			out := extractFile(ctx, cfg, proc, path, "", "", logger)
			target, err := writeResultJSON(outDir, out)
			if err != nil {
				logger.Error("Failed to write result", "file", path, "error", err)
				continue
			}
			logger.Info("Document processed", "file", path, "result", target, "error_code", out.ErrorCode)
		case err, ok := <-errs:
			if ok {
				logger.Warn("Watcher reported error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}
