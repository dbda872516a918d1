package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/taxdoc-worker/internal/config"
	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/export"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

var (
	extractLanguage string
	extractTypeHint string
	extractXLSX     string
	extractPretty   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract fields from local documents",
	Long:  `Runs each file through the pipeline and prints one JSON object per file.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractLanguage, "lang", "l", "", "OCR language(s), e.g. eng or eng+deu (default DEFAULT_LANGUAGE)")
	extractCmd.Flags().StringVar(&extractTypeHint, "type", "", "document type hint (advisory)")
	extractCmd.Flags().StringVar(&extractXLSX, "xlsx", "", "also write results to this XLSX workbook")
	extractCmd.Flags().BoolVar(&extractPretty, "pretty", false, "indent JSON output")
	rootCmd.AddCommand(extractCmd)
}

// fileResult is the JSON emitted per input file
type fileResult struct {
	File string `json:"file"`
	*taxdoc.ExtractionResult
	ProcessingTimeMs int64  `json:"processingTime,omitempty"`
	ErrorCode        string `json:"errorCode,omitempty"`
	Error            string `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd, "taxdoc-extract")

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if extractPretty {
		enc.SetIndent("", "  ")
	}

	var workbook *export.Workbook
	if extractXLSX != "" {
		workbook = export.NewWorkbook(nil)
	}

	failed := 0
	for _, path := range args {
		out := extractFile(cmd.Context(), cfg, proc, path, extractLanguage, extractTypeHint, logger)
		if out.Error != "" {
			failed++
		} else if workbook != nil {
			workbook.Add(filepath.Base(path), out.ExtractionResult)
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if workbook != nil {
		if err := workbook.SaveAs(extractXLSX); err != nil {
			return err
		}
		logger.Info("Workbook written", "path", extractXLSX, "documents", workbook.Len())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// extractFile runs one file through proc under the configured timeout
func extractFile(ctx context.Context, cfg *config.Config, proc processor.DocumentProcessorInterface,
	path, language, typeHint string, logger logging.Sink) *fileResult {
	out := &fileResult{File: path}

	data, err := readDocument(path, cfg.MaxFileSize)
	if err != nil {
		out.ErrorCode = string(errors.ErrorInputValidation)
		out.Error = err.Error()
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ProcessingTimeoutDuration())
	defer cancel()

	jobID := uuid.NewString()
	result, err := proc.ProcessDocument(ctx, &processor.ProcessRequest{
		JobID:       jobID,
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Language:    language,
		TypeHint:    typeHint,
		Data:        data,
	})
	if err != nil {
		logger.Error("Extraction failed", "file", path, "job_id", jobID, "error", err)
		out.ErrorCode = string(errors.CodeOf(err))
		out.Error = err.Error()
		return out
	}

	out.ExtractionResult = result
	out.ProcessingTimeMs = result.ProcessingTime.Milliseconds()
	return out
}

// readDocument reads path, refusing files above maxSize
func readDocument(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := io.Reader(f)
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%s exceeds maximum size of %d bytes", path, maxSize)
	}
	return data, nil
}

// writeResultJSON writes out into dir as <base>.json
func writeResultJSON(dir string, out *fileResult) (string, error) {
	base := filepath.Base(out.File)
	target := filepath.Join(dir, base+".json")

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	tmp := target + ".tmp-" + fmt.Sprint(time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return target, nil
}
