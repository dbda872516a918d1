package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/adverant/nexus/taxdoc-worker/internal/config"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

// echoRecognizer returns the document bytes as recognized text.
type echoRecognizer struct{}

func (echoRecognizer) Name() string { return "echo" }

func (echoRecognizer) Recognize(_ context.Context, h *tempstore.Handle, _ string) (*processor.RecognitionResult, error) {
	data, err := h.ReadAll()
	if err != nil {
		return nil, err
	}
	return &processor.RecognitionResult{Text: string(data), Confidence: 95, Engine: "echo"}, nil
}

func useEchoProcessor(t *testing.T) {
	t.Helper()
	original := newProcessor
	newProcessor = func(cfg *config.Config, logger logging.Sink) (processor.DocumentProcessorInterface, error) {
		return processor.NewDocumentProcessor(&processor.ProcessorConfig{
			Store:           tempstore.NewMemoryStore(),
			Recognizer:      echoRecognizer{},
			DefaultLanguage: cfg.DefaultLanguage,
			MaxFileSize:     cfg.MaxFileSize,
			Logger:          logger,
		})
	}
	t.Cleanup(func() { newProcessor = original })
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TEMP_STORAGE", "memory")
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		extractXLSX, extractTypeHint, extractLanguage = "", "", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractCommand(t *testing.T) {
	useEchoProcessor(t)
	dir := t.TempDir()
	receipt := writeFile(t, dir, "coffee.txt", "RECEIPT\nCoffee Shop\nLatte  $4.50\nMuffin $3.25\nTotal: $7.75")
	w2 := writeFile(t, dir, "w2.txt", "Form W-2 Wage and Tax Statement\nEmployee name: Jane Doe\nWages, tips, other compensation: $52,340.00")
	xlsx := filepath.Join(dir, "out.xlsx")

	out, err := runRoot(t, "extract", "--env-file", "", "--xlsx", xlsx, receipt, w2)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, receipt, first["file"])
	assert.Equal(t, "Receipt", first["documentType"])
	assert.Equal(t, 7.75, first["extractedData"].(map[string]any)["total"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "W-2", second["documentType"])
	assert.Equal(t, "Jane Doe", second["extractedData"].(map[string]any)["employeeName"])

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Documents", "W-2", "Receipt"}, f.GetSheetList())
}

func TestExtractCommandReportsFailures(t *testing.T) {
	useEchoProcessor(t)
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.png", "")
	missing := filepath.Join(dir, "missing.png")

	out, err := runRoot(t, "extract", "--env-file", "", empty, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 documents failed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first fileResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INPUT_VALIDATION", first.ErrorCode)
	assert.Nil(t, first.ExtractionResult)
}

func TestReadDocumentSizeLimit(t *testing.T) {
	path := writeFile(t, t.TempDir(), "big.png", strings.Repeat("a", 100))

	_, err := readDocument(path, 50)
	assert.Error(t, err)

	data, err := readDocument(path, 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestWriteResultJSON(t *testing.T) {
	dir := t.TempDir()
	target, err := writeResultJSON(dir, &fileResult{File: "/inbox/scan.png", ErrorCode: "RECOGNITION_FAILED", Error: "boom"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scan.png.json"), target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"errorCode": "RECOGNITION_FAILED"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
