/**
 * Tax Document Worker - Main Entry Point
 *
 * Extracts structured fields from tax documents (W-2, 1099, receipts,
 * bank statements, invoices) using Tesseract OCR and rule based field
 * extraction.
 *
 * Commands:
 * - serve:   HTTP API (sync extraction, optional job queue)
 * - consume: Asynq queue worker
 * - extract: run files locally, JSON to stdout, optional XLSX
 * - watch:   process documents dropped into an inbox directory
 */

package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
