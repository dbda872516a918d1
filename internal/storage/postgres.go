/**
 * PostgreSQL Client for the tax document worker
 *
 * Durable job tracking: status, detected type, confidence and extracted
 * fields. Document bytes are never written here.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
)

const defaultSchema = "taxdoc"

// PostgresClient handles database operations
type PostgresClient struct {
	db     *sql.DB
	schema string
}

// sanitizeConfidence clamps confidence to [0, 100] and rounds to 2 decimals
// so it always fits NUMERIC(5,2).
func sanitizeConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0.0 {
		return 0.0
	}
	if confidence > 100.0 {
		return 100.0
	}
	return math.Round(confidence*100) / 100
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db, schema: defaultSchema}, nil
}

func (p *PostgresClient) table() string {
	return pq.QuoteIdentifier(p.schema) + ".extraction_jobs"
}

// EnsureSchema creates the schema and jobs table when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(p.schema)),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id                 TEXT PRIMARY KEY,
			status             TEXT NOT NULL,
			filename           TEXT,
			content_type       TEXT,
			language           TEXT,
			document_type      TEXT,
			confidence         NUMERIC(5,2),
			processing_time_ms BIGINT,
			error_code         TEXT,
			error_message      TEXT,
			fields             JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, p.table()),
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

// UpdateJobStatus upserts the job row
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update == nil || update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	var fieldsJSON []byte
	if update.ExtractedData != nil {
		data, err := json.Marshal(update.ExtractedData)
		if err != nil {
			return fmt.Errorf("failed to marshal extracted fields: %w", err)
		}
		fieldsJSON = sanitizeJSONForPostgres(data)
	}

	// UPSERT so a job can be recorded by whichever side reaches the database first
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (
			id, status, filename, content_type, language, document_type,
			confidence, processing_time_ms, error_code, error_message, fields,
			created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7::NUMERIC(5,2), 0), NULLIF($8::BIGINT, 0), NULLIF($9, ''), NULLIF($10, ''),
			COALESCE($11::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filename = COALESCE(EXCLUDED.filename, %[1]s.filename),
			content_type = COALESCE(EXCLUDED.content_type, %[1]s.content_type),
			language = COALESCE(EXCLUDED.language, %[1]s.language),
			document_type = COALESCE(EXCLUDED.document_type, %[1]s.document_type),
			confidence = COALESCE(EXCLUDED.confidence, %[1]s.confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, %[1]s.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			fields = CASE WHEN $11::jsonb IS NULL THEN %[1]s.fields ELSE EXCLUDED.fields END,
			updated_at = NOW()
		RETURNING id
	`, p.table())

	var returnedID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,                          // $1
		string(update.Status),                 // $2
		update.Filename,                       // $3
		update.ContentType,                    // $4
		update.Language,                       // $5
		update.DocumentType,                   // $6
		sanitizeConfidence(update.Confidence), // $7
		update.ProcessingTimeMs,               // $8
		update.ErrorCode,                      // $9
		update.ErrorMessage,                   // $10
		nullableJSON(fieldsJSON),              // $11
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJobByID retrieves a job row
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (*JobRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			id, status,
			COALESCE(filename, ''), COALESCE(content_type, ''), COALESCE(language, ''),
			COALESCE(document_type, ''), COALESCE(confidence, 0), COALESCE(processing_time_ms, 0),
			COALESCE(error_code, ''), COALESCE(error_message, ''), fields,
			created_at, updated_at
		FROM %s
		WHERE id = $1
	`, p.table())

	var (
		record     JobRecord
		status     string
		fieldsJSON []byte
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&record.JobID, &status,
		&record.Filename, &record.ContentType, &record.Language,
		&record.DocumentType, &record.Confidence, &record.ProcessingTimeMs,
		&record.ErrorCode, &record.ErrorMessage, &fieldsJSON,
		&record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	record.Status = JobStatus(status)
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &record.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields for job %s: %w", jobID, err)
		}
	}

	return &record, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns database connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

func nullableJSON(data []byte) interface{} {
	if data == nil {
		return nil
	}
	return string(data)
}
