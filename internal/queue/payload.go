package queue

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
)

// TypeExtractDocument is the asynq task type for one extraction job
const TypeExtractDocument = "taxdoc:extract"

//go:embed payload.schema.json
var payloadSchemaJSON []byte

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

// JobPayload is the queued form of an extraction request. Document is
// base64 encoded on the wire.
type JobPayload struct {
	JobID            string `json:"jobId"`
	Filename         string `json:"filename,omitempty"`
	ContentType      string `json:"contentType,omitempty"`
	Language         string `json:"language,omitempty"`
	DocumentTypeHint string `json:"documentTypeHint,omitempty"`
	Document         []byte `json:"document"`
}

// ProcessRequest converts the payload into a processor request
func (p *JobPayload) ProcessRequest() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:       p.JobID,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Language:    p.Language,
		TypeHint:    p.DocumentTypeHint,
		Data:        p.Document,
	}
}

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("payload.schema.json", bytes.NewReader(payloadSchemaJSON)); err != nil {
			payloadSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile("payload.schema.json")
	})
	return payloadSchema, payloadSchemaErr
}

// ValidatePayload checks raw task bytes against the payload schema
func ValidatePayload(data []byte) error {
	schema, err := compiledPayloadSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}

// DecodePayload validates and decodes raw task bytes
func DecodePayload(data []byte) (*JobPayload, error) {
	if err := ValidatePayload(data); err != nil {
		return nil, err
	}
	var p JobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(p.Document) == 0 {
		return nil, fmt.Errorf("payload document is empty")
	}
	return &p, nil
}

// EncodePayload validates p and returns its wire form
func EncodePayload(p *JobPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if err := ValidatePayload(data); err != nil {
		return nil, err
	}
	return data, nil
}

// peekJobID extracts jobId from a payload that failed validation, if present.
func peekJobID(data []byte) string {
	var probe struct {
		JobID string `json:"jobId"`
	}
	if json.Unmarshal(data, &probe) != nil {
		return ""
	}
	return probe.JobID
}
