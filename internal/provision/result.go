package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultResultPath is where the CLI writes the provisioning artifact.
const DefaultResultPath = "bedrock_config.json"

// Result is the bundle of identifiers produced by a successful run.
type Result struct {
	KnowledgeBaseID string          `json:"knowledge_base_id"`
	DataSourceID    string          `json:"data_source_id"`
	BucketName      string          `json:"bucket_name"`
	CollectionName  string          `json:"collection_name"`
	CollectionARN   string          `json:"collection_arn,omitempty"`
	RoleARN         string          `json:"role_arn"`
	Region          string          `json:"region,omitempty"`
	IngestionJobID  string          `json:"ingestion_job_id,omitempty"`
	UploadFailures  []UploadFailure `json:"upload_failures,omitempty"`
	Steps           []StepResult    `json:"steps,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WriteResult writes r to path as indented JSON.
func WriteResult(path string, r Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// ReadResult loads an artifact written by WriteResult.
func ReadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("parsing result %s: %w", path, err)
	}
	if r.KnowledgeBaseID == "" {
		return Result{}, fmt.Errorf("result %s has no knowledge_base_id", path)
	}
	return r, nil
}
