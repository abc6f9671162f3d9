package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PlanFile is the YAML overlay for a Plan. Zero fields keep the plan's value.
//
//	region: eu-west-1
//	names:
//	  bucket: acme-docs
//	chunking:
//	  max_tokens: 300
//	poll_interval: 10s
//	documents_dir: ./docs
type PlanFile struct {
	Project         string         `yaml:"project"`
	Region          string         `yaml:"region"`
	Names           Names          `yaml:"names"`
	EmbeddingModel  string         `yaml:"embedding_model"`
	ManagedPolicies []string       `yaml:"managed_policies"`
	Chunking        ChunkingPolicy `yaml:"chunking"`
	DocumentsDir    string         `yaml:"documents_dir"`
	PollInterval    string         `yaml:"poll_interval"`
	MaxPollAttempts int            `yaml:"max_poll_attempts"`
	SettleDelay     string         `yaml:"settle_delay"`
	UploadLimit     int            `yaml:"upload_limit"`
	StrictUploads   *bool          `yaml:"strict_uploads"`

	dir string
}

// LoadPlanFile parses the YAML plan at path. A relative documents_dir is
// resolved against the file's directory.
func LoadPlanFile(path string) (PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlanFile{}, fmt.Errorf("reading plan file: %w", err)
	}
	var f PlanFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return PlanFile{}, fmt.Errorf("parsing plan file %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Apply overlays the non-zero fields of f onto p.
func (f PlanFile) Apply(p *Plan) error {
	if f.Region != "" {
		p.Region = f.Region
	}
	overlay(&p.Names.Bucket, f.Names.Bucket)
	overlay(&p.Names.Role, f.Names.Role)
	overlay(&p.Names.Collection, f.Names.Collection)
	overlay(&p.Names.KnowledgeBase, f.Names.KnowledgeBase)
	overlay(&p.Names.DataSource, f.Names.DataSource)
	overlay(&p.EmbeddingModel, f.EmbeddingModel)

	if len(f.ManagedPolicies) > 0 {
		p.ManagedPolicies = f.ManagedPolicies
	}
	if f.Chunking.MaxTokens > 0 {
		p.Chunking.MaxTokens = f.Chunking.MaxTokens
	}
	if f.Chunking.OverlapPercentage > 0 {
		p.Chunking.OverlapPercentage = f.Chunking.OverlapPercentage
	}
	if f.MaxPollAttempts > 0 {
		p.MaxPollAttempts = f.MaxPollAttempts
	}
	if f.UploadLimit > 0 {
		p.UploadLimit = f.UploadLimit
	}
	if f.StrictUploads != nil {
		p.AbortOnUploadFailure = *f.StrictUploads
	}

	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("plan file poll_interval: %w", err)
		}
		p.PollInterval = d
	}
	if f.SettleDelay != "" {
		d, err := time.ParseDuration(f.SettleDelay)
		if err != nil {
			return fmt.Errorf("plan file settle_delay: %w", err)
		}
		p.SettleDelay = d
	}

	if f.DocumentsDir != "" {
		dir := f.DocumentsDir
		if !filepath.IsAbs(dir) && f.dir != "" {
			dir = filepath.Join(f.dir, dir)
		}
		docs, err := LoadDocumentDir(dir)
		if err != nil {
			return err
		}
		p.Documents = docs
	}
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
