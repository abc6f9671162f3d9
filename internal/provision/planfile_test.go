package provision

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewPlan_Names(t *testing.T) {
	p := NewPlan("acme", time.Unix(42, 0))

	want := Names{
		Bucket:        "acme-documents-42",
		Role:          "acme-bedrock-role",
		Collection:    "acme-kb-collection",
		KnowledgeBase: "acme-knowledge-base",
		DataSource:    "acme-knowledge-base-s3-datasource",
	}
	if p.Names != want {
		t.Errorf("Names = %+v, want %+v", p.Names, want)
	}
	if p.Names.EncryptionPolicy() != "acme-kb-collection-encryption" {
		t.Errorf("EncryptionPolicy = %q", p.Names.EncryptionPolicy())
	}
	if p.Names.NetworkPolicy() != "acme-kb-collection-network" {
		t.Errorf("NetworkPolicy = %q", p.Names.NetworkPolicy())
	}
	if p.EmbeddingModelARN() != "arn:aws:bedrock:us-east-1::foundation-model/amazon.titan-embed-text-v2:0" {
		t.Errorf("EmbeddingModelARN = %q", p.EmbeddingModelARN())
	}
	if len(p.Documents) != 3 {
		t.Errorf("got %d default documents, want 3", len(p.Documents))
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadPlanFile_Overlay(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.Mkdir(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(docs, "b.md"), []byte("# B"), 0o644)
	os.WriteFile(filepath.Join(docs, "a.txt"), []byte("A"), 0o644)
	os.WriteFile(filepath.Join(docs, "skip.bin"), []byte{0}, 0o644)

	path := filepath.Join(dir, "plan.yaml")
	yml := `region: eu-west-1
names:
  bucket: acme-docs
chunking:
  max_tokens: 300
poll_interval: 10s
max_poll_attempts: 7
settle_delay: 5s
documents_dir: docs
strict_uploads: true
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadPlanFile(path)
	if err != nil {
		t.Fatalf("LoadPlanFile: %v", err)
	}
	p := NewPlan("acme", time.Unix(42, 0))
	if err := f.Apply(&p); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if p.Region != "eu-west-1" {
		t.Errorf("Region = %q", p.Region)
	}
	if p.Names.Bucket != "acme-docs" {
		t.Errorf("Bucket = %q", p.Names.Bucket)
	}
	if p.Names.Role != "acme-bedrock-role" {
		t.Errorf("Role overwritten: %q", p.Names.Role)
	}
	if p.Chunking.MaxTokens != 300 || p.Chunking.OverlapPercentage != 20 {
		t.Errorf("Chunking = %+v", p.Chunking)
	}
	if p.PollInterval != 10*time.Second || p.MaxPollAttempts != 7 || p.SettleDelay != 5*time.Second {
		t.Errorf("timing = %v/%d/%v", p.PollInterval, p.MaxPollAttempts, p.SettleDelay)
	}
	if !p.AbortOnUploadFailure {
		t.Error("strict_uploads not applied")
	}
	if len(p.Documents) != 2 || p.Documents[0].Name != "a.txt" || p.Documents[1].ContentType != "text/markdown" {
		t.Errorf("Documents = %+v", p.Documents)
	}
}

func TestLoadPlanFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	os.WriteFile(path, []byte("poll_interval: soon\n"), 0o644)

	f, err := LoadPlanFile(path)
	if err != nil {
		t.Fatalf("LoadPlanFile: %v", err)
	}
	p := NewPlan("acme", time.Now())
	if err := f.Apply(&p); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestResult_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bedrock_config.json")
	in := Result{
		KnowledgeBaseID: "KB1",
		DataSourceID:    "DS1",
		BucketName:      "b",
		CollectionName:  "c",
		RoleARN:         "arn:r",
		CreatedAt:       time.Unix(1, 0).UTC(),
	}
	if err := WriteResult(path, in); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	out, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if out.KnowledgeBaseID != "KB1" || out.RoleARN != "arn:r" || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("ReadResult = %+v", out)
	}
}

func TestReadResult_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	os.WriteFile(path, []byte(`{"bucket_name":"b"}`), 0o644)
	if _, err := ReadResult(path); err == nil {
		t.Error("expected error for artifact without knowledge_base_id")
	}
}
