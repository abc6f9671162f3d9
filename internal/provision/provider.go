package provision

import "context"

// ObjectStore is the managed object store holding seed documents.
type ObjectStore interface {
	CreateBucket(ctx context.Context, name, region string) error
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// AccessControl manages the role the knowledge index assumes.
type AccessControl interface {
	// CreateRole returns the new role's ARN.
	CreateRole(ctx context.Context, name, trustPolicy, description string) (string, error)
	GetRole(ctx context.Context, name string) (string, error)
	AttachRolePolicy(ctx context.Context, role, policyARN string) error
	PutRolePolicy(ctx context.Context, role, policyName, document string) error
}

// PolicyKind distinguishes collection security policies.
type PolicyKind string

const (
	PolicyEncryption PolicyKind = "encryption"
	PolicyNetwork    PolicyKind = "network"
)

// CollectionStatus mirrors the provider's collection lifecycle.
type CollectionStatus string

const (
	CollectionCreating CollectionStatus = "CREATING"
	CollectionActive   CollectionStatus = "ACTIVE"
	CollectionFailed   CollectionStatus = "FAILED"
)

// Collection is a vector-search collection.
type Collection struct {
	ID     string
	Name   string
	ARN    string
	Status CollectionStatus
}

// SearchCollections manages vector-search collections and their policies.
type SearchCollections interface {
	CreateSecurityPolicy(ctx context.Context, name string, kind PolicyKind, document string) error
	CreateCollection(ctx context.Context, name, description string) (Collection, error)
	// GetCollection returns ErrNotFound when no collection has the name.
	GetCollection(ctx context.Context, name string) (Collection, error)
}

// KnowledgeBaseSpec describes the knowledge index to create.
type KnowledgeBaseSpec struct {
	Name              string
	Description       string
	RoleARN           string
	EmbeddingModelARN string
	CollectionARN     string
	VectorIndexName   string
	VectorField       string
	TextField         string
	MetadataField     string
}

// DataSourceSpec describes the bucket-backed data source of a knowledge index.
type DataSourceSpec struct {
	KnowledgeBaseID   string
	Name              string
	Description       string
	BucketARN         string
	InclusionPrefixes []string
	Chunking          ChunkingPolicy
}

// JobStatus is the status of an ingestion job as reported by the provider.
type JobStatus string

const (
	JobStarting   JobStatus = "STARTING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobComplete   JobStatus = "COMPLETE"
	JobFailed     JobStatus = "FAILED"
	JobStopping   JobStatus = "STOPPING"
	JobStopped    JobStatus = "STOPPED"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed || s == JobStopped
}

// IngestionJob is an asynchronous chunk-and-index run over a data source.
type IngestionJob struct {
	ID            string
	Status        JobStatus
	FailureReason string
}

// KnowledgeBases manages knowledge indexes, data sources and ingestion.
type KnowledgeBases interface {
	CreateKnowledgeBase(ctx context.Context, spec KnowledgeBaseSpec) (string, error)
	// FindKnowledgeBase returns ErrNotFound when no index has the name.
	FindKnowledgeBase(ctx context.Context, name string) (string, error)
	CreateDataSource(ctx context.Context, spec DataSourceSpec) (string, error)
	FindDataSource(ctx context.Context, knowledgeBaseID, name string) (string, error)
	StartIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, description string) (IngestionJob, error)
	GetIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, jobID string) (IngestionJob, error)
}

// Providers bundles the external services a run touches.
type Providers struct {
	Objects     ObjectStore
	Roles       AccessControl
	Collections SearchCollections
	Knowledge   KnowledgeBases
}
