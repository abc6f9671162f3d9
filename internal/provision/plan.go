package provision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRegion           = "us-east-1"
	defaultEmbeddingModel   = "amazon.titan-embed-text-v2:0"
	defaultPollInterval     = 30 * time.Second
	defaultMaxPollAttempts  = 120
	defaultSettleDelay      = 60 * time.Second
	defaultUploadLimit      = 4
	documentsPrefix         = "documents/"
	vectorIndexName         = "bedrock-knowledge-base-index"
	inlinePolicyName        = "OpenSearchServerlessAccess"
	knowledgeBasePrincipal  = "bedrock.amazonaws.com"
	knowledgeBaseDesc       = "Knowledge base for AI Agent"
	collectionDesc          = "Collection for Bedrock Knowledge Base"
	roleDesc                = "Role for Bedrock Knowledge Base"
	dataSourceDesc          = "S3 data source for knowledge base"
	ingestionDesc           = "Initial document ingestion"
)

// DefaultManagedPolicies are attached to the knowledge-index role.
var DefaultManagedPolicies = []string{
	"arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess",
	"arn:aws:iam::aws:policy/AmazonBedrockFullAccess",
}

// Names holds the deterministic resource names of a run.
type Names struct {
	Bucket        string `json:"bucket" yaml:"bucket"`
	Role          string `json:"role" yaml:"role"`
	Collection    string `json:"collection" yaml:"collection"`
	KnowledgeBase string `json:"knowledge_base" yaml:"knowledge_base"`
	DataSource    string `json:"data_source" yaml:"data_source"`
}

// EncryptionPolicy is the collection's encryption policy name.
func (n Names) EncryptionPolicy() string { return n.Collection + "-encryption" }

// NetworkPolicy is the collection's network policy name.
func (n Names) NetworkPolicy() string { return n.Collection + "-network" }

// ChunkingPolicy is the fixed-size chunking applied at ingestion.
type ChunkingPolicy struct {
	MaxTokens         int `json:"max_tokens" yaml:"max_tokens"`
	OverlapPercentage int `json:"overlap_percentage" yaml:"overlap_percentage"`
}

// DefaultChunking splits documents into 500-token chunks with 20% overlap.
var DefaultChunking = ChunkingPolicy{MaxTokens: 500, OverlapPercentage: 20}

// Plan is an ordered provisioning run for one project.
type Plan struct {
	Project         string
	Region          string
	Names           Names
	EmbeddingModel  string
	ManagedPolicies []string
	Chunking        ChunkingPolicy
	Documents       []Document

	PollInterval    time.Duration
	MaxPollAttempts int
	SettleDelay     time.Duration
	UploadLimit     int

	// AbortOnUploadFailure turns any seed document upload failure into a
	// failed step. When false, failures are recorded in Result and the run
	// continues.
	AbortOnUploadFailure bool
}

// PlanOption adjusts a Plan built by NewPlan.
type PlanOption func(*Plan)

// WithRegion sets the provider region.
func WithRegion(region string) PlanOption {
	return func(p *Plan) { p.Region = region }
}

// WithEmbeddingModel sets the foundation model used to embed chunks.
func WithEmbeddingModel(model string) PlanOption {
	return func(p *Plan) { p.EmbeddingModel = model }
}

// WithDocuments replaces the seed documents.
func WithDocuments(docs []Document) PlanOption {
	return func(p *Plan) { p.Documents = docs }
}

// WithPolling sets the poll interval and attempt budget for collection and
// ingestion waits.
func WithPolling(interval time.Duration, maxAttempts int) PlanOption {
	return func(p *Plan) {
		p.PollInterval = interval
		p.MaxPollAttempts = maxAttempts
	}
}

// WithSettleDelay sets the wait between knowledge-index creation and ingestion.
func WithSettleDelay(d time.Duration) PlanOption {
	return func(p *Plan) { p.SettleDelay = d }
}

// WithStrictUploads makes seed document upload failures abort the run.
func WithStrictUploads(strict bool) PlanOption {
	return func(p *Plan) { p.AbortOnUploadFailure = strict }
}

// NewPlan derives resource names from project and fills defaults. The bucket
// name carries the unix time of now so repeated projects do not collide.
func NewPlan(project string, now time.Time, opts ...PlanOption) Plan {
	kb := project + "-knowledge-base"
	p := Plan{
		Project: project,
		Region:  defaultRegion,
		Names: Names{
			Bucket:        fmt.Sprintf("%s-documents-%d", project, now.Unix()),
			Role:          project + "-bedrock-role",
			Collection:    project + "-kb-collection",
			KnowledgeBase: kb,
			DataSource:    kb + "-s3-datasource",
		},
		EmbeddingModel:  defaultEmbeddingModel,
		ManagedPolicies: DefaultManagedPolicies,
		Chunking:        DefaultChunking,
		Documents:       DefaultDocuments(),
		PollInterval:    defaultPollInterval,
		MaxPollAttempts: defaultMaxPollAttempts,
		SettleDelay:     defaultSettleDelay,
		UploadLimit:     defaultUploadLimit,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Validate checks the plan is complete enough to run.
func (p Plan) Validate() error {
	var missing []string
	if p.Region == "" {
		missing = append(missing, "region")
	}
	if p.Names.Bucket == "" {
		missing = append(missing, "bucket name")
	}
	if p.Names.Role == "" {
		missing = append(missing, "role name")
	}
	if p.Names.Collection == "" {
		missing = append(missing, "collection name")
	}
	if p.Names.KnowledgeBase == "" {
		missing = append(missing, "knowledge base name")
	}
	if p.Names.DataSource == "" {
		missing = append(missing, "data source name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid plan: missing %s", strings.Join(missing, ", "))
	}
	if p.Chunking.MaxTokens <= 0 || p.Chunking.OverlapPercentage < 0 || p.Chunking.OverlapPercentage > 99 {
		return fmt.Errorf("invalid plan: chunking %+v", p.Chunking)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("invalid plan: poll interval %v must be positive", p.PollInterval)
	}
	if p.MaxPollAttempts < 1 {
		return fmt.Errorf("invalid plan: max poll attempts %d must be at least 1", p.MaxPollAttempts)
	}
	return nil
}

// EmbeddingModelARN is the foundation-model ARN of the embedding model.
func (p Plan) EmbeddingModelARN() string {
	return fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", p.Region, p.EmbeddingModel)
}

// BucketARN is the ARN of the seed document bucket.
func (p Plan) BucketARN() string {
	return "arn:aws:s3:::" + p.Names.Bucket
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    any               `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// TrustPolicy lets the knowledge-index service assume the role.
func TrustPolicy() string {
	return mustJSON(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": knowledgeBasePrincipal},
			Action:    "sts:AssumeRole",
		}},
	})
}

// CollectionAccessPolicy is the inline policy granting collection access.
func CollectionAccessPolicy() string {
	return mustJSON(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   []string{"aoss:*"},
			Resource: "*",
		}},
	})
}

type securityRule struct {
	ResourceType string   `json:"ResourceType"`
	Resource     []string `json:"Resource"`
}

// EncryptionPolicyDocument encrypts the collection with a provider-owned key.
func EncryptionPolicyDocument(collection string) string {
	return mustJSON(struct {
		Rules       []securityRule `json:"Rules"`
		AWSOwnedKey bool           `json:"AWSOwnedKey"`
	}{
		Rules:       []securityRule{{ResourceType: "collection", Resource: []string{"collection/" + collection}}},
		AWSOwnedKey: true,
	})
}

// NetworkPolicyDocument opens the collection and its dashboard to public access.
func NetworkPolicyDocument(collection string) string {
	type rule struct {
		Rules           []securityRule `json:"Rules"`
		AllowFromPublic bool           `json:"AllowFromPublic"`
	}
	return mustJSON([]rule{{
		Rules: []securityRule{
			{ResourceType: "collection", Resource: []string{"collection/" + collection}},
			{ResourceType: "dashboard", Resource: []string{"collection/" + collection}},
		},
		AllowFromPublic: true,
	}})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
