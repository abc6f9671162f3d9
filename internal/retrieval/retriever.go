package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// DefaultTopK is how many passages a chat turn asks the index for.
const DefaultTopK = 5

// Location points at the source document of a passage.
type Location struct {
	Type       string      `json:"type,omitempty"`
	S3Location *S3Location `json:"s3Location,omitempty"`
}

// S3Location is an object in the document bucket.
type S3Location struct {
	URI string `json:"uri"`
}

// ContextChunk is a retrieved passage with its relevance score.
type ContextChunk struct {
	Content  string    `json:"content"`
	Score    float64   `json:"score"`
	Location *Location `json:"location,omitempty"`
}

// Retriever returns passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]ContextChunk, error)
}

// RetrieveAPI is the subset of the Bedrock agent runtime client used here.
type RetrieveAPI interface {
	Retrieve(ctx context.Context, in *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// KnowledgeBase retrieves passages from a managed knowledge index.
type KnowledgeBase struct {
	api     RetrieveAPI
	id      string
	timeout time.Duration
}

// NewKnowledgeBase creates a retriever for the index id. An empty id yields
// a retriever that always returns no passages.
func NewKnowledgeBase(api RetrieveAPI, id string, timeout time.Duration) *KnowledgeBase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KnowledgeBase{api: api, id: id, timeout: timeout}
}

// ID is the knowledge index identifier, empty when none is configured.
func (k *KnowledgeBase) ID() string { return k.id }

// Retrieve runs a vector search for query and returns up to topK passages in
// the order the index ranks them.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, topK int) ([]ContextChunk, error) {
	if k.id == "" || k.api == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	out, err := k.api.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(k.id),
		RetrievalQuery:  &brtypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &brtypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &brtypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(topK)),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge base query: %w", err)
	}

	chunks := make([]ContextChunk, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		c := ContextChunk{Score: aws.ToFloat64(r.Score)}
		if r.Content != nil {
			c.Content = aws.ToString(r.Content.Text)
		}
		if r.Location != nil {
			c.Location = &Location{Type: string(r.Location.Type)}
			if r.Location.S3Location != nil {
				c.Location.S3Location = &S3Location{URI: aws.ToString(r.Location.S3Location.Uri)}
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
