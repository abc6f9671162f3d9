package awsprov

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	batypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"github.com/kalambet/kbagent/internal/provision"
)

type bedrockAgentAPI interface {
	CreateKnowledgeBase(ctx context.Context, in *bedrockagent.CreateKnowledgeBaseInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateKnowledgeBaseOutput, error)
	ListKnowledgeBases(ctx context.Context, in *bedrockagent.ListKnowledgeBasesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListKnowledgeBasesOutput, error)
	CreateDataSource(ctx context.Context, in *bedrockagent.CreateDataSourceInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateDataSourceOutput, error)
	ListDataSources(ctx context.Context, in *bedrockagent.ListDataSourcesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListDataSourcesOutput, error)
	StartIngestionJob(ctx context.Context, in *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJob(ctx context.Context, in *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error)
}

// KnowledgeBases manages Bedrock knowledge bases, data sources and
// ingestion jobs.
type KnowledgeBases struct {
	api bedrockAgentAPI
}

func (k *KnowledgeBases) CreateKnowledgeBase(ctx context.Context, spec provision.KnowledgeBaseSpec) (string, error) {
	out, err := k.api.CreateKnowledgeBase(ctx, &bedrockagent.CreateKnowledgeBaseInput{
		Name:        aws.String(spec.Name),
		Description: aws.String(spec.Description),
		RoleArn:     aws.String(spec.RoleARN),
		KnowledgeBaseConfiguration: &batypes.KnowledgeBaseConfiguration{
			Type: batypes.KnowledgeBaseTypeVector,
			VectorKnowledgeBaseConfiguration: &batypes.VectorKnowledgeBaseConfiguration{
				EmbeddingModelArn: aws.String(spec.EmbeddingModelARN),
			},
		},
		StorageConfiguration: &batypes.StorageConfiguration{
			Type: batypes.KnowledgeBaseStorageTypeOpensearchServerless,
			OpensearchServerlessConfiguration: &batypes.OpenSearchServerlessConfiguration{
				CollectionArn:   aws.String(spec.CollectionARN),
				VectorIndexName: aws.String(spec.VectorIndexName),
				FieldMapping: &batypes.OpenSearchServerlessFieldMapping{
					VectorField:   aws.String(spec.VectorField),
					TextField:     aws.String(spec.TextField),
					MetadataField: aws.String(spec.MetadataField),
				},
			},
		},
	})
	if err != nil {
		return "", agentErr(err)
	}
	if out.KnowledgeBase == nil {
		return "", fmt.Errorf("create knowledge base %s: empty response", spec.Name)
	}
	return aws.ToString(out.KnowledgeBase.KnowledgeBaseId), nil
}

func (k *KnowledgeBases) FindKnowledgeBase(ctx context.Context, name string) (string, error) {
	in := &bedrockagent.ListKnowledgeBasesInput{}
	for {
		out, err := k.api.ListKnowledgeBases(ctx, in)
		if err != nil {
			return "", agentErr(err)
		}
		for _, s := range out.KnowledgeBaseSummaries {
			if aws.ToString(s.Name) == name {
				return aws.ToString(s.KnowledgeBaseId), nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return "", fmt.Errorf("knowledge base %s: %w", name, provision.ErrNotFound)
		}
		in.NextToken = out.NextToken
	}
}

func (k *KnowledgeBases) CreateDataSource(ctx context.Context, spec provision.DataSourceSpec) (string, error) {
	out, err := k.api.CreateDataSource(ctx, &bedrockagent.CreateDataSourceInput{
		KnowledgeBaseId: aws.String(spec.KnowledgeBaseID),
		Name:            aws.String(spec.Name),
		Description:     aws.String(spec.Description),
		DataSourceConfiguration: &batypes.DataSourceConfiguration{
			Type: batypes.DataSourceTypeS3,
			S3Configuration: &batypes.S3DataSourceConfiguration{
				BucketArn:         aws.String(spec.BucketARN),
				InclusionPrefixes: spec.InclusionPrefixes,
			},
		},
		VectorIngestionConfiguration: &batypes.VectorIngestionConfiguration{
			ChunkingConfiguration: &batypes.ChunkingConfiguration{
				ChunkingStrategy: batypes.ChunkingStrategyFixedSize,
				FixedSizeChunkingConfiguration: &batypes.FixedSizeChunkingConfiguration{
					MaxTokens:         aws.Int32(int32(spec.Chunking.MaxTokens)),
					OverlapPercentage: aws.Int32(int32(spec.Chunking.OverlapPercentage)),
				},
			},
		},
	})
	if err != nil {
		return "", agentErr(err)
	}
	if out.DataSource == nil {
		return "", fmt.Errorf("create data source %s: empty response", spec.Name)
	}
	return aws.ToString(out.DataSource.DataSourceId), nil
}

func (k *KnowledgeBases) FindDataSource(ctx context.Context, knowledgeBaseID, name string) (string, error) {
	in := &bedrockagent.ListDataSourcesInput{KnowledgeBaseId: aws.String(knowledgeBaseID)}
	for {
		out, err := k.api.ListDataSources(ctx, in)
		if err != nil {
			return "", agentErr(err)
		}
		for _, s := range out.DataSourceSummaries {
			if aws.ToString(s.Name) == name {
				return aws.ToString(s.DataSourceId), nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return "", fmt.Errorf("data source %s: %w", name, provision.ErrNotFound)
		}
		in.NextToken = out.NextToken
	}
}

func (k *KnowledgeBases) StartIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, description string) (provision.IngestionJob, error) {
	out, err := k.api.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		DataSourceId:    aws.String(dataSourceID),
		Description:     aws.String(description),
	})
	if err != nil {
		return provision.IngestionJob{}, agentErr(err)
	}
	return ingestionJob(out.IngestionJob), nil
}

func (k *KnowledgeBases) GetIngestionJob(ctx context.Context, knowledgeBaseID, dataSourceID, jobID string) (provision.IngestionJob, error) {
	out, err := k.api.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		DataSourceId:    aws.String(dataSourceID),
		IngestionJobId:  aws.String(jobID),
	})
	if err != nil {
		return provision.IngestionJob{}, agentErr(err)
	}
	return ingestionJob(out.IngestionJob), nil
}

func ingestionJob(j *batypes.IngestionJob) provision.IngestionJob {
	if j == nil {
		return provision.IngestionJob{}
	}
	status := provision.JobStatus(j.Status)
	// Older API versions report STARTED rather than STARTING.
	if status == "STARTED" {
		status = provision.JobStarting
	}
	return provision.IngestionJob{
		ID:            aws.ToString(j.IngestionJobId),
		Status:        status,
		FailureReason: strings.Join(j.FailureReasons, "; "),
	}
}

func agentErr(err error) error {
	var conflict *batypes.ConflictException
	if errors.As(err, &conflict) {
		return alreadyExists(err)
	}
	var missing *batypes.ResourceNotFoundException
	if errors.As(err, &missing) {
		return fmt.Errorf("%w: %w", provision.ErrNotFound, err)
	}
	return classify(err)
}
