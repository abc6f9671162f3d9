package awsprov

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	aosstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"

	"github.com/kalambet/kbagent/internal/provision"
)

type aossAPI interface {
	CreateSecurityPolicy(ctx context.Context, in *opensearchserverless.CreateSecurityPolicyInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateSecurityPolicyOutput, error)
	CreateCollection(ctx context.Context, in *opensearchserverless.CreateCollectionInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.CreateCollectionOutput, error)
	ListCollections(ctx context.Context, in *opensearchserverless.ListCollectionsInput, optFns ...func(*opensearchserverless.Options)) (*opensearchserverless.ListCollectionsOutput, error)
}

// Collections manages OpenSearch Serverless vector-search collections.
type Collections struct {
	api aossAPI
}

func (c *Collections) CreateSecurityPolicy(ctx context.Context, name string, kind provision.PolicyKind, document string) error {
	typ := aosstypes.SecurityPolicyTypeEncryption
	if kind == provision.PolicyNetwork {
		typ = aosstypes.SecurityPolicyTypeNetwork
	}
	_, err := c.api.CreateSecurityPolicy(ctx, &opensearchserverless.CreateSecurityPolicyInput{
		Name:   aws.String(name),
		Type:   typ,
		Policy: aws.String(document),
	})
	return conflictOrClassify(err)
}

func (c *Collections) CreateCollection(ctx context.Context, name, description string) (provision.Collection, error) {
	out, err := c.api.CreateCollection(ctx, &opensearchserverless.CreateCollectionInput{
		Name:        aws.String(name),
		Type:        aosstypes.CollectionTypeVectorsearch,
		Description: aws.String(description),
	})
	if err != nil {
		return provision.Collection{}, conflictOrClassify(err)
	}
	d := out.CreateCollectionDetail
	if d == nil {
		return provision.Collection{}, fmt.Errorf("create collection %s: empty response", name)
	}
	return provision.Collection{
		ID:     aws.ToString(d.Id),
		Name:   aws.ToString(d.Name),
		ARN:    aws.ToString(d.Arn),
		Status: provision.CollectionStatus(d.Status),
	}, nil
}

func (c *Collections) GetCollection(ctx context.Context, name string) (provision.Collection, error) {
	out, err := c.api.ListCollections(ctx, &opensearchserverless.ListCollectionsInput{
		CollectionFilters: &aosstypes.CollectionFilters{Name: aws.String(name)},
	})
	if err != nil {
		return provision.Collection{}, classify(err)
	}
	for _, s := range out.CollectionSummaries {
		if aws.ToString(s.Name) == name {
			return provision.Collection{
				ID:     aws.ToString(s.Id),
				Name:   name,
				ARN:    aws.ToString(s.Arn),
				Status: provision.CollectionStatus(s.Status),
			}, nil
		}
	}
	return provision.Collection{}, fmt.Errorf("collection %s: %w", name, provision.ErrNotFound)
}

func conflictOrClassify(err error) error {
	var conflict *aosstypes.ConflictException
	if errors.As(err, &conflict) {
		return alreadyExists(err)
	}
	return classify(err)
}
