// Package awsprov implements the provision provider interfaces over the AWS
// SDK. It is the only place provider error types are inspected.
package awsprov

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/kalambet/kbagent/internal/provision"
)

// LoadConfig resolves credentials from the default chain for region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	return cfg, nil
}

// New builds the provider set for a provisioning run in region.
func New(ctx context.Context, region string) (provision.Providers, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return provision.Providers{}, err
	}
	return FromConfig(cfg), nil
}

// FromConfig builds the provider set from an already loaded config.
func FromConfig(cfg aws.Config) provision.Providers {
	return provision.Providers{
		Objects:     &Buckets{api: s3.NewFromConfig(cfg)},
		Roles:       &Roles{api: iam.NewFromConfig(cfg)},
		Collections: &Collections{api: opensearchserverless.NewFromConfig(cfg)},
		Knowledge:   &KnowledgeBases{api: bedrockagent.NewFromConfig(cfg)},
	}
}

// conflictCodes are API error codes that mean the named resource exists.
var conflictCodes = map[string]bool{
	"BucketAlreadyOwnedByYou":   true,
	"EntityAlreadyExists":       true,
	"ConflictException":         true,
	"ResourceConflictException": true,
}

var notFoundCodes = map[string]bool{
	"NoSuchEntity":              true,
	"ResourceNotFoundException": true,
	"NotFound":                  true,
}

// classify maps generic API error codes onto the provision sentinels. Typed
// exceptions are matched by each adapter before falling back here.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case conflictCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), provision.ErrAlreadyExists)
		case notFoundCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), provision.ErrNotFound)
		}
	}
	return err
}

func alreadyExists(err error) error {
	return fmt.Errorf("%w: %w", provision.ErrAlreadyExists, err)
}
