package awsprov

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/kalambet/kbagent/internal/provision"
)

type iamAPI interface {
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// Roles manages IAM roles.
type Roles struct {
	api iamAPI
}

func (r *Roles) CreateRole(ctx context.Context, name, trustPolicy, description string) (string, error) {
	out, err := r.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String(description),
	})
	var exists *iamtypes.EntityAlreadyExistsException
	if errors.As(err, &exists) {
		return "", alreadyExists(err)
	}
	if err != nil {
		return "", classify(err)
	}
	if out.Role == nil {
		return "", fmt.Errorf("create role %s: empty response", name)
	}
	return aws.ToString(out.Role.Arn), nil
}

func (r *Roles) GetRole(ctx context.Context, name string) (string, error) {
	out, err := r.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	var missing *iamtypes.NoSuchEntityException
	if errors.As(err, &missing) {
		return "", fmt.Errorf("role %s: %w", name, provision.ErrNotFound)
	}
	if err != nil {
		return "", classify(err)
	}
	if out.Role == nil {
		return "", fmt.Errorf("role %s: %w", name, provision.ErrNotFound)
	}
	return aws.ToString(out.Role.Arn), nil
}

func (r *Roles) AttachRolePolicy(ctx context.Context, role, policyARN string) error {
	_, err := r.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(policyARN),
	})
	return classify(err)
}

func (r *Roles) PutRolePolicy(ctx context.Context, role, policyName, document string) error {
	_, err := r.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(role),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	return classify(err)
}
