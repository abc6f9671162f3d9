package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Provisioner runs a Plan against the external providers, one step at a
// time, stopping at the first failed step.
type Provisioner struct {
	providers Providers
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Provisioner. A nil logger uses slog.Default().
func New(providers Providers, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{providers: providers, logger: logger, now: time.Now}
}

// runState carries identifiers produced by earlier steps to later ones.
type runState struct {
	roleARN        string
	collection     Collection
	uploadFailures []UploadFailure
	knowledgeBase  string
	dataSource     string
	job            IngestionJob
	steps          []StepResult
}

type step struct {
	name string
	run  func(context.Context, Plan, *runState) StepResult
}

// Run executes the plan. On success it returns the result bundle; on any
// failed step it returns a zero Result and a *StepError. No step after the
// failed one issues a provider call.
func (p *Provisioner) Run(ctx context.Context, plan Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}

	p.logger.Info("provisioning started", "project", plan.Project, "region", plan.Region)

	steps := []step{
		{StepCreateBucket, func(ctx context.Context, plan Plan, _ *runState) StepResult {
			return p.EnsureBucket(ctx, plan.Names.Bucket, plan.Region)
		}},
		{StepCreateRole, func(ctx context.Context, plan Plan, st *runState) StepResult {
			r := p.EnsureRole(ctx, plan)
			st.roleARN = r.Resource
			return r
		}},
		{StepCreateCollection, func(ctx context.Context, plan Plan, st *runState) StepResult {
			r, c := p.ensureCollection(ctx, plan)
			st.collection = c
			return r
		}},
		{StepUploadDocuments, p.uploadDocuments},
		{StepCreateKnowledgeBase, p.createKnowledgeBase},
		{StepStartIngestion, p.startIngestion},
		{StepAwaitIngestion, p.awaitIngestion},
	}

	st := &runState{}
	for _, s := range steps {
		start := p.now()
		r := s.run(ctx, plan, st)
		r.Step = s.name
		r.Duration = p.now().Sub(start)
		st.steps = append(st.steps, r)

		if r.Outcome == OutcomeFailed {
			p.logger.Error("provisioning step failed", "step", s.name, "error", r.Err)
			return Result{}, &StepError{Step: s.name, Err: r.Err, Steps: st.steps}
		}
		p.logger.Info("provisioning step done", "step", s.name, "outcome", r.Outcome, "resource", r.Resource)
	}

	return Result{
		KnowledgeBaseID: st.knowledgeBase,
		DataSourceID:    st.dataSource,
		BucketName:      plan.Names.Bucket,
		CollectionName:  plan.Names.Collection,
		CollectionARN:   st.collection.ARN,
		RoleARN:         st.roleARN,
		Region:          plan.Region,
		IngestionJobID:  st.job.ID,
		UploadFailures:  st.uploadFailures,
		Steps:           st.steps,
		CreatedAt:       p.now().UTC(),
	}, nil
}

// EnsureBucket creates the bucket, treating an existing bucket owned by the
// caller as success.
func (p *Provisioner) EnsureBucket(ctx context.Context, name, region string) StepResult {
	err := p.providers.Objects.CreateBucket(ctx, name, region)
	switch {
	case err == nil:
		return created(name)
	case errors.Is(err, ErrAlreadyExists):
		p.logger.Info("bucket already exists", "bucket", name)
		return existing(name)
	default:
		return failed(fmt.Errorf("creating bucket %s: %w", name, err))
	}
}

// EnsureRole creates the knowledge-index role and its policies. An existing
// role is reused and its policies are attached again, so a run that failed
// halfway through this step repairs the role on the next attempt.
func (p *Provisioner) EnsureRole(ctx context.Context, plan Plan) StepResult {
	name := plan.Names.Role
	exists := false
	arn, err := p.providers.Roles.CreateRole(ctx, name, TrustPolicy(), roleDesc)
	if errors.Is(err, ErrAlreadyExists) {
		arn, err = p.providers.Roles.GetRole(ctx, name)
		if err != nil {
			return failed(fmt.Errorf("fetching existing role %s: %w", name, err))
		}
		p.logger.Info("role already exists", "role", name)
		exists = true
	} else if err != nil {
		return failed(fmt.Errorf("creating role %s: %w", name, err))
	}
	for _, policy := range plan.ManagedPolicies {
		if err := p.providers.Roles.AttachRolePolicy(ctx, name, policy); err != nil {
			return failed(fmt.Errorf("attaching %s to role %s: %w", policy, name, err))
		}
	}
	if err := p.providers.Roles.PutRolePolicy(ctx, name, inlinePolicyName, CollectionAccessPolicy()); err != nil {
		return failed(fmt.Errorf("putting inline policy on role %s: %w", name, err))
	}
	if exists {
		return existing(arn)
	}
	return created(arn)
}

// EnsureCollection creates the collection's security policies and the
// collection itself, then waits until it is ACTIVE.
func (p *Provisioner) EnsureCollection(ctx context.Context, plan Plan) StepResult {
	r, _ := p.ensureCollection(ctx, plan)
	return r
}

func (p *Provisioner) ensureCollection(ctx context.Context, plan Plan) (StepResult, Collection) {
	names := plan.Names
	cols := p.providers.Collections

	policies := []struct {
		name string
		kind PolicyKind
		doc  string
	}{
		{names.EncryptionPolicy(), PolicyEncryption, EncryptionPolicyDocument(names.Collection)},
		{names.NetworkPolicy(), PolicyNetwork, NetworkPolicyDocument(names.Collection)},
	}
	for _, pol := range policies {
		err := cols.CreateSecurityPolicy(ctx, pol.name, pol.kind, pol.doc)
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return failed(fmt.Errorf("creating %s policy %s: %w", pol.kind, pol.name, err)), Collection{}
		}
	}

	outcome := OutcomeCreated
	col, err := cols.CreateCollection(ctx, names.Collection, collectionDesc)
	if errors.Is(err, ErrAlreadyExists) {
		outcome = OutcomeAlreadyExists
		col, err = cols.GetCollection(ctx, names.Collection)
	}
	if err != nil {
		return failed(fmt.Errorf("creating collection %s: %w", names.Collection, err)), Collection{}
	}

	err = Poll(ctx, plan.PollInterval, plan.MaxPollAttempts, func(ctx context.Context) (bool, error) {
		if col.Status == CollectionActive {
			return true, nil
		}
		if col.Status == CollectionFailed {
			return false, fmt.Errorf("collection %s entered status %s", names.Collection, col.Status)
		}
		p.logger.Info("waiting for collection to be active", "collection", names.Collection, "status", col.Status)

		next, err := cols.GetCollection(ctx, names.Collection)
		if err != nil {
			return false, fmt.Errorf("checking collection %s: %w", names.Collection, err)
		}
		if next.ARN == "" {
			next.ARN = col.ARN
		}
		col = next
		return col.Status == CollectionActive, nil
	})
	if err != nil {
		return failed(fmt.Errorf("waiting for collection %s: %w", names.Collection, err)), Collection{}
	}

	return StepResult{Outcome: outcome, Resource: col.ARN}, col
}

// UploadFailure records a seed document that could not be uploaded.
type UploadFailure struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

func (p *Provisioner) uploadDocuments(ctx context.Context, plan Plan, st *runState) StepResult {
	limit := plan.UploadLimit
	if limit <= 0 {
		limit = defaultUploadLimit
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, doc := range plan.Documents {
		g.Go(func() error {
			err := p.providers.Objects.PutObject(gCtx, plan.Names.Bucket, doc.Key(), doc.Body, doc.ContentType)
			if err != nil {
				p.logger.Warn("document upload failed", "document", doc.Name, "error", err)
				mu.Lock()
				st.uploadFailures = append(st.uploadFailures, UploadFailure{Document: doc.Name, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			p.logger.Info("document uploaded", "document", doc.Name, "key", doc.Key())
			return nil
		})
	}
	_ = g.Wait()

	uploaded := len(plan.Documents) - len(st.uploadFailures)
	if len(st.uploadFailures) > 0 && plan.AbortOnUploadFailure {
		return failed(fmt.Errorf("%d of %d document uploads failed", len(st.uploadFailures), len(plan.Documents)))
	}
	r := created(fmt.Sprintf("%d/%d documents", uploaded, len(plan.Documents)))
	if len(st.uploadFailures) > 0 {
		r.Reason = fmt.Sprintf("%d uploads failed", len(st.uploadFailures))
	}
	return r
}

func (p *Provisioner) createKnowledgeBase(ctx context.Context, plan Plan, st *runState) StepResult {
	kb := p.providers.Knowledge
	names := plan.Names
	outcome := OutcomeCreated

	kbID, err := kb.CreateKnowledgeBase(ctx, KnowledgeBaseSpec{
		Name:              names.KnowledgeBase,
		Description:       knowledgeBaseDesc,
		RoleARN:           st.roleARN,
		EmbeddingModelARN: plan.EmbeddingModelARN(),
		CollectionARN:     st.collection.ARN,
		VectorIndexName:   vectorIndexName,
		VectorField:       "bedrock-knowledge-base-default-vector",
		TextField:         "AMAZON_BEDROCK_TEXT_CHUNK",
		MetadataField:     "AMAZON_BEDROCK_METADATA",
	})
	if errors.Is(err, ErrAlreadyExists) {
		outcome = OutcomeAlreadyExists
		kbID, err = kb.FindKnowledgeBase(ctx, names.KnowledgeBase)
	}
	if err != nil {
		return failed(fmt.Errorf("creating knowledge base %s: %w", names.KnowledgeBase, err))
	}
	st.knowledgeBase = kbID

	dsID, err := kb.CreateDataSource(ctx, DataSourceSpec{
		KnowledgeBaseID:   kbID,
		Name:              names.DataSource,
		Description:       dataSourceDesc,
		BucketARN:         plan.BucketARN(),
		InclusionPrefixes: []string{documentsPrefix},
		Chunking:          plan.Chunking,
	})
	if errors.Is(err, ErrAlreadyExists) {
		dsID, err = kb.FindDataSource(ctx, kbID, names.DataSource)
	}
	if err != nil {
		return failed(fmt.Errorf("creating data source %s: %w", names.DataSource, err))
	}
	st.dataSource = dsID

	return StepResult{Outcome: outcome, Resource: kbID}
}

func (p *Provisioner) startIngestion(ctx context.Context, plan Plan, st *runState) StepResult {
	if plan.SettleDelay > 0 {
		p.logger.Info("waiting before starting ingestion", "delay", plan.SettleDelay)
		if err := sleep(ctx, plan.SettleDelay); err != nil {
			return failed(fmt.Errorf("waiting to start ingestion: %w", err))
		}
	}

	job, err := p.providers.Knowledge.StartIngestionJob(ctx, st.knowledgeBase, st.dataSource, ingestionDesc)
	if err != nil {
		return failed(fmt.Errorf("starting ingestion job: %w", err))
	}
	st.job = job
	p.logger.Info("ingestion job started", "job_id", job.ID)
	return created(job.ID)
}

func (p *Provisioner) awaitIngestion(ctx context.Context, plan Plan, st *runState) StepResult {
	kb := p.providers.Knowledge
	job := st.job

	err := Poll(ctx, plan.PollInterval, plan.MaxPollAttempts, func(ctx context.Context) (bool, error) {
		if job.Status.Terminal() {
			return true, nil
		}
		next, err := kb.GetIngestionJob(ctx, st.knowledgeBase, st.dataSource, job.ID)
		if err != nil {
			return false, fmt.Errorf("checking ingestion job %s: %w", job.ID, err)
		}
		job = next
		p.logger.Info("ingestion status", "job_id", job.ID, "status", job.Status)
		return job.Status.Terminal(), nil
	})
	st.job = job
	if err != nil {
		return failed(fmt.Errorf("waiting for ingestion job %s: %w", job.ID, err))
	}

	if job.Status != JobComplete {
		reason := string(job.Status)
		if job.FailureReason != "" {
			reason += ": " + job.FailureReason
		}
		return failed(fmt.Errorf("ingestion job %s ended %s", job.ID, reason))
	}
	return StepResult{Outcome: OutcomeCreated, Resource: job.ID}
}
