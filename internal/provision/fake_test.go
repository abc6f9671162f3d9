package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeCloud is an in-memory provider set that records every call in order.
type fakeCloud struct {
	mu    sync.Mutex
	calls []string

	buckets     map[string]bool
	roles       map[string]string
	policies    map[string]bool
	collections map[string]Collection
	kbs         map[string]string
	sources     map[string]string
	objects     map[string][]byte

	// collectionPolls is how many GetCollection calls report CREATING
	// before ACTIVE. Negative never becomes active.
	collectionPolls int
	jobStatuses     []JobStatus

	failOn    map[string]error
	failPuts  map[string]bool
	jobPolled int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		buckets:     make(map[string]bool),
		roles:       make(map[string]string),
		policies:    make(map[string]bool),
		collections: make(map[string]Collection),
		kbs:         make(map[string]string),
		sources:     make(map[string]string),
		objects:     make(map[string][]byte),
		failOn:      make(map[string]error),
		failPuts:    make(map[string]bool),
		jobStatuses: []JobStatus{JobInProgress, JobComplete},
	}
}

func (f *fakeCloud) providers() Providers {
	return Providers{Objects: f, Roles: f, Collections: f, Knowledge: f}
}

func (f *fakeCloud) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeCloud) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeCloud) CreateBucket(_ context.Context, name, _ string) error {
	if err := f.record("CreateBucket"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[name] {
		return fmt.Errorf("bucket %s: %w", name, ErrAlreadyExists)
	}
	f.buckets[name] = true
	return nil
}

func (f *fakeCloud) PutObject(_ context.Context, bucket, key string, body []byte, _ string) error {
	if err := f.record("PutObject"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts[key] {
		return fmt.Errorf("access denied for %s", key)
	}
	f.objects[bucket+"/"+key] = body
	return nil
}

func (f *fakeCloud) CreateRole(_ context.Context, name, _, _ string) (string, error) {
	if err := f.record("CreateRole"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[name]; ok {
		return "", fmt.Errorf("role %s: %w", name, ErrAlreadyExists)
	}
	arn := "arn:aws:iam::123456789012:role/" + name
	f.roles[name] = arn
	return arn, nil
}

func (f *fakeCloud) GetRole(_ context.Context, name string) (string, error) {
	if err := f.record("GetRole"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	arn, ok := f.roles[name]
	if !ok {
		return "", ErrNotFound
	}
	return arn, nil
}

func (f *fakeCloud) AttachRolePolicy(context.Context, string, string) error {
	return f.record("AttachRolePolicy")
}

func (f *fakeCloud) PutRolePolicy(context.Context, string, string, string) error {
	return f.record("PutRolePolicy")
}

func (f *fakeCloud) CreateSecurityPolicy(_ context.Context, name string, _ PolicyKind, _ string) error {
	if err := f.record("CreateSecurityPolicy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.policies[name] {
		return fmt.Errorf("policy %s: %w", name, ErrAlreadyExists)
	}
	f.policies[name] = true
	return nil
}

func (f *fakeCloud) CreateCollection(_ context.Context, name, _ string) (Collection, error) {
	if err := f.record("CreateCollection"); err != nil {
		return Collection{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; ok {
		return Collection{}, fmt.Errorf("collection %s: %w", name, ErrAlreadyExists)
	}
	c := Collection{
		ID:     "col-" + name,
		Name:   name,
		ARN:    "arn:aws:aoss:us-east-1:123456789012:collection/col-" + name,
		Status: CollectionCreating,
	}
	f.collections[name] = c
	return c, nil
}

func (f *fakeCloud) GetCollection(_ context.Context, name string) (Collection, error) {
	if err := f.record("GetCollection"); err != nil {
		return Collection{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[name]
	if !ok {
		return Collection{}, ErrNotFound
	}
	if c.Status == CollectionCreating && f.collectionPolls >= 0 {
		if f.collectionPolls == 0 {
			c.Status = CollectionActive
			f.collections[name] = c
		} else {
			f.collectionPolls--
		}
	}
	return c, nil
}

func (f *fakeCloud) CreateKnowledgeBase(_ context.Context, spec KnowledgeBaseSpec) (string, error) {
	if err := f.record("CreateKnowledgeBase"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kbs[spec.Name]; ok {
		return "", fmt.Errorf("knowledge base %s: %w", spec.Name, ErrAlreadyExists)
	}
	id := "KB" + fmt.Sprint(len(f.kbs)+1)
	f.kbs[spec.Name] = id
	return id, nil
}

func (f *fakeCloud) FindKnowledgeBase(_ context.Context, name string) (string, error) {
	if err := f.record("FindKnowledgeBase"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.kbs[name]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (f *fakeCloud) CreateDataSource(_ context.Context, spec DataSourceSpec) (string, error) {
	if err := f.record("CreateDataSource"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := spec.KnowledgeBaseID + "/" + spec.Name
	if _, ok := f.sources[key]; ok {
		return "", fmt.Errorf("data source %s: %w", spec.Name, ErrAlreadyExists)
	}
	id := "DS" + fmt.Sprint(len(f.sources)+1)
	f.sources[key] = id
	return id, nil
}

func (f *fakeCloud) FindDataSource(_ context.Context, kbID, name string) (string, error) {
	if err := f.record("FindDataSource"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sources[kbID+"/"+name]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (f *fakeCloud) StartIngestionJob(context.Context, string, string, string) (IngestionJob, error) {
	if err := f.record("StartIngestionJob"); err != nil {
		return IngestionJob{}, err
	}
	return IngestionJob{ID: "JOB1", Status: JobStarting}, nil
}

func (f *fakeCloud) GetIngestionJob(_ context.Context, _, _, jobID string) (IngestionJob, error) {
	if err := f.record("GetIngestionJob"); err != nil {
		return IngestionJob{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.jobPolled
	if i >= len(f.jobStatuses) {
		i = len(f.jobStatuses) - 1
	}
	f.jobPolled++
	job := IngestionJob{ID: jobID, Status: f.jobStatuses[i]}
	if job.Status == JobFailed {
		job.FailureReason = "parse error"
	}
	return job, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlan(opts ...PlanOption) Plan {
	base := []PlanOption{WithPolling(time.Millisecond, 5), WithSettleDelay(0)}
	return NewPlan("demo", time.Unix(1700000000, 0), append(base, opts...)...)
}
