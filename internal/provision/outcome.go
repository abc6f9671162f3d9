package provision

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is wrapped by provider adapters when a named resource is
// already present. Steps report it as OutcomeAlreadyExists rather than failing.
var ErrAlreadyExists = errors.New("resource already exists")

// ErrNotFound is returned by provider lookups for a missing named resource.
var ErrNotFound = errors.New("resource not found")

// ErrPollTimeout is returned when a polled resource does not reach a terminal
// state within the attempt budget or the context deadline.
var ErrPollTimeout = errors.New("polling timed out")

// Outcome tags the result of a single provisioning step.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeFailed        Outcome = "failed"
)

// Step names, in execution order.
const (
	StepCreateBucket        = "create_bucket"
	StepCreateRole          = "create_role"
	StepCreateCollection    = "create_collection"
	StepUploadDocuments     = "upload_documents"
	StepCreateKnowledgeBase = "create_knowledge_base"
	StepStartIngestion      = "start_ingestion"
	StepAwaitIngestion      = "await_ingestion"
)

// StepResult records what a step did.
type StepResult struct {
	Step     string        `json:"step"`
	Outcome  Outcome       `json:"outcome"`
	Resource string        `json:"resource,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

func created(resource string) StepResult {
	return StepResult{Outcome: OutcomeCreated, Resource: resource}
}

func existing(resource string) StepResult {
	return StepResult{Outcome: OutcomeAlreadyExists, Resource: resource}
}

func failed(err error) StepResult {
	return StepResult{Outcome: OutcomeFailed, Reason: err.Error(), Err: err}
}

// StepError reports the step that aborted a run.
type StepError struct {
	Step string
	Err  error
	// Steps holds every step that ran, the failed one last.
	Steps []StepResult
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
