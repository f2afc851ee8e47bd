// Package jobs is the lifecycle manager for ingestion Jobs (C5): create,
// patch, and state-machine transitions backed by the Durable Repository.
// Grounded on the teacher's explicit-struct services style (no package
// globals) and store.Repository[T] for persistence.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kollektiv/internal/domain"
	"kollektiv/internal/store"
)

// NotFoundError is returned when an operation references an unknown job,
// either by internal id or by the crawler's external job id.
type NotFoundError struct {
	JobID      uuid.UUID
	ExternalID string
}

func (e *NotFoundError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("jobs: no job with external id %q", e.ExternalID)
	}
	return fmt.Sprintf("jobs: job %s not found", e.JobID)
}

// StateError reports an illegal state transition attempt.
type StateError struct {
	JobID uuid.UUID
	From  domain.JobStatus
	To    domain.JobStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("jobs: job %s cannot transition %s -> %s", e.JobID, e.From, e.To)
}

// ValidationError reports an otherwise malformed request.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return "jobs: validation: " + e.Reason }

// Manager owns the Job lifecycle and state machine (§4.5).
type Manager struct {
	repo *store.Repository[domain.Job]
	now  func() time.Time
}

func New(repo *store.Repository[domain.Job]) *Manager {
	return &Manager{repo: repo, now: time.Now}
}

// Create persists a new Job in Pending status.
func (m *Manager) Create(ctx context.Context, jobType domain.JobType, details domain.JobDetails) (domain.Job, error) {
	job := domain.Job{
		JobID:     uuid.New(),
		Type:      jobType,
		Status:    domain.JobPending,
		Details:   details,
		CreatedAt: m.now(),
	}
	saved, err := m.repo.Save(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	return saved[0], nil
}

// FindByExternalID resolves a Firecrawl crawl id back to its owning Job via
// the JSON-path index on details->'crawl'->>'firecrawl_id', used by the webhook path
// (§6 SUPPLEMENTED FEATURES: job dedupe by external id).
func (m *Manager) FindByExternalID(ctx context.Context, externalID string) (domain.Job, error) {
	found, err := m.repo.Find(ctx, store.FilterByFirecrawlID(externalID), store.FindOptions{Limit: 1})
	if err != nil {
		return domain.Job{}, err
	}
	if len(found) == 0 {
		return domain.Job{}, &NotFoundError{ExternalID: externalID}
	}
	return found[0], nil
}

// Patch is a field-level update applied to an existing Job. job_id, type,
// and created_at are not exposed as Patch fields, so they can never be
// altered through Update (§4.5's protected-fields rule).
type Patch struct {
	Status *domain.JobStatus
}

// Update loads, validates, and transitions a job's status per the state
// machine: Pending -> InProgress requires the prior status be Pending;
// InProgress -> {Completed, Failed} is always legal; Cancelled is reachable
// from Pending or InProgress only.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, patch Patch) (domain.Job, error) {
	job, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Job{}, &NotFoundError{JobID: id}
	}
	if patch.Status != nil {
		if !canTransition(job.Status, *patch.Status) {
			return domain.Job{}, &StateError{JobID: id, From: job.Status, To: *patch.Status}
		}
		job.Status = *patch.Status
		if isTerminal(*patch.Status) {
			now := m.now()
			job.CompletedAt = &now
		}
	}
	saved, err := m.repo.Save(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	return saved[0], nil
}

// UpdateDetails overwrites a job's Details without touching its status,
// used by the crawl path to record the Firecrawl external id once the
// submit call returns it (§4.6) and by the processing path to record final
// document/chunk counts.
func (m *Manager) UpdateDetails(ctx context.Context, id uuid.UUID, details domain.JobDetails) (domain.Job, error) {
	job, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Job{}, &NotFoundError{JobID: id}
	}
	job.Details = details
	saved, err := m.repo.Save(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	return saved[0], nil
}

// MarkCompleted transitions a job to Completed, optionally recording the
// id of the entity the job produced (e.g. a SourceSummary id).
func (m *Manager) MarkCompleted(ctx context.Context, id uuid.UUID, resultID *uuid.UUID) (domain.Job, error) {
	job, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Job{}, &NotFoundError{JobID: id}
	}
	status := domain.JobCompleted
	if !canTransition(job.Status, status) {
		return domain.Job{}, &StateError{JobID: id, From: job.Status, To: status}
	}
	job.Status = status
	job.ResultID = resultID
	now := m.now()
	job.CompletedAt = &now
	saved, err := m.repo.Save(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	return saved[0], nil
}

// MarkFailed transitions a job to Failed and records the error message.
// Failed is reachable from any non-terminal status (§4.5 diagram).
func (m *Manager) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (domain.Job, error) {
	job, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Job{}, &NotFoundError{JobID: id}
	}
	if isTerminal(job.Status) {
		return domain.Job{}, &StateError{JobID: id, From: job.Status, To: domain.JobFailed}
	}
	msg := cause.Error()
	job.Status = domain.JobFailed
	job.Error = &msg
	now := m.now()
	job.CompletedAt = &now
	saved, err := m.repo.Save(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	return saved[0], nil
}

func isTerminal(s domain.JobStatus) bool {
	return s == domain.JobCompleted || s == domain.JobFailed || s == domain.JobCancelled
}

func canTransition(from, to domain.JobStatus) bool {
	switch to {
	case domain.JobInProgress:
		return from == domain.JobPending
	case domain.JobCompleted, domain.JobFailed:
		return from == domain.JobPending || from == domain.JobInProgress
	case domain.JobCancelled:
		return from == domain.JobPending || from == domain.JobInProgress
	case domain.JobPending:
		return false
	default:
		return false
	}
}
