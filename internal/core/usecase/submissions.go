package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

type SubmissionIntakeUseCase struct {
	repo  ports.SubmissionRepository
	queue ports.SubmissionQueue
}

func NewSubmissionIntakeUseCase(repo ports.SubmissionRepository, queue ports.SubmissionQueue) *SubmissionIntakeUseCase {
	return &SubmissionIntakeUseCase{
		repo:  repo,
		queue: queue,
	}
}

func (uc *SubmissionIntakeUseCase) SubmitInterest(ctx context.Context, form domain.InterestForm) (*domain.Submission, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	payload := struct {
		domain.InterestForm
		ReplyTo string `json:"_replyto"`
		Subject string `json:"_subject"`
	}{
		InterestForm: form,
		ReplyTo:      form.Email,
		Subject:      form.Subject(),
	}
	return uc.accept(ctx, domain.KindInterest, form.Email, payload)
}

func (uc *SubmissionIntakeUseCase) SubmitDataRequest(ctx context.Context, req domain.DataRequest) (*domain.Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := struct {
		domain.DataRequest
		ReplyTo string `json:"_replyto"`
		Subject string `json:"_subject"`
	}{
		DataRequest: req,
		ReplyTo:     req.Email,
		Subject:     req.Subject(),
	}
	return uc.accept(ctx, domain.KindDataRequest, req.Email, payload)
}

func (uc *SubmissionIntakeUseCase) accept(ctx context.Context, kind domain.SubmissionKind, email string, payload any) (*domain.Submission, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode submission payload: %w", err)
	}

	now := time.Now().UTC()
	sub := &domain.Submission{
		ID:        uuid.NewString(),
		Kind:      kind,
		Email:     email,
		Payload:   body,
		Status:    domain.SubmissionReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	if err := uc.queue.PublishSubmission(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}
	return sub, nil
}

// ForwardSubmissionUseCase relays stored submissions to the form inbox.
type ForwardSubmissionUseCase struct {
	repo      ports.SubmissionRepository
	forwarder ports.SubmissionForwarder
}

func NewForwardSubmissionUseCase(repo ports.SubmissionRepository, forwarder ports.SubmissionForwarder) *ForwardSubmissionUseCase {
	return &ForwardSubmissionUseCase{
		repo:      repo,
		forwarder: forwarder,
	}
}

func (uc *ForwardSubmissionUseCase) ProcessByID(ctx context.Context, submissionID string) error {
	sub, err := uc.repo.GetByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("fetch submission by id: %w", err)
	}
	if sub.Status == domain.SubmissionForwarded {
		return nil
	}

	if err := uc.forwarder.Forward(ctx, sub); err != nil {
		err = fmt.Errorf("forward submission: %w", err)
		if failErr := uc.markFailed(ctx, submissionID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, submissionID, domain.SubmissionForwarded, ""); err != nil {
		return fmt.Errorf("set status=forwarded: %w", err)
	}
	return nil
}

func (uc *ForwardSubmissionUseCase) markFailed(ctx context.Context, submissionID string, forwardErr error) error {
	if forwardErr == nil {
		return nil
	}
	return uc.repo.UpdateStatus(ctx, submissionID, domain.SubmissionFailed, forwardErr.Error())
}

const requeueBatchSize = 100

// RequeueSubmissionsUseCase republishes submissions left in status received,
// e.g. when the API stored them but the publish to the queue failed.
type RequeueSubmissionsUseCase struct {
	repo  ports.SubmissionRepository
	queue ports.SubmissionQueue
	now   func() time.Time
}

func NewRequeueSubmissionsUseCase(repo ports.SubmissionRepository, queue ports.SubmissionQueue) *RequeueSubmissionsUseCase {
	return &RequeueSubmissionsUseCase{
		repo:  repo,
		queue: queue,
		now:   time.Now,
	}
}

func (uc *RequeueSubmissionsUseCase) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := uc.repo.ListStale(ctx, uc.now().Add(-olderThan), requeueBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale submissions: %w", err)
	}

	published := 0
	for _, id := range ids {
		if err := uc.queue.PublishSubmission(ctx, id); err != nil {
			return published, fmt.Errorf("republish submission %s: %w", id, err)
		}
		published++
	}
	return published, nil
}
