package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/compensation"
)

// =============================================================================
// SERVICE - Launch lifecycle
// =============================================================================

// Service runs the launch state machine.
type Service struct {
	Store      Store
	Calculator *compensation.Calculator
	Logger     *zap.Logger
	Metrics    Metrics

	Now   func() time.Time
	NewID func() string
}

// NewService wires a service with a no-op logger and metrics, the wall
// clock and random UUIDs.
func NewService(store Store, calc *compensation.Calculator) *Service {
	return &Service{
		Store:      store,
		Calculator: calc,
		Logger:     zap.NewNop(),
		Metrics:    nopMetrics{},
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// SubmitInput is a new daily submission.
type SubmitInput struct {
	WorkerID string
	Date     string
	Payload  compensation.Payload
}

// ValidateInput is a reviewer decision on a pending launch.
type ValidateInput struct {
	Action       string // approve | reject | editar
	ActorID      string
	Observations *string
	Edited       *compensation.Payload
}

// Validation actions accepted by Validate.
const (
	ValidateApprove = "approve"
	ValidateReject  = "reject"
	ValidateEdit    = "editar"
)

// CheckDailyLimit runs the same guard as Submit without writing anything.
func (s *Service) CheckDailyLimit(ctx context.Context, workerID, date string) (DailyLimit, error) {
	workerID, date, err := normalizeSlot(workerID, date)
	if err != nil {
		return DailyLimit{}, err
	}
	existing, err := s.Store.FindActiveLaunch(ctx, workerID, date)
	if err != nil {
		return DailyLimit{}, fmt.Errorf("check daily limit: %w", err)
	}
	if existing == nil {
		return DailyLimit{CanLaunch: true}, nil
	}
	return DailyLimit{
		LimitReached:     true,
		ExistingLaunchID: existing.ID,
		ExistingStatus:   existing.Status,
	}, nil
}

// Submit calculates and stores a pending launch.
//
// The guard query gives the common case a fast, descriptive error. The
// store's uniqueness check is what makes the limit hold under concurrent
// submissions; its conflict is reported the same way.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Launch, error) {
	workerID, date, err := normalizeSlot(in.WorkerID, in.Date)
	if err != nil {
		return Launch{}, err
	}

	if err := s.guardDailyLimit(ctx, workerID, date); err != nil {
		return Launch{}, err
	}

	breakdown, err := s.Calculator.CalculatePayload(ctx, in.Payload)
	if err != nil {
		return Launch{}, err
	}

	now := s.Now()
	l := Launch{
		ID:        s.NewID(),
		WorkerID:  workerID,
		Date:      date,
		Role:      strings.TrimSpace(in.Payload.Role),
		Shift:     strings.TrimSpace(in.Payload.Shift),
		Input:     in.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.applyResult(*breakdown)

	ev := ApprovalEvent{
		ID:        s.NewID(),
		LaunchID:  l.ID,
		Action:    ActionSubmitted,
		ActorID:   workerID,
		Timestamp: now,
	}

	if err := s.create(ctx, l, ev); err != nil {
		return Launch{}, err
	}

	s.Metrics.RecordTransition(ctx, string(ActionSubmitted), string(StatusPending))
	s.Logger.Info("launch submitted",
		zap.String("launch_id", l.ID),
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.String("total", l.TotalCompensation.String()))
	return l, nil
}

// maxCreateAttempts bounds how often Submit retries an insert whose slot was
// released between the conflict and the guard re-check.
const maxCreateAttempts = 3

// create inserts l. A uniqueness conflict means a concurrent submission won
// the slot: the guard is re-run so the error names that launch. If the slot
// is free again by then (the winner was rejected), the insert is retried.
func (s *Service) create(ctx context.Context, l Launch, ev ApprovalEvent) error {
	for attempt := 1; ; attempt++ {
		err := s.Store.CreateLaunch(ctx, l, ev)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateActiveLaunch) {
			return fmt.Errorf("create launch: %w", err)
		}
		if gerr := s.guardDailyLimit(ctx, l.WorkerID, l.Date); gerr != nil {
			return gerr
		}
		if attempt == maxCreateAttempts {
			return fmt.Errorf("%w: the launch slot of worker %s for %s kept changing; submit again",
				ErrConcurrentModification, l.WorkerID, l.Date)
		}
		s.Logger.Debug("launch slot released during submit, retrying",
			zap.String("worker_id", l.WorkerID),
			zap.String("date", l.Date),
			zap.Int("attempt", attempt))
	}
}

func (s *Service) guardDailyLimit(ctx context.Context, workerID, date string) error {
	limit, err := s.CheckDailyLimit(ctx, workerID, date)
	if err != nil {
		return err
	}
	if !limit.LimitReached {
		return nil
	}
	s.Metrics.RecordDailyLimitRejection(ctx)
	s.Logger.Debug("daily limit reached",
		zap.String("worker_id", workerID),
		zap.String("date", date),
		zap.String("existing_launch_id", limit.ExistingLaunchID))
	return &DailyLimitError{
		WorkerID:         workerID,
		Date:             date,
		ExistingLaunchID: limit.ExistingLaunchID,
		ExistingStatus:   limit.ExistingStatus,
	}
}

// Approve moves a pending launch to approved.
func (s *Service) Approve(ctx context.Context, id, actorID string, observations *string) (Launch, error) {
	return s.transition(ctx, id, ActionApproved, func(l *Launch, now time.Time) error {
		l.Status = StatusApproved
		s.review(l, actorID, observations, now)
		return nil
	}, actorID, observations)
}

// Reject moves a pending launch to rejected. The launch is kept and its
// (worker, date) slot becomes free.
func (s *Service) Reject(ctx context.Context, id, actorID string, observations *string) (Launch, error) {
	return s.transition(ctx, id, ActionRejected, func(l *Launch, now time.Time) error {
		l.Status = StatusRejected
		s.review(l, actorID, observations, now)
		return nil
	}, actorID, observations)
}

// EditAndApprove recalculates a pending launch from edited input and
// approves it in one step. Role and shift default to the original ones
// when the edited input leaves them blank.
func (s *Service) EditAndApprove(ctx context.Context, id, actorID string, edited compensation.Payload, observations *string) (Launch, error) {
	return s.transition(ctx, id, ActionEditedApproved, func(l *Launch, now time.Time) error {
		if strings.TrimSpace(edited.Role) == "" {
			edited.Role = l.Role
		}
		if strings.TrimSpace(edited.Shift) == "" {
			edited.Shift = l.Shift
		}
		breakdown, err := s.Calculator.CalculatePayload(ctx, edited)
		if err != nil {
			return err
		}
		l.Input = edited
		l.Role = strings.TrimSpace(edited.Role)
		l.Shift = strings.TrimSpace(edited.Shift)
		l.applyResult(*breakdown)
		l.Status = StatusEditedApproved
		l.EditedBy = &actorID
		l.EditedAt = &now
		s.review(l, actorID, observations, now)
		return nil
	}, actorID, observations)
}

// Validate dispatches a reviewer decision.
func (s *Service) Validate(ctx context.Context, id string, in ValidateInput) (Launch, error) {
	switch strings.ToLower(strings.TrimSpace(in.Action)) {
	case ValidateApprove:
		return s.Approve(ctx, id, in.ActorID, in.Observations)
	case ValidateReject:
		return s.Reject(ctx, id, in.ActorID, in.Observations)
	case ValidateEdit:
		if in.Edited == nil {
			return Launch{}, &compensation.InputError{Field: "dados_editados", Message: "is required for editar"}
		}
		return s.EditAndApprove(ctx, id, in.ActorID, *in.Edited, in.Observations)
	default:
		return Launch{}, fmt.Errorf("%w: %q (expected approve, reject or editar)", ErrInvalidAction, in.Action)
	}
}

// transition loads a launch, applies mutate if it is pending and stores it
// conditionally on it still being pending.
func (s *Service) transition(
	ctx context.Context,
	id string,
	action Action,
	mutate func(l *Launch, now time.Time) error,
	actorID string,
	observations *string,
) (Launch, error) {
	if strings.TrimSpace(actorID) == "" {
		return Launch{}, &compensation.InputError{Field: "actor_id", Message: "is required"}
	}

	l, err := s.Store.GetLaunch(ctx, id)
	if err != nil {
		return Launch{}, err
	}
	if l.Status.IsTerminal() {
		return Launch{}, &TransitionError{LaunchID: id, Action: action, CurrentStatus: l.Status}
	}

	now := s.Now()
	if err := mutate(&l, now); err != nil {
		return Launch{}, err
	}
	l.UpdatedAt = now

	ev := ApprovalEvent{
		ID:           s.NewID(),
		LaunchID:     id,
		Action:       action,
		ActorID:      actorID,
		Timestamp:    now,
		Observations: observations,
	}
	if err := s.Store.UpdateLaunch(ctx, l, StatusPending, ev); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			current, gerr := s.Store.GetLaunch(ctx, id)
			if gerr != nil {
				return Launch{}, gerr
			}
			return Launch{}, &TransitionError{LaunchID: id, Action: action, CurrentStatus: current.Status}
		}
		return Launch{}, fmt.Errorf("update launch %s: %w", id, err)
	}

	s.Metrics.RecordTransition(ctx, string(action), string(l.Status))
	s.Logger.Info("launch reviewed",
		zap.String("launch_id", id),
		zap.String("action", string(action)),
		zap.String("actor_id", actorID),
		zap.String("total", l.TotalCompensation.String()))
	return l, nil
}

func (s *Service) review(l *Launch, actorID string, observations *string, now time.Time) {
	l.ReviewedBy = &actorID
	l.ReviewedAt = &now
	if observations != nil {
		l.Observations = observations
	}
}

// =============================================================================
// READS
// =============================================================================

// Get returns a launch by ID.
func (s *Service) Get(ctx context.Context, id string) (Launch, error) {
	return s.Store.GetLaunch(ctx, id)
}

// List returns launches matching f, oldest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Launch, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, &compensation.InputError{Field: "status", Message: fmt.Sprintf("unknown status %q", f.Status)}
	}
	return s.Store.ListLaunches(ctx, f)
}

// Events returns the audit trail of a launch.
func (s *Service) Events(ctx context.Context, id string) ([]ApprovalEvent, error) {
	if _, err := s.Store.GetLaunch(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListEvents(ctx, id)
}

// normalizeSlot trims the worker ID and checks the date is YYYY-MM-DD.
func normalizeSlot(workerID, date string) (string, string, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return "", "", &compensation.InputError{Field: "worker_id", Message: "is required"}
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", "", &compensation.InputError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return workerID, d.Format(DateLayout), nil
}
