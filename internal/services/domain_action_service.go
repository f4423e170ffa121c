// internal/services/domain_action_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/metrics"
	"github.com/javajoker/ticketing-backend/internal/models"
)

// ActionExecutor performs one domain action. A returned error makes the
// action eligible for another attempt.
type ActionExecutor interface {
	Execute(ctx context.Context, action *models.DomainAction) error
}

type ActionExecutorFunc func(ctx context.Context, action *models.DomainAction) error

func (f ActionExecutorFunc) Execute(ctx context.Context, action *models.DomainAction) error {
	return f(ctx, action)
}

const (
	defaultVisibility  = time.Minute
	defaultBatchSize   = 20
	defaultBaseBackoff = 30 * time.Second
	maxBackoff         = time.Hour
)

// DomainActionService is a durable job queue over the domain_actions table.
type DomainActionService struct {
	store       ActionStore
	clock       clock.Clock
	executors   map[models.DomainActionType]ActionExecutor
	visibility  time.Duration
	batchSize   int
	baseBackoff time.Duration
	log         *logrus.Entry
}

type DomainActionOption func(*DomainActionService)

func WithVisibilityTimeout(d time.Duration) DomainActionOption {
	return func(s *DomainActionService) {
		if d > 0 {
			s.visibility = d
		}
	}
}

func WithBatchSize(n int) DomainActionOption {
	return func(s *DomainActionService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithBaseBackoff(d time.Duration) DomainActionOption {
	return func(s *DomainActionService) {
		if d > 0 {
			s.baseBackoff = d
		}
	}
}

func NewDomainActionService(store ActionStore, clk clock.Clock, opts ...DomainActionOption) *DomainActionService {
	svc := &DomainActionService{
		store:       store,
		clock:       clk,
		executors:   make(map[models.DomainActionType]ActionExecutor),
		visibility:  defaultVisibility,
		batchSize:   defaultBatchSize,
		baseBackoff: defaultBaseBackoff,
		log:         logrus.WithField("service", "domain_actions"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RegisterExecutor must be called before Run.
func (s *DomainActionService) RegisterExecutor(actionType models.DomainActionType, executor ActionExecutor) {
	s.executors[actionType] = executor
}

type NewDomainAction struct {
	Type        models.DomainActionType
	Payload     models.JSONB
	MainTableID *uuid.UUID
	ExpiresIn   time.Duration
	MaxAttempts int
}

// Enqueue stores an action runnable from now.
func (s *DomainActionService) Enqueue(ctx context.Context, req NewDomainAction) (*models.DomainAction, error) {
	if req.ExpiresIn <= 0 {
		return nil, apperr.Invalid("domain action needs a positive expiry")
	}
	if req.MaxAttempts <= 0 {
		return nil, apperr.Invalid("domain action needs at least one attempt")
	}

	now := s.clock.Now()
	action := &models.DomainAction{
		ActionType:      req.Type,
		Payload:         req.Payload,
		MainTableID:     req.MainTableID,
		ScheduledAt:     now,
		ExpiresAt:       now.Add(req.ExpiresIn),
		BlockedUntil:    now,
		MaxAttemptCount: req.MaxAttempts,
		Status:          models.DomainActionStatusPending,
	}
	if err := s.store.CreateDomainAction(ctx, action); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"action_id":   action.ID,
		"action_type": action.ActionType,
	}).Info("Domain action queued")
	return action, nil
}

// ProcessBatch expires stale actions, then claims and executes up to one
// batch of runnable ones. It returns how many actions were executed.
func (s *DomainActionService) ProcessBatch(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.store.ExpireDomainActions(ctx, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.DomainActionsTotal.WithLabelValues("any", "expired").Add(float64(expired))
		s.log.WithField("count", expired).Warn("Expired domain actions")
	}
	exhausted, err := s.store.FailExhaustedDomainActions(ctx, now)
	if err != nil {
		return 0, err
	}
	if exhausted > 0 {
		metrics.DomainActionsTotal.WithLabelValues("any", "errored").Add(float64(exhausted))
		s.log.WithField("count", exhausted).Error("Domain actions abandoned on their last attempt")
	}

	actions, err := s.store.ClaimDomainActions(ctx, now, s.visibility, s.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range actions {
		s.execute(ctx, &actions[i])
	}
	return len(actions), nil
}

func (s *DomainActionService) execute(ctx context.Context, action *models.DomainAction) {
	logger := s.log.WithFields(logrus.Fields{
		"action_id":   action.ID,
		"action_type": action.ActionType,
		"attempt":     action.AttemptCount,
	})

	err := s.runExecutor(ctx, action)
	now := s.clock.Now()
	outcome := "success"
	if err == nil {
		action.Status = models.DomainActionStatusSuccess
		action.LastFailureReason = ""
	} else {
		action.LastFailureReason = err.Error()
		if action.AttemptCount >= action.MaxAttemptCount {
			action.Status = models.DomainActionStatusErrored
			outcome = "errored"
			logger.WithError(err).Error("Domain action failed for the last time")
		} else {
			action.Status = models.DomainActionStatusPending
			action.BlockedUntil = now.Add(s.backoff(action.AttemptCount))
			outcome = "retry"
			logger.WithError(err).WithField("retry_at", action.BlockedUntil).Warn("Domain action failed, will retry")
		}
	}
	metrics.DomainActionsTotal.WithLabelValues(string(action.ActionType), outcome).Inc()

	if err := s.store.SaveDomainAction(context.WithoutCancel(ctx), action); err != nil {
		logger.WithError(err).Error("Failed to record domain action outcome")
	}
}

func (s *DomainActionService) runExecutor(ctx context.Context, action *models.DomainAction) (err error) {
	executor, ok := s.executors[action.ActionType]
	if !ok {
		return fmt.Errorf("no executor registered for %s", action.ActionType)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, action)
}

// backoff doubles per attempt, capped at maxBackoff.
func (s *DomainActionService) backoff(attempt int) time.Duration {
	d := s.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Run polls for work every interval until ctx ends.
func (s *DomainActionService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithField("interval", interval).Info("Domain action worker started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Domain action worker stopped")
			return nil
		case <-ticker.C:
			for {
				n, err := s.ProcessBatch(ctx)
				if err != nil {
					s.log.WithError(err).Error("Domain action batch failed")
					break
				}
				if n < s.batchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}
