// internal/repository/memstore/actions.go
package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateDomainAction(ctx context.Context, action *models.DomainAction) error {
	return s.run(ctx, func() error {
		s.stamp(&action.BaseModel, true)
		s.data.actions[action.ID] = *action
		return nil
	})
}

func (s *Store) FindDomainAction(ctx context.Context, id uuid.UUID) (*models.DomainAction, error) {
	return find(s, ctx, func(t *tables) map[uuid.UUID]models.DomainAction { return t.actions }, id, "domain action")
}

func (s *Store) SaveDomainAction(ctx context.Context, action *models.DomainAction) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.actions[action.ID]; !ok {
			return apperr.NotFound("domain action")
		}
		s.stamp(&action.BaseModel, false)
		s.data.actions[action.ID] = *action
		return nil
	})
}

func (s *Store) ClaimDomainActions(ctx context.Context, now time.Time, visibility time.Duration, limit int) ([]models.DomainAction, error) {
	var out []models.DomainAction
	err := s.run(ctx, func() error {
		for _, a := range s.data.actions {
			if a.IsRunnable(now) {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		for i := range out {
			attempted := now
			out[i].AttemptCount++
			out[i].LastAttemptedAt = &attempted
			out[i].BlockedUntil = now.Add(visibility)
			s.stamp(&out[i].BaseModel, false)
			s.data.actions[out[i].ID] = out[i]
		}
		return nil
	})
	return out, err
}

func (s *Store) ExpireDomainActions(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, func() error {
		for id, a := range s.data.actions {
			if a.Status == models.DomainActionStatusPending && !now.Before(a.ExpiresAt) {
				a.Status = models.DomainActionStatusExpired
				s.stamp(&a.BaseModel, false)
				s.data.actions[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) FailExhaustedDomainActions(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, func() error {
		for id, a := range s.data.actions {
			if a.IsExhausted(now) {
				a.Status = models.DomainActionStatusErrored
				a.LastFailureReason = "attempt abandoned by worker"
				s.stamp(&a.BaseModel, false)
				s.data.actions[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}
