// internal/repository/gormstore/actions.go
package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/ticketing-backend/internal/models"
)

func (s *Store) CreateDomainAction(ctx context.Context, action *models.DomainAction) error {
	return translate(s.conn(ctx).Create(action).Error, "domain action", "create domain action")
}

func (s *Store) FindDomainAction(ctx context.Context, id uuid.UUID) (*models.DomainAction, error) {
	var action models.DomainAction
	if err := s.conn(ctx).First(&action, "id = ?", id).Error; err != nil {
		return nil, translate(err, "domain action", "find domain action")
	}
	return &action, nil
}

func (s *Store) SaveDomainAction(ctx context.Context, action *models.DomainAction) error {
	return translate(s.conn(ctx).Save(action).Error, "domain action", "save domain action")
}

func (s *Store) ClaimDomainActions(ctx context.Context, now time.Time, visibility time.Duration, limit int) ([]models.DomainAction, error) {
	var actions []models.DomainAction
	err := s.WithTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		err := db.Clauses(lockSkipped).
			Where("status = ? AND scheduled_at <= ? AND blocked_until <= ? AND expires_at > ? AND attempt_count < max_attempt_count",
				models.DomainActionStatusPending, now, now, now).
			Order("scheduled_at").
			Limit(limit).
			Find(&actions).Error
		if err != nil {
			return translate(err, "domain action", "claim domain actions")
		}

		for i := range actions {
			attempted := now
			actions[i].AttemptCount++
			actions[i].LastAttemptedAt = &attempted
			actions[i].BlockedUntil = now.Add(visibility)
			if err := db.Save(&actions[i]).Error; err != nil {
				return translate(err, "domain action", "claim domain action")
			}
		}
		return nil
	})
	return actions, err
}

func (s *Store) ExpireDomainActions(ctx context.Context, now time.Time) (int64, error) {
	result := s.conn(ctx).
		Model(&models.DomainAction{}).
		Where("status = ? AND expires_at <= ?", models.DomainActionStatusPending, now).
		Update("status", models.DomainActionStatusExpired)
	return result.RowsAffected, translate(result.Error, "domain action", "expire domain actions")
}


func (s *Store) FailExhaustedDomainActions(ctx context.Context, now time.Time) (int64, error) {
	result := s.conn(ctx).
		Model(&models.DomainAction{}).
		Where("status = ? AND attempt_count >= max_attempt_count AND blocked_until <= ?", models.DomainActionStatusPending, now).
		Updates(map[string]interface{}{
			"status":              models.DomainActionStatusErrored,
			"last_failure_reason": "attempt abandoned by worker",
		})
	return result.RowsAffected, translate(result.Error, "domain action", "fail exhausted domain actions")
}
