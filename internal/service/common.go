package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/lock"
	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

const dateLayout = "2006-01-02"

// EventPublisher pushes change notifications to connected screens.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// Infra bundles the collaborators shared by the document services.
type Infra struct {
	Tx       repository.TransactionManager
	Audit    repository.AuditRepository
	Locker   lock.Locker
	Metrics  *metrics.Metrics
	Events   EventPublisher
	Log      *logrus.Logger
	Location *time.Location
	Now      func() time.Time
}

func (in *Infra) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// today is the current calendar date in the business time zone, stored as UTC
// midnight like every other document date.
func (in *Infra) today() time.Time {
	now := in.now()
	if in.Location != nil {
		now = now.In(in.Location)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// currentMonth returns [first day of this month, first day of next month).
func (in *Infra) currentMonth() (time.Time, time.Time) {
	t := in.today()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// withLock runs fn while holding the distributed lock for key. Contention is
// reported as a conflict.
func (in *Infra) withLock(ctx context.Context, key string, fn func() error) error {
	if in.Locker == nil {
		return fn()
	}
	release, err := in.Locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return billing.Errorf(billing.ErrConflict, "%s is being modified by another request, retry shortly", key)
		}
		return err
	}
	defer release()
	return fn()
}

// audit writes one audit entry inside ctx's transaction when there is one.
func (in *Infra) audit(ctx context.Context, actor auth.Principal, action, entityID, entityName string, details interface{}) error {
	if in.Audit == nil {
		return nil
	}
	var payload datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		payload = raw
	}
	var uid *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		uid = &id
	}
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if err := in.Audit.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (in *Infra) publish(eventType string, data interface{}) {
	if in.Events != nil {
		in.Events.Publish(eventType, data)
	}
}

func (in *Infra) transition(document, action string, err error) {
	in.Metrics.Transition(document, action, err)
	if err != nil && in.Log != nil && billing.KindOf(err) == "" {
		in.Log.WithError(err).WithFields(logrus.Fields{"document": document, "action": action}).Error("transition failed")
	}
}

// parseID parses a path or payload identifier.
func parseID(raw, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, billing.Errorf(billing.ErrValidation, "invalid %s id", entity)
	}
	return id, nil
}

// lookupErr turns a missing row into a not_found domain error and wraps anything else.
func lookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Errorf(billing.ErrNotFound, "%s not found", entity)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func parseDate(raw, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, billing.Errorf(billing.ErrValidation, "%s must be a date formatted YYYY-MM-DD", field)
	}
	return t.UTC(), nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(*raw, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
