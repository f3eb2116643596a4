package service

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice/internal/repository"
)

// AuditListQuery carries the audit log filters.
type AuditListQuery struct {
	Action   string `form:"action"`
	EntityID string `form:"entity_id"`
	UserID   string `form:"user_id"`
}

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt  string          `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, q AuditListQuery, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs lists entries newest first. Entries without a user were
// written by the system.
func (s *auditService) GetAuditLogs(ctx context.Context, q AuditListQuery, page, limit int) ([]AuditLogResponse, int64, error) {
	if q.UserID != "" {
		if _, err := parseID(q.UserID, "user"); err != nil {
			return nil, 0, err
		}
	}
	logs, total, err := s.auditRepo.List(ctx, repository.AuditFilter{
		Action:   q.Action,
		EntityID: q.EntityID,
		UserID:   q.UserID,
	}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		var details json.RawMessage
		if len(l.Details) > 0 {
			details = json.RawMessage(l.Details)
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  formatTimestamp(l.CreatedAt),
		})
	}
	return res, total, nil
}
