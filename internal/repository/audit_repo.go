package repository

import (
	"context"
	"encoding/json"

	"rewards_webapp/internal/domain"
)

// пишет запись аудита в той же транзакции, что и изменение
func appendAudit(ctx context.Context, q querier, log *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil || log.Details == nil {
		detailsJSON = []byte("{}")
	}

	return q.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, log.UserID, log.Action, log.Category, detailsJSON, log.IP, log.UserAgent, log.CreatedAt).Scan(&log.ID)
}
