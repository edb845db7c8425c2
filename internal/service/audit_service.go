package service

import (
	"context"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/repository"
)

type requestMetaKey struct{}

// RequestMeta - откуда пришел запрос, попадает в журнал аудита
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta кладет ip и user-agent в контекст
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, RequestMeta{IP: ip, UserAgent: userAgent})
}

func requestMeta(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}

// пишет запись аудита в текущей транзакции; ошибка откатывает все действие
func audit(ctx context.Context, tx repository.Tx, userID int64, action, category string, details map[string]interface{}) error {
	meta := requestMeta(ctx)
	if details == nil {
		details = make(map[string]interface{})
	}
	return tx.AppendAudit(ctx, &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// категория журнала по действию
func auditCategory(action string) string {
	switch action {
	case domain.AuditActionLogin:
		return domain.AuditCategoryAuth
	case domain.AuditActionReferralApply, domain.AuditActionReferralBonus:
		return domain.AuditCategoryReferral
	case domain.AuditActionWithdrawRequest:
		return domain.AuditCategoryWithdrawal
	case domain.AuditActionWithdrawApprove, domain.AuditActionWithdrawReject:
		return domain.AuditCategoryAdmin
	default:
		return domain.AuditCategoryEarn
	}
}
