package domain

import "time"

// Логирование мастхев важных действий
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Категории совершенных действий
const (
	AuditCategoryAuth       = "auth"
	AuditCategoryEarn       = "earn"
	AuditCategoryReferral   = "referral"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategoryAdmin      = "admin"
)

const (
	// Авторизация
	AuditActionLogin = "login"

	// Заработок поинтов
	AuditActionSpin       = "spin"
	AuditActionAdSpin     = "ad_spin"
	AuditActionWatchAd    = "watch_ad"
	AuditActionTaskOpen   = "task_open"
	AuditActionTaskClaim  = "task_claim"
	AuditActionDailyReset = "daily_reset"

	// Рефералка
	AuditActionReferralApply = "referral_apply"
	AuditActionReferralBonus = "referral_bonus"

	// Вывод
	AuditActionWithdrawRequest = "withdraw_request"
	AuditActionWithdrawApprove = "withdraw_approve"
	AuditActionWithdrawReject  = "withdraw_reject"
)
