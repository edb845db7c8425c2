package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Заявка на вывод. Создается вместе со списанием поинтов, дальше меняется только статус
type Withdrawal struct {
	ID          int64            `db:"id" json:"id"`
	UserID      int64            `db:"user_id" json:"user_id"`
	Username    string           `db:"username" json:"username"`
	Points      int64            `db:"points" json:"points"`
	PayoutUSD   decimal.Decimal  `db:"payout_usd" json:"payout_usd"`
	Method      string           `db:"method" json:"method"`
	Address     string           `db:"address" json:"address"`
	Status      WithdrawalStatus `db:"status" json:"status"`
	AdminNotes  string           `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	ReviewedAt  *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	OneTimeTier bool             `db:"one_time_tier" json:"one_time_tier"`
}

// Статус заявки
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)
