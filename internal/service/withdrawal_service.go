package service

import (
	"context"
	"strings"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"
)

// WithdrawalRequest - запрос пользователя на вывод
type WithdrawalRequest struct {
	Points  int64  `json:"points"`
	Method  string `json:"method"`
	Address string `json:"address"`
}

// PerformWithdrawal списывает поинты и создает заявку pending в одной транзакции
func (s *RewardsService) PerformWithdrawal(ctx context.Context, userID int64, req WithdrawalRequest) (*ActionResult, error) {
	const action = domain.AuditActionWithdrawRequest
	started := time.Now()
	req.Method = strings.TrimSpace(req.Method)
	req.Address = strings.TrimSpace(req.Address)

	tier, err := s.cfg.Tiers.Lookup(req.Points)
	if err == nil {
		err = rewards.ValidateDestination(req.Method, req.Address, s.cfg.Methods)
	}
	if err == nil {
		var p *domain.User
		if p, _, err = s.preview(ctx, userID); err == nil {
			err = rewards.CheckWithdrawal(p, tier)
		}
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	var w *domain.Withdrawal
	u, err := s.mutate(ctx, userID, action, func(ctx context.Context, tx repository.Tx, u *domain.User, _ time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckWithdrawal(u, tier); err != nil {
			return nil, err
		}
		rewards.ApplyWithdrawal(u, tier)

		w = &domain.Withdrawal{
			UserID:      u.ID,
			Username:    u.Username,
			Points:      tier.Points,
			PayoutUSD:   tier.PayoutUSD,
			Method:      req.Method,
			Address:     req.Address,
			Status:      domain.WithdrawalStatusPending,
			OneTimeTier: tier.Once,
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"withdrawal_id": w.ID,
			"points":        tier.Points,
			"payout_usd":    tier.PayoutUSD.String(),
			"method":        req.Method,
		}, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, u.Points, u)
	res.Withdrawal = w
	if s.onWithdrawal != nil {
		s.onWithdrawal(*w)
	}
	return res, nil
}

// ListWithdrawals - история заявок пользователя, новые сначала
func (s *RewardsService) ListWithdrawals(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	return s.store.ListWithdrawals(ctx, userID, limit)
}
