package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/metrics"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"
)

// ReferredUser - приглашенный пользователь в списке рефералов
type ReferredUser struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// PerformReferral применяет чужой реферальный код.
// Обе записи блокируются по возрастанию id и меняются в одной транзакции
func (s *RewardsService) PerformReferral(ctx context.Context, userID int64, code string) (*ActionResult, error) {
	const action = domain.AuditActionReferralApply
	started := time.Now()
	code = strings.TrimSpace(code)

	referrerID, err := s.checkReferralPreview(ctx, userID, code)
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	var self, referrer *domain.User
	var before int64
	err = s.store.RunInTx(tctx, func(tx repository.Tx) error {
		locked, err := tx.LockUsers(tctx, userID, referrerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return rewards.ErrInvalidReferralCode
			}
			return err
		}
		now := tx.Now()
		before = locked[0].Points
		a := rewards.ApplyDailyReset(*locked[0], now)
		b := rewards.ApplyDailyReset(*locked[1], now)

		if err := rewards.CheckReferral(&a, code, &b); err != nil {
			return err
		}
		rewards.ApplyReferral(&a, &b)

		if err := tx.SaveUser(tctx, &a); err != nil {
			return err
		}
		if err := tx.SaveUser(tctx, &b); err != nil {
			return err
		}
		if err := audit(tctx, tx, a.ID, domain.AuditActionReferralApply, domain.AuditCategoryReferral, map[string]interface{}{
			"code": code, "referrer_id": b.ID, "points_delta": rewards.ReferredBonus,
		}); err != nil {
			return err
		}
		if err := audit(tctx, tx, b.ID, domain.AuditActionReferralBonus, domain.AuditCategoryReferral, map[string]interface{}{
			"referred_id": a.ID, "points_delta": rewards.ReferrerBonus,
		}); err != nil {
			return err
		}
		self, referrer = &a, &b
		return nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, before, self)
	res.Reward = rewards.ReferredBonus
	// бонус рефереру учитываем отдельно
	metrics.Award(domain.AuditActionReferralBonus, rewards.ReferrerBonus)
	s.publish(referrer)
	return res, nil
}

// проверка до транзакции: формат, свой код, существование владельца
func (s *RewardsService) checkReferralPreview(ctx context.Context, userID int64, code string) (int64, error) {
	self, _, err := s.preview(ctx, userID)
	if err != nil {
		return 0, err
	}
	if self.ReferralCodeUsed {
		return 0, rewards.ErrReferralAlreadyUsed
	}
	if err := rewards.ValidateReferralCodeFormat(code); err != nil {
		return 0, err
	}
	if code == self.ReferralCode {
		return 0, rewards.ErrSelfReferral
	}

	owner, err := s.store.FindByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, rewards.ErrInvalidReferralCode
	}
	if err != nil {
		return 0, err
	}
	if owner.ID == userID {
		return 0, rewards.ErrSelfReferral
	}
	return owner.ID, nil
}

// ListReferrals - кого пригласил пользователь
func (s *RewardsService) ListReferrals(ctx context.Context, userID int64, limit int) ([]ReferredUser, error) {
	users, err := s.store.ListReferred(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ReferredUser, 0, len(users))
	for _, u := range users {
		out = append(out, ReferredUser{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			JoinedAt:    u.CreatedAt,
		})
	}
	return out, nil
}
