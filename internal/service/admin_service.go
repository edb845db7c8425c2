package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/repository"
)

var (
	ErrWithdrawalReviewed = errors.New("заявка уже обработана")
	ErrReasonRequired     = errors.New("укажите причину отклонения")
)

// AdminService - ревью заявок на вывод внешним проверяющим (админ бот)
type AdminService struct {
	store     repository.Store
	txTimeout time.Duration

	onReviewed func(domain.Withdrawal)
	onCommit   func(domain.User)
}

func NewAdminService(store repository.Store, txTimeout time.Duration) *AdminService {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	return &AdminService{store: store, txTimeout: txTimeout}
}

// SetReviewCallback - вызывается после одобрения или отклонения (уведомление пользователя)
func (s *AdminService) SetReviewCallback(fn func(domain.Withdrawal)) {
	s.onReviewed = fn
}

// SetCommitCallback - вызывается с записью пользователя после возврата поинтов
func (s *AdminService) SetCommitCallback(fn func(domain.User)) {
	s.onCommit = fn
}

// GetPendingWithdrawals - заявки на ревью, старые сначала
func (s *AdminService) GetPendingWithdrawals(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	return s.store.ListPendingWithdrawals(ctx, limit)
}

// GetUser - запись пользователя для команды /user
func (s *AdminService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ApproveWithdrawal помечает заявку выплаченной. Сама выплата делается вне системы
func (s *AdminService) ApproveWithdrawal(ctx context.Context, id, adminID int64, notes string) (*domain.Withdrawal, error) {
	return s.review(ctx, id, adminID, domain.WithdrawalStatusApproved, strings.TrimSpace(notes))
}

// RejectWithdrawal отклоняет заявку и возвращает поинты в той же транзакции.
// Флаг разового вывода не откатывается
func (s *AdminService) RejectWithdrawal(ctx context.Context, id, adminID int64, reason string) (*domain.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.review(ctx, id, adminID, domain.WithdrawalStatusRejected, reason)
}

func (s *AdminService) review(ctx context.Context, id, adminID int64, status domain.WithdrawalStatus, notes string) (*domain.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var reviewed *domain.Withdrawal
	var refunded *domain.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		w, err := tx.GetWithdrawalForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return ErrWithdrawalReviewed
		}

		now := tx.Now()
		w.Status = status
		w.AdminNotes = notes
		w.ReviewedAt = &now

		action := domain.AuditActionWithdrawApprove
		if status == domain.WithdrawalStatusRejected {
			action = domain.AuditActionWithdrawReject
			u, err := tx.GetUserForUpdate(ctx, w.UserID)
			if err != nil {
				return err
			}
			u.Points += w.Points
			if err := tx.SaveUser(ctx, u); err != nil {
				return err
			}
			refunded = u
		}

		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}
		if err := audit(ctx, tx, w.UserID, action, domain.AuditCategoryAdmin, map[string]interface{}{
			"withdrawal_id": w.ID,
			"admin_id":      adminID,
			"notes":         notes,
		}); err != nil {
			return err
		}
		reviewed = w
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrWithdrawalReviewed) {
			return nil, err
		}
		return nil, fmt.Errorf("review withdrawal %d: %w", id, err)
	}

	logger.WithContext(ctx).Info("withdrawal reviewed", "withdrawal_id", id, "admin_id", adminID, "status", status)
	if refunded != nil && s.onCommit != nil {
		s.onCommit(*refunded.Clone())
	}
	if s.onReviewed != nil {
		s.onReviewed(*reviewed)
	}
	return reviewed, nil
}
