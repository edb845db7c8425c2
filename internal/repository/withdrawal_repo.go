package repository

import (
	"context"
	"errors"

	"rewards_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `
	id, user_id, username, points, payout_usd::text, method, address,
	status, one_time_tier, admin_notes, created_at, reviewed_at`

// добавляет заявку, id присваивает база
func insertWithdrawal(ctx context.Context, q querier, w *domain.Withdrawal) error {
	return q.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, username, points, payout_usd, method, address, status, one_time_tier, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
		RETURNING id
	`, w.UserID, w.Username, w.Points, w.PayoutUSD.StringFixed(2), w.Method, w.Address,
		string(w.Status), w.OneTimeTier, w.CreatedAt).Scan(&w.ID)
}

func getWithdrawal(ctx context.Context, q querier, id int64, lock bool) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanWithdrawal(q.QueryRow(ctx, query, id))
}

// меняются только поля ревью
func updateWithdrawal(ctx context.Context, q querier, w *domain.Withdrawal) error {
	tag, err := q.Exec(ctx, `
		UPDATE withdrawals SET status = $2, admin_notes = $3, reviewed_at = $4
		WHERE id = $1
	`, w.ID, string(w.Status), w.AdminNotes, w.ReviewedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// заявки пользователя, новые сначала
func listWithdrawals(ctx context.Context, q querier, userID int64, limit int) ([]domain.Withdrawal, error) {
	rows, err := q.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

// заявки на ревью, старые сначала
func listPendingWithdrawals(ctx context.Context, q querier, limit int) ([]domain.Withdrawal, error) {
	rows, err := q.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var payout, status string

	if err := row.Scan(
		&w.ID, &w.UserID, &w.Username, &w.Points, &payout, &w.Method, &w.Address,
		&status, &w.OneTimeTier, &w.AdminNotes, &w.CreatedAt, &w.ReviewedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	d, err := decimal.NewFromString(payout)
	if err != nil {
		return nil, err
	}
	w.PayoutUSD = d
	w.Status = domain.WithdrawalStatus(status)
	w.CreatedAt = w.CreatedAt.UTC()
	if w.ReviewedAt != nil {
		t := w.ReviewedAt.UTC()
		w.ReviewedAt = &t
	}
	return &w, nil
}

func scanWithdrawals(rows pgx.Rows) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
