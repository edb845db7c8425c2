package repository

import (
	"context"

	"rewards_webapp/internal/domain"
)

// находит владельца кода, сравнение с учетом регистра
func findByReferralCode(ctx context.Context, q querier, code string) (*domain.User, error) {
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

// приглашенные пользователем, новые сначала
func listReferred(ctx context.Context, q querier, referrerID int64, limit int) ([]domain.User, error) {
	rows, err := q.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE referred_by = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
