package repository

import (
	"context"
	"errors"
	"time"

	"rewards_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, username, display_name, photo_url, points,
	daily_spins_left, daily_ad_spins_left, last_spin_day,
	daily_ads_watched, last_ad_watch_at, last_task_claim_day,
	task1_completed_day, task2_completed_day, task3_completed_day, task4_completed_day,
	referral_code, referred_by, referral_code_used, referrals_count,
	claimed_first_withdrawal, version, created_at, updated_at`

// получает пользователя, с блокировкой строки если lock
func getUser(ctx context.Context, q querier, id int64, lock bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanUser(q.QueryRow(ctx, query, id))
}

// создает пользователя с маркерами эпохи или обновляет только профиль
func ensureUser(ctx context.Context, q querier, p domain.Profile, code string) (*domain.User, bool, error) {
	var created bool
	u, err := scanUser(q.QueryRow(ctx, `
		INSERT INTO users (id, username, display_name, photo_url, referral_code,
		                   last_spin_day, last_ad_watch_at, last_task_claim_day)
		VALUES ($1, $2, $3, $4, $5, 'epoch', 'epoch', 'epoch')
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			updated_at = now()
		RETURNING `+userColumns+`, (xmax = 0)
	`, p.ID, p.Username, p.DisplayName, p.PhotoURL, code), &created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, ErrReferralCodeTaken
		}
		return nil, false, err
	}
	return u, created, nil
}

// сохраняет счетчики леджера. Профиль не пишется, его меняет только ensureUser
func saveUser(ctx context.Context, q querier, u *domain.User, now time.Time) error {
	err := q.QueryRow(ctx, `
		UPDATE users SET
			points = $3,
			daily_spins_left = $4, daily_ad_spins_left = $5, last_spin_day = $6,
			daily_ads_watched = $7, last_ad_watch_at = $8, last_task_claim_day = $9,
			task1_completed_day = $10, task2_completed_day = $11,
			task3_completed_day = $12, task4_completed_day = $13,
			referred_by = $14, referral_code_used = $15, referrals_count = $16,
			claimed_first_withdrawal = $17,
			version = version + 1,
			updated_at = $18
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, u.ID, u.Version, u.Points,
		u.DailySpinsLeft, u.DailyAdSpinsLeft, u.LastSpinDay,
		u.DailyAdsWatched, u.LastAdWatchAt, u.LastTaskClaimDay,
		u.TaskCompletedDay[0], u.TaskCompletedDay[1], u.TaskCompletedDay[2], u.TaskCompletedDay[3],
		u.ReferredBy, u.ReferralCodeUsed, u.ReferralsCount,
		u.ClaimedFirstWithdrawal, now,
	).Scan(&u.Version, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// сканирует строку в User, extra - дополнительные колонки после userColumns
func scanUser(row pgx.Row, extra ...any) (*domain.User, error) {
	var u domain.User
	dest := []any{
		&u.ID, &u.Username, &u.DisplayName, &u.PhotoURL, &u.Points,
		&u.DailySpinsLeft, &u.DailyAdSpinsLeft, &u.LastSpinDay,
		&u.DailyAdsWatched, &u.LastAdWatchAt, &u.LastTaskClaimDay,
		&u.TaskCompletedDay[0], &u.TaskCompletedDay[1], &u.TaskCompletedDay[2], &u.TaskCompletedDay[3],
		&u.ReferralCode, &u.ReferredBy, &u.ReferralCodeUsed, &u.ReferralsCount,
		&u.ClaimedFirstWithdrawal, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalizeUser(&u)
	return &u, nil
}

// pgx отдает время в локальной зоне, леджер живет в UTC
func normalizeUser(u *domain.User) {
	u.LastSpinDay = u.LastSpinDay.UTC()
	u.LastAdWatchAt = u.LastAdWatchAt.UTC()
	u.LastTaskClaimDay = u.LastTaskClaimDay.UTC()
	for i, t := range u.TaskCompletedDay {
		if t != nil {
			v := t.UTC()
			u.TaskCompletedDay[i] = &v
		}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
}
