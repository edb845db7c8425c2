package rewards

import (
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/domain"
)

// ApplyDailyReset возвращает запись с актуальными на день now счетчиками.
// Три сброса независимы: вращения, реклама и задания смотрят каждый на свой маркер.
// Исходная запись не меняется
func ApplyDailyReset(u domain.User, now time.Time) domain.User {
	if !clock.SameDay(u.LastSpinDay, now) {
		u.DailySpinsLeft = DailyFreeSpins
		u.DailyAdSpinsLeft = DailyAdSpins
		u.LastSpinDay = now
	}

	// LastAdWatchAt остается якорем кулдауна, его не трогаем
	if !clock.SameDay(u.LastAdWatchAt, now) {
		u.DailyAdsWatched = 0
	}

	// отметки заданий живут только в свой день, LastTaskClaimDay ставится только при получении награды
	if !clock.SameDay(u.LastTaskClaimDay, now) {
		for i, t := range u.TaskCompletedDay {
			if t != nil && !clock.IsToday(t, now) {
				u.TaskCompletedDay[i] = nil
			}
		}
	}

	return u
}

// NeedsReset - сброс что-то поменяет и его стоит сохранить
func NeedsReset(u *domain.User, now time.Time) bool {
	if !clock.SameDay(u.LastSpinDay, now) {
		return true
	}
	if !clock.SameDay(u.LastAdWatchAt, now) && u.DailyAdsWatched != 0 {
		return true
	}
	if !clock.SameDay(u.LastTaskClaimDay, now) {
		for _, t := range u.TaskCompletedDay {
			if t != nil && !clock.IsToday(t, now) {
				return true
			}
		}
	}
	return false
}

// RemainingCooldown - сколько еще ждать до следующей рекламы, 0 если можно
func RemainingCooldown(lastAdWatchAt, now time.Time) time.Duration {
	elapsed := now.Sub(lastAdWatchAt)
	if elapsed >= AdCooldown {
		return 0
	}
	return AdCooldown - elapsed
}
