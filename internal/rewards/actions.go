package rewards

import (
	"strings"
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/domain"
)

// Все Check* ожидают запись, к которой уже применен ApplyDailyReset на тот же now.
// Apply* меняют запись на месте и вызываются только после успешного Check*.

// CheckSpin - бесплатное вращение
func CheckSpin(u *domain.User) error {
	if u.DailySpinsLeft <= 0 {
		return ErrNoSpinsLeft
	}
	return nil
}

func ApplySpin(u *domain.User, reward int64) {
	u.DailySpinsLeft--
	u.Points += reward
}

// CheckAdSpin - реклама за +2 вращения, доступна когда бесплатные закончились
func CheckAdSpin(u *domain.User, now time.Time) error {
	if u.DailySpinsLeft > 0 {
		return ErrFreeSpinsRemain
	}
	if u.DailyAdSpinsLeft <= 0 {
		return ErrNoAdSpinsLeft
	}
	if RemainingCooldown(u.LastAdWatchAt, now) > 0 {
		return ErrCooldownActive
	}
	return nil
}

func ApplyAdSpin(u *domain.User, now time.Time) {
	u.DailyAdSpinsLeft--
	u.DailySpinsLeft += AdSpinBonus
	u.LastAdWatchAt = now
}

// CheckWatchAd - реклама за поинты. Кулдаун общий с рекламой за вращения
func CheckWatchAd(u *domain.User, now time.Time) error {
	if u.DailyAdsWatched >= MaxDailyAds {
		return ErrAdLimitReached
	}
	if RemainingCooldown(u.LastAdWatchAt, now) > 0 {
		return ErrCooldownActive
	}
	return nil
}

func ApplyWatchAd(u *domain.User, now time.Time) {
	u.DailyAdsWatched++
	u.Points += WatchAdReward
	u.LastAdWatchAt = now
}

// CheckTaskOpen - task нумеруется с 1
func CheckTaskOpen(u *domain.User, task int, now time.Time) error {
	if task < 1 || task > domain.TaskCount {
		return ErrUnknownTask
	}
	if clock.IsToday(u.TaskCompletedDay[task-1], now) {
		return ErrTaskAlreadyOpened
	}
	return nil
}

func ApplyTaskOpen(u *domain.User, task int, now time.Time) {
	t := now
	u.TaskCompletedDay[task-1] = &t
}

// TasksDone - какие задания открыты сегодня
func TasksDone(u *domain.User, now time.Time) [domain.TaskCount]bool {
	var done [domain.TaskCount]bool
	for i, t := range u.TaskCompletedDay {
		done[i] = clock.IsToday(t, now)
	}
	return done
}

func CheckTaskClaim(u *domain.User, now time.Time) error {
	if clock.SameDay(u.LastTaskClaimDay, now) {
		return ErrTasksAlreadyClaimed
	}
	for _, done := range TasksDone(u, now) {
		if !done {
			return ErrTasksIncomplete
		}
	}
	return nil
}

func ApplyTaskClaim(u *domain.User, now time.Time) {
	u.Points += TaskClaimReward
	u.LastTaskClaimDay = now
}

// ValidateReferralCodeFormat проверяет код до поиска владельца
func ValidateReferralCodeFormat(code string) error {
	if code == "" || len(code) > ReferralMaxLen || !strings.HasPrefix(code, ReferralPrefix) {
		return ErrInvalidReferralCode
	}
	return nil
}

// CheckReferral - referrer это владелец кода, nil если код никому не принадлежит
func CheckReferral(self *domain.User, code string, referrer *domain.User) error {
	if self.ReferralCodeUsed {
		return ErrReferralAlreadyUsed
	}
	if err := ValidateReferralCodeFormat(code); err != nil {
		return err
	}
	if code == self.ReferralCode {
		return ErrSelfReferral
	}
	if referrer == nil || referrer.ReferralCode != code {
		return ErrInvalidReferralCode
	}
	if referrer.ID == self.ID {
		return ErrSelfReferral
	}
	return nil
}

// ApplyReferral меняет обе записи, сохранять их нужно в одной транзакции
func ApplyReferral(self, referrer *domain.User) {
	self.Points += ReferredBonus
	id := referrer.ID
	self.ReferredBy = &id
	self.ReferralCodeUsed = true

	referrer.Points += ReferrerBonus
	referrer.ReferralsCount++
}

func CheckWithdrawal(u *domain.User, tier Tier) error {
	if u.Points < tier.Points {
		return ErrInsufficientPoints
	}
	if tier.Once && u.ClaimedFirstWithdrawal {
		return ErrFirstTierClaimed
	}
	return nil
}

func ApplyWithdrawal(u *domain.User, tier Tier) {
	u.Points -= tier.Points
	if tier.Once {
		u.ClaimedFirstWithdrawal = true
	}
}
