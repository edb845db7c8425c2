package rewards

import (
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/domain"
)

// TierEligibility - доступность одного варианта вывода
type TierEligibility struct {
	Tier
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Eligibility - read-only проекция для UI. Окончательное решение принимает транзакция
type Eligibility struct {
	Spin       bool `json:"spin"`
	AdSpin     bool `json:"ad_spin"`
	WatchAd    bool `json:"watch_ad"`
	ClaimTasks bool `json:"claim_tasks"`

	SpinsLeft         int                    `json:"spins_left"`
	AdSpinsLeft       int                    `json:"ad_spins_left"`
	AdsLeft           int                    `json:"ads_left"`
	CooldownSeconds   int                    `json:"cooldown_seconds"`
	TasksDone         [domain.TaskCount]bool `json:"tasks_done"`
	TasksClaimedToday bool                   `json:"tasks_claimed_today"`
	CanApplyReferral  bool                   `json:"can_apply_referral"`
	Withdraw          []TierEligibility      `json:"withdraw"`
}

// GetEligibility применяет дневной сброс к копии и считает что доступно на момент now
func GetEligibility(u domain.User, now time.Time, tiers Tiers) Eligibility {
	r := ApplyDailyReset(u, now)

	cooldown := RemainingCooldown(r.LastAdWatchAt, now)
	e := Eligibility{
		Spin:              CheckSpin(&r) == nil,
		AdSpin:            CheckAdSpin(&r, now) == nil,
		WatchAd:           CheckWatchAd(&r, now) == nil,
		ClaimTasks:        CheckTaskClaim(&r, now) == nil,
		SpinsLeft:         r.DailySpinsLeft,
		AdSpinsLeft:       r.DailyAdSpinsLeft,
		AdsLeft:           MaxDailyAds - r.DailyAdsWatched,
		CooldownSeconds:   int((cooldown + time.Second - 1) / time.Second),
		TasksDone:         TasksDone(&r, now),
		TasksClaimedToday: clock.SameDay(r.LastTaskClaimDay, now),
		CanApplyReferral:  !r.ReferralCodeUsed,
	}
	if e.AdsLeft < 0 {
		e.AdsLeft = 0
	}

	for _, t := range tiers {
		te := TierEligibility{Tier: t, Allowed: true}
		if err := CheckWithdrawal(&r, t); err != nil {
			te.Allowed = false
			te.Reason = err.Error()
		}
		e.Withdraw = append(e.Withdraw, te)
	}
	return e
}
