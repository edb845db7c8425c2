package domain

import "time"

// TaskCount - количество ежедневных заданий
const TaskCount = 4

// Запись пользователя в леджере. Один документ на пользователя, ключ - Telegram ID
type User struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	DisplayName string `db:"display_name" json:"display_name"`
	PhotoURL    string `db:"photo_url" json:"photo_url,omitempty"`

	Points int64 `db:"points" json:"points"` // никогда не уходит в минус

	DailySpinsLeft   int       `db:"daily_spins_left" json:"daily_spins_left"`
	DailyAdSpinsLeft int       `db:"daily_ad_spins_left" json:"daily_ad_spins_left"`
	LastSpinDay      time.Time `db:"last_spin_day" json:"last_spin_day"`

	DailyAdsWatched int       `db:"daily_ads_watched" json:"daily_ads_watched"`
	LastAdWatchAt   time.Time `db:"last_ad_watch_at" json:"last_ad_watch_at"` // якорь кулдауна рекламы

	LastTaskClaimDay time.Time             `db:"last_task_claim_day" json:"last_task_claim_day"`
	TaskCompletedDay [TaskCount]*time.Time `json:"task_completed_day"` // task1..task4_completed_day

	ReferralCode     string `db:"referral_code" json:"referral_code"`
	ReferredBy       *int64 `db:"referred_by" json:"referred_by,omitempty"`
	ReferralCodeUsed bool   `db:"referral_code_used" json:"referral_code_used"`
	ReferralsCount   int    `db:"referrals_count" json:"referrals_count"`

	ClaimedFirstWithdrawal bool `db:"claimed_first_withdrawal" json:"claimed_first_withdrawal"`

	Version   int64     `db:"version" json:"version"` // растет на каждом коммите
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Профиль от провайдера идентификации, ядро его не вычисляет
type Profile struct {
	ID          int64
	Username    string
	DisplayName string
	PhotoURL    string
}

// Clone возвращает независимую копию записи
func (u *User) Clone() *User {
	c := *u
	for i, t := range u.TaskCompletedDay {
		if t != nil {
			v := *t
			c.TaskCompletedDay[i] = &v
		}
	}
	if u.ReferredBy != nil {
		v := *u.ReferredBy
		c.ReferredBy = &v
	}
	return &c
}
