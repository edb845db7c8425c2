package rewards

import "time"

// Дневные квоты и награды
const (
	DailyFreeSpins = 20
	DailyAdSpins   = 10
	MaxDailyAds    = 38
	AdCooldown     = 25 * time.Second

	AdSpinBonus   = 2  // вращений за одну рекламу
	WatchAdReward = 18 // поинтов за рекламу

	TaskPoints       = 30
	TaskClaimReward  = TaskPoints * 4
	ReferrerBonus    = 10
	ReferredBonus    = 5
	ReferralPrefix   = "A"
	ReferralMaxLen   = 64
	SpinLowBandShare = 0.8
)

// Диапазоны награды за вращение
const (
	SpinLowMin  = 2
	SpinLowMax  = 15
	SpinHighMin = 16
	SpinHighMax = 25
)
