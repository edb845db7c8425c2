package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/game"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)

type fixture struct {
	store *repository.MemoryStore
	clock *clockwork.FakeClock
	ads   *ads.MemoryProvider
	svc   *RewardsService
	admin *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(testStart)
	store := repository.NewMemoryStore(fc)
	provider := ads.NewMemoryProvider(fc, time.Minute)
	wheel := game.NewWheelWithRand(func(int64) int64 { return 0 })

	svc := NewRewardsService(store, provider, wheel, fc, RewardsConfig{
		TaskLinks: []string{"https://t.me/a", "https://t.me/b", "https://t.me/c", "https://t.me/d"},
		TxTimeout: time.Second,
	})
	return &fixture{store: store, clock: fc, ads: provider, svc: svc, admin: NewAdminService(store, time.Second)}
}

func (f *fixture) login(t *testing.T, id int64, username string) *BootstrapResult {
	t.Helper()
	res, err := f.svc.Bootstrap(context.Background(), TelegramIdentity{
		Profile: domain.Profile{ID: id, Username: username, DisplayName: username},
	})
	require.NoError(t, err)
	return res
}

// меняет запись напрямую, минуя правила
func (f *fixture) set(t *testing.T, id int64, fn func(u *domain.User)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.RunInTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, id)
		if err != nil {
			return err
		}
		fn(u)
		return tx.SaveUser(ctx, u)
	}))
}

func (f *fixture) user(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestBootstrapFirstLogin(t *testing.T) {
	f := newFixture(t)

	res := f.login(t, 1, "alice")
	require.True(t, res.Created)
	require.Equal(t, rewards.DailyFreeSpins, res.User.DailySpinsLeft)
	require.Equal(t, rewards.DailyAdSpins, res.User.DailyAdSpinsLeft)
	require.Equal(t, testStart, res.User.LastSpinDay)
	require.Equal(t, "Aalice", res.User.ReferralCode)
	require.True(t, res.Eligibility.Spin)

	// сброс сохранен
	stored := f.user(t, 1)
	require.Equal(t, rewards.DailyFreeSpins, stored.DailySpinsLeft)
	require.EqualValues(t, 1, stored.Version)

	// повторный вход в тот же день запись не меняет
	res = f.login(t, 1, "alice")
	require.False(t, res.Created)
	require.EqualValues(t, 1, f.user(t, 1).Version)
}

func TestBootstrapReferralCodeFallback(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "bob")

	// кто-то уже владеет кодом Abob
	ctx := context.Background()
	res, err := f.svc.Bootstrap(ctx, TelegramIdentity{
		Profile: domain.Profile{ID: 2, Username: "bob", DisplayName: "Bob Two"},
	})
	require.NoError(t, err)
	require.Equal(t, "Abob-two-2", res.User.ReferralCode)
}

func TestBootstrapAppliesStartParamReferral(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "bob")

	res, err := f.svc.Bootstrap(context.Background(), TelegramIdentity{
		Profile:    domain.Profile{ID: 2, Username: "carol"},
		StartParam: "ref_Abob",
	})
	require.NoError(t, err)
	require.Empty(t, res.ReferralError)
	require.True(t, res.User.ReferralCodeUsed)
	require.EqualValues(t, rewards.ReferredBonus, res.User.Points)
	require.EqualValues(t, rewards.ReferrerBonus, f.user(t, 1).Points)

	// неизвестный код не ломает вход
	res, err = f.svc.Bootstrap(context.Background(), TelegramIdentity{
		Profile:    domain.Profile{ID: 3, Username: "dave"},
		StartParam: "ref_Anobody",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ReferralError)
	require.False(t, res.User.ReferralCodeUsed)
}

func TestPerformSpin(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "alice")

	res, err := f.svc.PerformSpin(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Reward)
	require.NotNil(t, res.Spin)
	require.EqualValues(t, 2, res.User.Points)
	require.Equal(t, rewards.DailyFreeSpins-1, res.User.DailySpinsLeft)

	f.set(t, 1, func(u *domain.User) { u.DailySpinsLeft = 0 })
	res, err = f.svc.PerformSpin(context.Background(), 1)
	require.ErrorIs(t, err, rewards.ErrNoSpinsLeft)
	require.ErrorIs(t, err, rewards.ErrPreconditionFailed)
	require.NotNil(t, res)
	require.EqualValues(t, 2, res.User.Points)
}

func TestConcurrentSpinsLastSpin(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) { u.DailySpinsLeft = 1 })

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PerformSpin(context.Background(), 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, rewards.ErrPreconditionFailed):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, attempts-1, rejected)

	u := f.user(t, 1)
	require.Zero(t, u.DailySpinsLeft)
	require.EqualValues(t, 2, u.Points)
}

func TestAdSpinRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")

	_, err := f.svc.PerformAdSpin(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrFreeSpinsRemain)

	f.set(t, 1, func(u *domain.User) { u.DailySpinsLeft = 0 })
	before := f.user(t, 1)

	// реклама не досмотрена: ничего не меняется, кулдаун не стартует
	res, err := f.svc.PerformAdSpin(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrAdNotCompleted)
	require.ErrorIs(t, err, rewards.ErrExternalDependency)
	require.NotNil(t, res)
	after := f.user(t, 1)
	require.Equal(t, before.Version, after.Version)
	require.Equal(t, before.LastAdWatchAt, after.LastAdWatchAt)

	require.NoError(t, f.ads.Confirm(ctx, 1))
	res, err = f.svc.PerformAdSpin(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, rewards.AdSpinBonus, res.User.DailySpinsLeft)
	require.Equal(t, rewards.DailyAdSpins-1, res.User.DailyAdSpinsLeft)
	require.Equal(t, testStart, res.User.LastAdWatchAt)
}

func TestWatchAdCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")

	require.NoError(t, f.ads.Confirm(ctx, 1))
	_, err := f.svc.PerformWatchAd(ctx, 1)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.ads.Confirm(ctx, 1))
	res, err := f.svc.PerformWatchAd(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrCooldownActive)
	require.Equal(t, 15, res.Eligibility.CooldownSeconds)
	require.EqualValues(t, rewards.WatchAdReward, res.User.Points)

	f.clock.Advance(16 * time.Second)
	res, err = f.svc.PerformWatchAd(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2*rewards.WatchAdReward, res.User.Points)
	require.Equal(t, 2, res.User.DailyAdsWatched)
}

func TestWatchAdDailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) {
		u.DailyAdsWatched = rewards.MaxDailyAds
		u.LastAdWatchAt = testStart
	})

	f.clock.Advance(time.Hour)
	require.NoError(t, f.ads.Confirm(ctx, 1))
	_, err := f.svc.PerformWatchAd(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrAdLimitReached)

	// на следующий день лимит сброшен
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.ads.Confirm(ctx, 1))
	res, err := f.svc.PerformWatchAd(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.User.DailyAdsWatched)
}

func TestTaskClaimScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")

	_, err := f.svc.PerformTaskClaim(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrTasksIncomplete)

	for task := 1; task <= domain.TaskCount; task++ {
		res, err := f.svc.MarkTaskOpened(ctx, 1, task)
		require.NoError(t, err)
		require.NotEmpty(t, res.TaskLink)
	}
	_, err = f.svc.MarkTaskOpened(ctx, 1, 2)
	require.ErrorIs(t, err, rewards.ErrTaskAlreadyOpened)
	_, err = f.svc.MarkTaskOpened(ctx, 1, 9)
	require.ErrorIs(t, err, rewards.ErrUnknownTask)

	res, err := f.svc.PerformTaskClaim(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, rewards.TaskClaimReward, res.Reward)
	require.EqualValues(t, rewards.TaskClaimReward, res.User.Points)
	require.True(t, res.Eligibility.TasksClaimedToday)

	_, err = f.svc.PerformTaskClaim(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrTasksAlreadyClaimed)

	// новый день: задания сброшены
	f.clock.Advance(24 * time.Hour)
	res, err = f.svc.PerformTaskClaim(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrTasksIncomplete)
	require.Equal(t, [domain.TaskCount]bool{}, res.Eligibility.TasksDone)
}

func TestTaskClaimWithMarkersFromToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.clock.Advance(10 * time.Hour)

	today := f.clock.Now().UTC()
	yesterday := today.Add(-24 * time.Hour)
	f.set(t, 1, func(u *domain.User) {
		for i := range u.TaskCompletedDay {
			marker := today.Add(-time.Duration(i) * time.Minute)
			u.TaskCompletedDay[i] = &marker
		}
		u.LastTaskClaimDay = yesterday
	})

	res, err := f.svc.PerformTaskClaim(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, rewards.TaskClaimReward, res.User.Points)
	require.Equal(t, today, f.user(t, 1).LastTaskClaimDay)

	_, err = f.svc.PerformTaskClaim(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrTasksAlreadyClaimed)
	require.EqualValues(t, rewards.TaskClaimReward, f.user(t, 1).Points)
}

func TestRefreshKeepsTaskMarkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")

	for task := 1; task <= domain.TaskCount; task++ {
		_, err := f.svc.MarkTaskOpened(ctx, 1, task)
		require.NoError(t, err)

		res, err := f.svc.Refresh(ctx, 1)
		require.NoError(t, err)
		require.True(t, res.Eligibility.TasksDone[task-1])
	}
	for _, marker := range f.user(t, 1).TaskCompletedDay {
		require.NotNil(t, marker)
	}

	res, err := f.svc.PerformTaskClaim(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, rewards.TaskClaimReward, res.Reward)
}

func TestReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.login(t, 2, "bob")

	_, err := f.svc.PerformReferral(ctx, 1, "Aalice")
	require.ErrorIs(t, err, rewards.ErrSelfReferral)
	_, err = f.svc.PerformReferral(ctx, 1, "Anobody")
	require.ErrorIs(t, err, rewards.ErrInvalidReferralCode)
	_, err = f.svc.PerformReferral(ctx, 1, "bob")
	require.ErrorIs(t, err, rewards.ErrInvalidReferralCode)

	res, err := f.svc.PerformReferral(ctx, 1, " Abob ")
	require.NoError(t, err)
	require.EqualValues(t, rewards.ReferredBonus, res.User.Points)
	require.True(t, res.User.ReferralCodeUsed)
	require.EqualValues(t, 2, *res.User.ReferredBy)

	bob := f.user(t, 2)
	require.EqualValues(t, rewards.ReferrerBonus, bob.Points)
	require.Equal(t, 1, bob.ReferralsCount)

	_, err = f.svc.PerformReferral(ctx, 1, "Abob")
	require.ErrorIs(t, err, rewards.ErrReferralAlreadyUsed)

	// обе записи аудита в одной транзакции
	var actions []string
	for _, a := range f.store.Audit() {
		if a.Category == domain.AuditCategoryReferral {
			actions = append(actions, a.Action)
		}
	}
	require.Equal(t, []string{domain.AuditActionReferralApply, domain.AuditActionReferralBonus}, actions)

	referred, err := f.svc.ListReferrals(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, referred, 1)
	require.EqualValues(t, 1, referred[0].ID)
}

func TestConcurrentCrossReferrals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.login(t, 2, "bob")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = f.svc.PerformReferral(ctx, 1, "Abob") }()
	go func() { defer wg.Done(); _, _ = f.svc.PerformReferral(ctx, 2, "Aalice") }()
	wg.Wait()

	// обе записи в согласованном состоянии: бонусы соответствуют счетчикам
	a, b := f.user(t, 1), f.user(t, 2)
	require.True(t, a.ReferralCodeUsed)
	require.True(t, b.ReferralCodeUsed)
	require.EqualValues(t, rewards.ReferredBonus+rewards.ReferrerBonus, a.Points)
	require.EqualValues(t, rewards.ReferredBonus+rewards.ReferrerBonus, b.Points)
}

func TestWithdrawalOneTimeTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) { u.Points = 3600 })

	var notified []domain.Withdrawal
	f.svc.SetWithdrawalNotifyCallback(func(w domain.Withdrawal) { notified = append(notified, w) })

	req := WithdrawalRequest{Points: 1750, Method: rewards.MethodBinancePay, Address: "123456"}
	res, err := f.svc.PerformWithdrawal(ctx, 1, req)
	require.NoError(t, err)
	require.EqualValues(t, 1850, res.User.Points)
	require.True(t, res.User.ClaimedFirstWithdrawal)
	require.Equal(t, domain.WithdrawalStatusPending, res.Withdrawal.Status)
	require.Equal(t, "0.1", res.Withdrawal.PayoutUSD.String())
	require.Equal(t, testStart, res.Withdrawal.CreatedAt)
	require.Len(t, notified, 1)

	_, err = f.svc.PerformWithdrawal(ctx, 1, req)
	require.ErrorIs(t, err, rewards.ErrFirstTierClaimed)

	_, err = f.svc.PerformWithdrawal(ctx, 1, WithdrawalRequest{Points: 1000, Method: rewards.MethodBinancePay, Address: "1"})
	require.ErrorIs(t, err, rewards.ErrUnknownTier)
	_, err = f.svc.PerformWithdrawal(ctx, 1, WithdrawalRequest{Points: 8750, Method: rewards.MethodBinancePay, Address: "1"})
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)
	_, err = f.svc.PerformWithdrawal(ctx, 1, WithdrawalRequest{Points: 8750, Method: "paypal", Address: "1"})
	require.ErrorIs(t, err, rewards.ErrUnknownMethod)

	list, err := f.svc.ListWithdrawals(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) { u.Points = 2000 })

	res, err := f.svc.PerformWithdrawal(ctx, 1, WithdrawalRequest{Points: 1750, Method: rewards.MethodBinancePay, Address: "42"})
	require.NoError(t, err)
	id := res.Withdrawal.ID

	_, err = f.admin.RejectWithdrawal(ctx, id, 99, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	var reviewed []domain.Withdrawal
	f.admin.SetReviewCallback(func(w domain.Withdrawal) { reviewed = append(reviewed, w) })

	w, err := f.admin.RejectWithdrawal(ctx, id, 99, "неверный адрес")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalStatusRejected, w.Status)
	require.NotNil(t, w.ReviewedAt)
	require.Len(t, reviewed, 1)

	u := f.user(t, 1)
	require.EqualValues(t, 2000, u.Points)
	require.True(t, u.ClaimedFirstWithdrawal)

	_, err = f.admin.ApproveWithdrawal(ctx, id, 99, "")
	require.ErrorIs(t, err, ErrWithdrawalReviewed)
	_, err = f.admin.ApproveWithdrawal(ctx, 12345, 99, "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	pending, err := f.admin.GetPendingWithdrawals(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestApproveWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) { u.Points = 9000 })

	res, err := f.svc.PerformWithdrawal(ctx, 1, WithdrawalRequest{Points: 8750, Method: rewards.MethodBinancePay, Address: "42"})
	require.NoError(t, err)
	require.False(t, res.User.ClaimedFirstWithdrawal)

	w, err := f.admin.ApproveWithdrawal(ctx, res.Withdrawal.ID, 99, "paid")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalStatusApproved, w.Status)
	require.EqualValues(t, 250, f.user(t, 1).Points)
}

func TestRefreshPersistsResetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 1, "alice")
	f.set(t, 1, func(u *domain.User) { u.DailySpinsLeft = 0 })
	v := f.user(t, 1).Version

	res, err := f.svc.Refresh(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, res.User.DailySpinsLeft)
	require.Equal(t, v, f.user(t, 1).Version)

	f.clock.Advance(24 * time.Hour)
	res, err = f.svc.Refresh(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, rewards.DailyFreeSpins, res.User.DailySpinsLeft)
	require.Equal(t, v+1, f.user(t, 1).Version)

	_, err = f.svc.GetEligibility(ctx, 42)
	require.ErrorIs(t, err, rewards.ErrNotFound)
}

// хранилище, у которого падает каждая транзакция
type brokenTxStore struct {
	*repository.MemoryStore
}

func (s brokenTxStore) RunInTx(context.Context, func(repository.Tx) error) error {
	return errors.New("connection reset")
}

func TestFailureReturnsFreshRecord(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "alice")

	broken := NewRewardsService(brokenTxStore{f.store}, f.ads, game.NewWheel(), f.clock, RewardsConfig{TxTimeout: time.Second})
	res, err := broken.PerformSpin(context.Background(), 1)
	require.Error(t, err)
	require.False(t, rewards.IsRecoverable(err))
	require.NotNil(t, res)
	require.EqualValues(t, 1, res.User.ID)
	require.Equal(t, rewards.DailyFreeSpins, res.User.DailySpinsLeft)
}

func TestCommitCallbackReceivesRecord(t *testing.T) {
	f := newFixture(t)
	f.login(t, 1, "alice")

	var got []domain.User
	f.svc.SetCommitCallback(func(u domain.User) { got = append(got, u) })

	_, err := f.svc.PerformSpin(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 2, got[0].Points)
}
