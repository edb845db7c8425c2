package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/game"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/metrics"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"
)

// ActionResult - свежая запись пользователя после действия и то, что стало доступно.
// При ошибке User и Eligibility тоже заполнены, если запись удалось перечитать
type ActionResult struct {
	User        *domain.User        `json:"user"`
	Eligibility rewards.Eligibility `json:"eligibility"`
	Reward      int64               `json:"reward,omitempty"`
	Spin        *game.SpinResult    `json:"spin,omitempty"`
	TaskLink    string              `json:"task_link,omitempty"`
	Withdrawal  *domain.Withdrawal  `json:"withdrawal,omitempty"`
}

type RewardsConfig struct {
	Tiers     rewards.Tiers
	Methods   []string
	TaskLinks []string
	TxTimeout time.Duration
}

// RewardsService - дневной цикл и леджер поинтов.
// Каждое действие проверяется на свежей записи, затем коммитится в транзакции,
// которая блокирует запись, заново применяет сброс по серверному времени и перепроверяет условия
type RewardsService struct {
	store repository.Store
	ads   ads.Provider
	wheel *game.Wheel
	clock clock.Clock
	cfg   RewardsConfig
	log   *slog.Logger

	onCommit     func(domain.User)
	onWithdrawal func(domain.Withdrawal)
}

func NewRewardsService(store repository.Store, provider ads.Provider, wheel *game.Wheel, clk clock.Clock, cfg RewardsConfig) *RewardsService {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = rewards.MustParseTiers(rewards.DefaultTiersConfig)
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = rewards.DefaultMethods
	}
	return &RewardsService{
		store: store,
		ads:   provider,
		wheel: wheel,
		clock: clk,
		cfg:   cfg,
		log:   logger.With("component", "rewards"),
	}
}

// SetCommitCallback - вызывается с новой записью после каждого коммита (live обновления)
func (s *RewardsService) SetCommitCallback(fn func(domain.User)) {
	s.onCommit = fn
}

// SetWithdrawalNotifyCallback - вызывается после создания заявки на вывод
func (s *RewardsService) SetWithdrawalNotifyCallback(fn func(domain.Withdrawal)) {
	s.onWithdrawal = fn
}

// Tiers - настроенные варианты вывода
func (s *RewardsService) Tiers() rewards.Tiers {
	return s.cfg.Tiers
}

// Methods - разрешенные способы вывода
func (s *RewardsService) Methods() []string {
	return s.cfg.Methods
}

// TaskLinks - ссылки ежедневных заданий по порядку
func (s *RewardsService) TaskLinks() []string {
	return s.cfg.TaskLinks
}

// GetEligibility - read-only: запись с примененным сбросом и доступные действия
func (s *RewardsService) GetEligibility(ctx context.Context, userID int64) (*ActionResult, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(u), nil
}

// Refresh сохраняет дневной сброс, если он что-то меняет, и возвращает актуальную запись
func (s *RewardsService) Refresh(ctx context.Context, userID int64) (*ActionResult, error) {
	return s.refresh(ctx, userID, false)
}

func (s *RewardsService) refresh(ctx context.Context, userID int64, login bool) (*ActionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	var saved *domain.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := tx.Now()
		if rewards.NeedsReset(u, now) {
			r := rewards.ApplyDailyReset(*u, now)
			if err := tx.SaveUser(ctx, &r); err != nil {
				return err
			}
			if err := audit(ctx, tx, userID, domain.AuditActionDailyReset, domain.AuditCategoryEarn, nil); err != nil {
				return err
			}
			u = &r
		}
		if login {
			if err := audit(ctx, tx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, nil); err != nil {
				return err
			}
		}
		saved = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(saved)
	return s.view(saved), nil
}

// txAction меняет запись с уже примененным сбросом. Возвращает детали для журнала аудита
type txAction func(ctx context.Context, tx repository.Tx, u *domain.User, now time.Time) (map[string]interface{}, error)

// mutate - атомарный read-modify-write одной записи
func (s *RewardsService) mutate(ctx context.Context, userID int64, action string, apply txAction) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	var saved *domain.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := tx.Now()
		r := rewards.ApplyDailyReset(*u, now)

		details, err := apply(ctx, tx, &r, now)
		if err != nil {
			return err
		}
		if details == nil {
			details = make(map[string]interface{})
		}
		details["points_delta"] = r.Points - u.Points

		if err := tx.SaveUser(ctx, &r); err != nil {
			return err
		}
		if err := audit(ctx, tx, userID, action, auditCategory(action), details); err != nil {
			return err
		}
		saved = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// preview - запись со сбросом на текущий момент для предварительной проверки
func (s *RewardsService) preview(ctx context.Context, userID int64) (*domain.User, time.Time, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.clock.Now().UTC()
	r := rewards.ApplyDailyReset(*u, now)
	return &r, now, nil
}

// View - то же представление, что возвращают действия, для push уведомлений
func (s *RewardsService) View(u domain.User) *ActionResult {
	return s.view(&u)
}

// view строит результат по записи; сброс применяется к копии
func (s *RewardsService) view(u *domain.User) *ActionResult {
	now := s.clock.Now().UTC()
	r := rewards.ApplyDailyReset(*u, now)
	return &ActionResult{
		User:        &r,
		Eligibility: rewards.GetEligibility(r, now, s.cfg.Tiers),
	}
}

// succeed публикует запись и считает метрики успешного действия
func (s *RewardsService) succeed(ctx context.Context, action string, started time.Time, before int64, u *domain.User) *ActionResult {
	metrics.Observe(action, started, nil)
	metrics.Award(action, u.Points-before)
	logger.WithContext(ctx).Info("action committed", "user_id", u.ID, "action", action, "points", u.Points, "version", u.Version)
	s.publish(u)
	return s.view(u)
}

// fail перечитывает запись, чтобы клиент получил актуальное состояние вместе с ошибкой
func (s *RewardsService) fail(ctx context.Context, action string, started time.Time, userID int64, err error) (*ActionResult, error) {
	metrics.Observe(action, started, err)
	log := logger.WithContext(ctx).With("user_id", userID, "action", action, "outcome", metrics.Outcome(err))

	switch {
	case errors.Is(err, rewards.ErrPreconditionFailed):
		log.Info("action rejected", "reason", err.Error())
	case errors.Is(err, rewards.ErrExternalDependency):
		log.Warn("action aborted", "reason", err.Error())
	case errors.Is(err, rewards.ErrNotFound):
		return nil, err
	default:
		log.Error("action failed", "error", err)
		err = fmt.Errorf("%s: %w", action, err)
	}

	// исходный контекст мог уже истечь
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TxTimeout)
	defer cancel()
	fresh, lerr := s.store.GetUser(rctx, userID)
	if lerr != nil {
		log.Warn("reload after failure failed", "error", lerr)
		return nil, err
	}
	return s.view(fresh), err
}

func (s *RewardsService) publish(u *domain.User) {
	if s.onCommit != nil && u != nil {
		s.onCommit(*u.Clone())
	}
}

// PerformSpin - бесплатное вращение колеса
func (s *RewardsService) PerformSpin(ctx context.Context, userID int64) (*ActionResult, error) {
	const action = domain.AuditActionSpin
	started := time.Now()

	p, _, err := s.preview(ctx, userID)
	if err == nil {
		err = rewards.CheckSpin(p)
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	var spin game.SpinResult
	u, err := s.mutate(ctx, userID, action, func(_ context.Context, _ repository.Tx, u *domain.User, _ time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckSpin(u); err != nil {
			return nil, err
		}
		spin = s.wheel.Spin()
		rewards.ApplySpin(u, spin.Reward)
		return map[string]interface{}{"reward": spin.Reward, "band": spin.BandID}, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, u.Points-spin.Reward, u)
	res.Reward = spin.Reward
	res.Spin = &spin
	return res, nil
}

// PerformAdSpin - реклама за дополнительные вращения
func (s *RewardsService) PerformAdSpin(ctx context.Context, userID int64) (*ActionResult, error) {
	const action = domain.AuditActionAdSpin
	started := time.Now()

	p, now, err := s.preview(ctx, userID)
	if err == nil {
		err = rewards.CheckAdSpin(p, now)
	}
	if err == nil {
		err = s.ads.RequestRewardedAd(ctx, userID)
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	u, err := s.mutate(ctx, userID, action, func(_ context.Context, _ repository.Tx, u *domain.User, now time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckAdSpin(u, now); err != nil {
			return nil, err
		}
		rewards.ApplyAdSpin(u, now)
		return map[string]interface{}{"spins_added": rewards.AdSpinBonus}, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}
	return s.succeed(ctx, action, started, u.Points, u), nil
}

// PerformWatchAd - реклама за поинты
func (s *RewardsService) PerformWatchAd(ctx context.Context, userID int64) (*ActionResult, error) {
	const action = domain.AuditActionWatchAd
	started := time.Now()

	p, now, err := s.preview(ctx, userID)
	if err == nil {
		err = rewards.CheckWatchAd(p, now)
	}
	if err == nil {
		err = s.ads.RequestRewardedAd(ctx, userID)
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	u, err := s.mutate(ctx, userID, action, func(_ context.Context, _ repository.Tx, u *domain.User, now time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckWatchAd(u, now); err != nil {
			return nil, err
		}
		rewards.ApplyWatchAd(u, now)
		return map[string]interface{}{"ads_watched": u.DailyAdsWatched}, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, u.Points-rewards.WatchAdReward, u)
	res.Reward = rewards.WatchAdReward
	return res, nil
}

// MarkTaskOpened отмечает задание открытым и возвращает ссылку, которую нужно открыть
func (s *RewardsService) MarkTaskOpened(ctx context.Context, userID int64, task int) (*ActionResult, error) {
	const action = domain.AuditActionTaskOpen
	started := time.Now()

	p, now, err := s.preview(ctx, userID)
	if err == nil {
		err = rewards.CheckTaskOpen(p, task, now)
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	u, err := s.mutate(ctx, userID, action, func(_ context.Context, _ repository.Tx, u *domain.User, now time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckTaskOpen(u, task, now); err != nil {
			return nil, err
		}
		rewards.ApplyTaskOpen(u, task, now)
		return map[string]interface{}{"task": task}, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, u.Points, u)
	if task <= len(s.cfg.TaskLinks) {
		res.TaskLink = s.cfg.TaskLinks[task-1]
	}
	return res, nil
}

// PerformTaskClaim - награда за все четыре задания дня
func (s *RewardsService) PerformTaskClaim(ctx context.Context, userID int64) (*ActionResult, error) {
	const action = domain.AuditActionTaskClaim
	started := time.Now()

	p, now, err := s.preview(ctx, userID)
	if err == nil {
		err = rewards.CheckTaskClaim(p, now)
	}
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	u, err := s.mutate(ctx, userID, action, func(_ context.Context, _ repository.Tx, u *domain.User, now time.Time) (map[string]interface{}, error) {
		if err := rewards.CheckTaskClaim(u, now); err != nil {
			return nil, err
		}
		rewards.ApplyTaskClaim(u, now)
		return nil, nil
	})
	if err != nil {
		return s.fail(ctx, action, started, userID, err)
	}

	res := s.succeed(ctx, action, started, u.Points-rewards.TaskClaimReward, u)
	res.Reward = rewards.TaskClaimReward
	return res, nil
}
