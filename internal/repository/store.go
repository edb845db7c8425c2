package repository

import (
	"context"
	"errors"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/rewards"
)

var (
	// ErrNotFound - запись отсутствует, тот же вид ошибки что и в ядре
	ErrNotFound = rewards.ErrNotFound
	// ErrReferralCodeTaken - код уже принадлежит другому пользователю
	ErrReferralCodeTaken = errors.New("реферальный код занят")
	// ErrVersionConflict - запись изменилась после чтения, вид ошибки PreconditionFailed
	ErrVersionConflict = rewards.ErrConcurrentUpdate
)

// Store - персистентное хранилище леджера.
// Любое изменение пользователя идет через RunInTx, другие методы только читают
// или создают запись при первом входе
type Store interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// EnsureUser создает запись с эпохой во всех маркерах или обновляет профиль существующей.
	// Счетчики и поинты существующей записи не трогаются. code используется только при создании
	EnsureUser(ctx context.Context, p domain.Profile, code string) (u *domain.User, created bool, err error)
	FindByReferralCode(ctx context.Context, code string) (*domain.User, error)
	ListReferred(ctx context.Context, referrerID int64, limit int) ([]domain.User, error)

	ListWithdrawals(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]domain.Withdrawal, error)

	// RunInTx выполняет fn атомарно. Ошибка fn откатывает все изменения
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// SweepDailyCounters сохраняет дневной сброс для всех устаревших записей.
	// Возвращает число обновленных записей
	SweepDailyCounters(ctx context.Context) (int64, error)
}

// Tx - транзакция над леджером
type Tx interface {
	// Now - серверное время транзакции, им штампуется коммит
	Now() time.Time

	GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	// LockUsers блокирует записи по возрастанию id и возвращает их в порядке ids
	LockUsers(ctx context.Context, ids ...int64) ([]*domain.User, error)
	// SaveUser пишет запись, если ее версия совпадает с сохраненной, и увеличивает версию
	SaveUser(ctx context.Context, u *domain.User) error

	InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) error
	GetWithdrawalForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error

	AppendAudit(ctx context.Context, log *domain.AuditLog) error
}
