package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/rewards"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// общий интерфейс пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore - леджер в PostgreSQL. Блокировки строк через SELECT ... FOR UPDATE
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, s.db, id, false)
}

func (s *PgStore) EnsureUser(ctx context.Context, p domain.Profile, code string) (*domain.User, bool, error) {
	return ensureUser(ctx, s.db, p, code)
}

func (s *PgStore) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return findByReferralCode(ctx, s.db, code)
}

func (s *PgStore) ListReferred(ctx context.Context, referrerID int64, limit int) ([]domain.User, error) {
	return listReferred(ctx, s.db, referrerID, limit)
}

func (s *PgStore) ListWithdrawals(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	return listWithdrawals(ctx, s.db, userID, limit)
}

func (s *PgStore) ListPendingWithdrawals(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	return listPendingWithdrawals(ctx, s.db, limit)
}

// RunInTx открывает транзакцию, фиксирует серверное время и откатывает все при ошибке fn
func (s *PgStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// now() постоянно в пределах транзакции
	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return fmt.Errorf("server time: %w", err)
	}

	if err := fn(&pgTx{tx: tx, now: now.UTC()}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// условия устаревания дневных счетчиков, те же что в rewards.NeedsReset
const (
	utcToday   = `(now() AT TIME ZONE 'UTC')::date`
	spinStale  = `(last_spin_day AT TIME ZONE 'UTC')::date <> ` + utcToday
	adsStale   = `(last_ad_watch_at AT TIME ZONE 'UTC')::date <> ` + utcToday
	tasksStale = `(last_task_claim_day AT TIME ZONE 'UTC')::date <> ` + utcToday
)

// staleTask - отметка задания N поставлена не сегодня
func staleTask(n int) string {
	col := fmt.Sprintf("task%d_completed_day", n)
	return fmt.Sprintf(`(%s IS NOT NULL AND (%s AT TIME ZONE 'UTC')::date <> %s)`, col, col, utcToday)
}

func taskColumnReset(n int) string {
	col := fmt.Sprintf("task%d_completed_day", n)
	return fmt.Sprintf("%s = CASE WHEN %s AND %s THEN NULL ELSE %s END", col, tasksStale, staleTask(n), col)
}

var anyStaleTask = "(" + staleTask(1) + " OR " + staleTask(2) + " OR " + staleTask(3) + " OR " + staleTask(4) + ")"

func (s *PgStore) SweepDailyCounters(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET
			daily_spins_left    = CASE WHEN `+spinStale+` THEN $1 ELSE daily_spins_left END,
			daily_ad_spins_left = CASE WHEN `+spinStale+` THEN $2 ELSE daily_ad_spins_left END,
			last_spin_day       = CASE WHEN `+spinStale+` THEN now() ELSE last_spin_day END,
			daily_ads_watched   = CASE WHEN `+adsStale+` THEN 0 ELSE daily_ads_watched END,
			`+taskColumnReset(1)+`,
			`+taskColumnReset(2)+`,
			`+taskColumnReset(3)+`,
			`+taskColumnReset(4)+`,
			version = version + 1,
			updated_at = now()
		WHERE `+spinStale+`
		   OR (`+adsStale+` AND daily_ads_watched <> 0)
		   OR (`+tasksStale+` AND `+anyStaleTask+`)
	`, rewards.DailyFreeSpins, rewards.DailyAdSpins)
	if err != nil {
		return 0, fmt.Errorf("sweep daily counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

type pgTx struct {
	tx  pgx.Tx
	now time.Time
}

func (t *pgTx) Now() time.Time { return t.now }

func (t *pgTx) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, t.tx, id, true)
}

// LockUsers берет блокировки строго по возрастанию id, чтобы две встречные транзакции не зашли в deadlock
func (t *pgTx) LockUsers(ctx context.Context, ids ...int64) ([]*domain.User, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[int64]*domain.User, len(ids))
	for _, id := range sorted {
		if _, ok := locked[id]; ok {
			continue
		}
		u, err := getUser(ctx, t.tx, id, true)
		if err != nil {
			return nil, err
		}
		locked[id] = u
	}

	out := make([]*domain.User, len(ids))
	for i, id := range ids {
		out[i] = locked[id]
	}
	return out, nil
}

func (t *pgTx) SaveUser(ctx context.Context, u *domain.User) error {
	return saveUser(ctx, t.tx, u, t.now)
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	w.CreatedAt = t.now
	return insertWithdrawal(ctx, t.tx, w)
}

func (t *pgTx) GetWithdrawalForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	return getWithdrawal(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	return updateWithdrawal(ctx, t.tx, w)
}

func (t *pgTx) AppendAudit(ctx context.Context, log *domain.AuditLog) error {
	log.CreatedAt = t.now
	return appendAudit(ctx, t.tx, log)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
