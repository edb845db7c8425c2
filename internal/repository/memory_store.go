package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/rewards"
)

// MemoryStore - леджер в памяти. Транзакции выполняются строго по одной,
// изменения видны другим только после успешного fn
type MemoryStore struct {
	clock clock.Clock

	txMu sync.Mutex // одна транзакция за раз
	mu   sync.RWMutex

	users       map[int64]*domain.User
	codes       map[string]int64
	withdrawals []*domain.Withdrawal
	audit       []*domain.AuditLog
	nextWID     int64
	nextAID     int64
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{
		clock: c,
		users: make(map[int64]*domain.User),
		codes: make(map[string]int64),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) EnsureUser(ctx context.Context, p domain.Profile, code string) (*domain.User, bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	if u, ok := s.users[p.ID]; ok {
		u.Username = p.Username
		u.DisplayName = p.DisplayName
		u.PhotoURL = p.PhotoURL
		u.UpdatedAt = now
		return u.Clone(), false, nil
	}
	if _, taken := s.codes[code]; taken {
		return nil, false, ErrReferralCodeTaken
	}

	u := &domain.User{
		ID:               p.ID,
		Username:         p.Username,
		DisplayName:      p.DisplayName,
		PhotoURL:         p.PhotoURL,
		LastSpinDay:      clock.Epoch,
		LastAdWatchAt:    clock.Epoch,
		LastTaskClaimDay: clock.Epoch,
		ReferralCode:     code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.users[u.ID] = u
	s.codes[code] = u.ID
	return u.Clone(), true, nil
}

func (s *MemoryStore) FindByReferralCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *MemoryStore) ListReferred(_ context.Context, referrerID int64, limit int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.User
	for _, u := range s.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID {
			out = append(out, *u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, limit), nil
}

func (s *MemoryStore) ListWithdrawals(_ context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Withdrawal
	for i := len(s.withdrawals) - 1; i >= 0; i-- {
		if w := s.withdrawals[i]; w.UserID == userID {
			out = append(out, *w)
		}
	}
	return truncate(out, limit), nil
}

func (s *MemoryStore) ListPendingWithdrawals(_ context.Context, limit int) ([]domain.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Withdrawal
	for _, w := range s.withdrawals {
		if w.Status == domain.WithdrawalStatusPending {
			out = append(out, *w)
		}
	}
	return truncate(out, limit), nil
}

// Audit возвращает копию журнала аудита
func (s *MemoryStore) Audit() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, 0, len(s.audit))
	for _, a := range s.audit {
		out = append(out, *a)
	}
	return out
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:   s,
		now:     s.clock.Now().UTC(),
		users:   make(map[int64]*domain.User),
		updated: make(map[int64]*domain.Withdrawal),
	}
	if err := fn(tx); err != nil {
		return err
	}
	// дедлайн мог истечь пока работала fn
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (s *MemoryStore) SweepDailyCounters(_ context.Context) (int64, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	var n int64
	for id, u := range s.users {
		if !rewards.NeedsReset(u, now) {
			continue
		}
		r := rewards.ApplyDailyReset(*u, now)
		r.Version++
		r.UpdatedAt = now
		s.users[id] = &r
		n++
	}
	return n, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// memTx копит изменения и применяет их одним шагом в commit
type memTx struct {
	store *MemoryStore
	now   time.Time

	users    map[int64]*domain.User
	inserted []*domain.Withdrawal
	updated  map[int64]*domain.Withdrawal
	audit    []*domain.AuditLog
}

func (t *memTx) Now() time.Time { return t.now }

func (t *memTx) GetUserForUpdate(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := t.users[id]; ok {
		return u.Clone(), nil
	}
	t.store.mu.RLock()
	u, ok := t.store.users[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (t *memTx) LockUsers(ctx context.Context, ids ...int64) ([]*domain.User, error) {
	out := make([]*domain.User, len(ids))
	for i, id := range ids {
		u, err := t.GetUserForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func (t *memTx) SaveUser(_ context.Context, u *domain.User) error {
	current, err := t.GetUserForUpdate(context.Background(), u.ID)
	if err != nil {
		return err
	}
	if current.Version != u.Version {
		return ErrVersionConflict
	}
	u.Version++
	u.UpdatedAt = t.now
	t.users[u.ID] = u.Clone()
	return nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, w *domain.Withdrawal) error {
	t.store.mu.RLock()
	w.ID = t.store.nextWID + int64(len(t.inserted)) + 1
	t.store.mu.RUnlock()
	w.CreatedAt = t.now
	c := *w
	t.inserted = append(t.inserted, &c)
	return nil
}

func (t *memTx) GetWithdrawalForUpdate(_ context.Context, id int64) (*domain.Withdrawal, error) {
	if w, ok := t.updated[id]; ok {
		c := *w
		return &c, nil
	}
	for _, w := range t.inserted {
		if w.ID == id {
			c := *w
			return &c, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, w := range t.store.withdrawals {
		if w.ID == id {
			c := *w
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) UpdateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	if _, err := t.GetWithdrawalForUpdate(ctx, w.ID); err != nil {
		return err
	}
	c := *w
	t.updated[w.ID] = &c
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, log *domain.AuditLog) error {
	log.CreatedAt = t.now
	c := *log
	t.audit = append(t.audit, &c)
	return nil
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range t.users {
		s.users[id] = u
	}
	for _, w := range t.inserted {
		s.withdrawals = append(s.withdrawals, w)
		s.nextWID = w.ID
	}
	for id, w := range t.updated {
		for i := range s.withdrawals {
			if s.withdrawals[i].ID == id {
				s.withdrawals[i] = w
			}
		}
	}
	for _, a := range t.audit {
		s.nextAID++
		a.ID = s.nextAID
		s.audit = append(s.audit, a)
	}
}
