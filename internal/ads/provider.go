package ads

import (
	"context"
	"strconv"
	"sync"
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/rewards"
)

// Provider подтверждает, что пользователь досмотрел рекламу.
// nil - награду можно выдавать; ошибки оборачивают rewards.ErrExternalDependency
type Provider interface {
	RequestRewardedAd(ctx context.Context, userID int64) error
}

// ProviderFunc адаптирует функцию к Provider
type ProviderFunc func(ctx context.Context, userID int64) error

func (f ProviderFunc) RequestRewardedAd(ctx context.Context, userID int64) error {
	return f(ctx, userID)
}

// Confirmer записывает подтверждение от рекламной сети.
// Один callback (user_id, ts) дает ровно одно подтверждение, повтор вернет ErrDuplicateCallback
type Confirmer interface {
	ConfirmCallback(ctx context.Context, userID, ts int64) error
}

// callbackKey - id callback; подпись считается от тех же полей
func callbackKey(userID, ts int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(ts, 10)
}

// MemoryProvider хранит одноразовые подтверждения в памяти процесса
type MemoryProvider struct {
	clock clock.Clock
	ttl   time.Duration

	mu        sync.Mutex
	confirmed map[int64]time.Time
	// использованные callback до конца окна свежести
	seen map[string]time.Time
}

func NewMemoryProvider(c clock.Clock, ttl time.Duration) *MemoryProvider {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryProvider{clock: c, ttl: ttl, confirmed: make(map[int64]time.Time), seen: make(map[string]time.Time)}
}

func (p *MemoryProvider) Confirm(_ context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed[userID] = p.clock.Now().Add(p.ttl)
	return nil
}

func (p *MemoryProvider) ConfirmCallback(ctx context.Context, userID, ts int64) error {
	now := p.clock.Now()
	key := callbackKey(userID, ts)

	p.mu.Lock()
	for k, until := range p.seen {
		if now.After(until) {
			delete(p.seen, k)
		}
	}
	if _, dup := p.seen[key]; dup {
		p.mu.Unlock()
		return ErrDuplicateCallback
	}
	p.seen[key] = now.Add(callbackReplayWindow)
	p.mu.Unlock()

	return p.Confirm(ctx, userID)
}

// RequestRewardedAd забирает подтверждение; второй вызов без нового Confirm вернет ошибку
func (p *MemoryProvider) RequestRewardedAd(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return rewards.ErrAdUnavailable
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	expires, ok := p.confirmed[userID]
	delete(p.confirmed, userID)
	if !ok || p.clock.Now().After(expires) {
		return rewards.ErrAdNotCompleted
	}
	return nil
}
