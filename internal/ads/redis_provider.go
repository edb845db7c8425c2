package ads

import (
	"context"
	"errors"
	"strconv"
	"time"

	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/rewards"

	"github.com/redis/go-redis/v9"
)

const (
	confirmKeyPrefix  = "ad:confirm:"
	callbackKeyPrefix = "ad:callback:"
)

// RedisProvider - подтверждения в Redis, общие для всех инстансов
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProvider(client *redis.Client, ttl time.Duration) *RedisProvider {
	return &RedisProvider{client: client, ttl: ttl}
}

func confirmKey(userID int64) string {
	return confirmKeyPrefix + strconv.FormatInt(userID, 10)
}

func (p *RedisProvider) Confirm(ctx context.Context, userID int64) error {
	return p.client.Set(ctx, confirmKey(userID), time.Now().Unix(), p.ttl).Err()
}

// ConfirmCallback резервирует callback через SET NX, повтор в окне свежести отклоняется
func (p *RedisProvider) ConfirmCallback(ctx context.Context, userID, ts int64) error {
	fresh, err := p.client.SetNX(ctx, callbackKeyPrefix+callbackKey(userID, ts), 1, callbackReplayWindow).Result()
	if err != nil {
		return err
	}
	if !fresh {
		return ErrDuplicateCallback
	}
	if err := p.Confirm(ctx, userID); err != nil {
		// сеть повторит callback, резерв снимаем
		p.client.Del(ctx, callbackKeyPrefix+callbackKey(userID, ts))
		return err
	}
	return nil
}

// RequestRewardedAd атомарно забирает подтверждение через GETDEL
func (p *RedisProvider) RequestRewardedAd(ctx context.Context, userID int64) error {
	err := p.client.GetDel(ctx, confirmKey(userID)).Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return rewards.ErrAdNotCompleted
	default:
		logger.WithContext(ctx).Warn("ad confirmation lookup failed", "user_id", userID, "error", err)
		return rewards.ErrAdUnavailable
	}
}
