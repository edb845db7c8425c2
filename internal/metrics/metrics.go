package metrics

import (
	"errors"
	"time"

	"rewards_webapp/internal/rewards"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// исходы действия
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeExternal  = "external_error"
	OutcomeError     = "error"
)

var (
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_actions_total",
		Help: "Действия пользователей по исходу",
	}, []string{"action", "outcome"})

	CommitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_commit_seconds",
		Help:    "Длительность транзакции действия",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_points_awarded_total",
		Help: "Начисленные поинты по действию",
	}, []string{"action"})

	SweptRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_daily_sweep_records_total",
		Help: "Записи, сброшенные ночным проходом",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_http_rate_limited_total",
		Help: "Запросы, отклоненные лимитером",
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewards_ws_connections",
		Help: "Открытые websocket соединения",
	})
)

// Outcome классифицирует ошибку действия
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, rewards.ErrPreconditionFailed):
		return OutcomeRejected
	case errors.Is(err, rewards.ErrExternalDependency):
		return OutcomeExternal
	default:
		return OutcomeError
	}
}

// Observe записывает исход и длительность одного действия
func Observe(action string, started time.Time, err error) {
	ActionsTotal.WithLabelValues(action, Outcome(err)).Inc()
	CommitSeconds.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// Award учитывает начисление, отрицательные суммы (списания) не считаются
func Award(action string, points int64) {
	if points > 0 {
		PointsAwarded.WithLabelValues(action).Add(float64(points))
	}
}
