package rewards

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier - фиксированный вариант вывода. Once - разовый вариант с низким порогом
type Tier struct {
	Points    int64           `json:"points"`
	PayoutUSD decimal.Decimal `json:"payout_usd"`
	Once      bool            `json:"once"`
}

// Tiers отсортированы по возрастанию поинтов
type Tiers []Tier

// DefaultTiersConfig - 1750 поинтов = $0.10, дальше по тому же курсу
const DefaultTiersConfig = "1750:0.10:once,8750:0.50,17500:1.00,35000:2.00"

// ParseTiers разбирает строку вида "points:usd[:once],..."
func ParseTiers(raw string) (Tiers, error) {
	var tiers Tiers
	seen := make(map[int64]bool)
	once := 0

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("tier %q: ожидается points:usd[:once]", part)
		}

		points, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || points <= 0 {
			return nil, fmt.Errorf("tier %q: неверное количество поинтов", part)
		}
		payout, err := decimal.NewFromString(fields[1])
		if err != nil || !payout.IsPositive() {
			return nil, fmt.Errorf("tier %q: неверная сумма выплаты", part)
		}

		t := Tier{Points: points, PayoutUSD: payout}
		if len(fields) == 3 {
			if fields[2] != "once" {
				return nil, fmt.Errorf("tier %q: неизвестный флаг %q", part, fields[2])
			}
			t.Once = true
			once++
		}

		if seen[points] {
			return nil, fmt.Errorf("tier %q: дубликат", part)
		}
		seen[points] = true
		tiers = append(tiers, t)
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("не задано ни одного варианта вывода")
	}
	if once > 1 {
		return nil, fmt.Errorf("разовый вариант вывода может быть только один")
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Points < tiers[j].Points })
	return tiers, nil
}

// MustParseTiers для дефолтов и тестов
func MustParseTiers(raw string) Tiers {
	t, err := ParseTiers(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup ищет вариант с точным совпадением суммы
func (ts Tiers) Lookup(points int64) (Tier, error) {
	for _, t := range ts {
		if t.Points == points {
			return t, nil
		}
	}
	return Tier{}, ErrUnknownTier
}

// Min - минимальная сумма вывода
func (ts Tiers) Min() int64 {
	if len(ts) == 0 {
		return 0
	}
	return ts[0].Points
}
