package game

import (
	"crypto/rand"
	"math/big"

	"rewards_webapp/internal/rewards"
)

// SpinBand - полоса наград на колесе: с вероятностью Probability выпадает
// равномерное целое из [Min, Max]
type SpinBand struct {
	ID          int     `json:"id"`
	Min         int64   `json:"min"`
	Max         int64   `json:"max"`
	Probability float64 `json:"probability"` // 0.0 - 1.0
	Color       string  `json:"color"`
}

// SpinResult - результат одного вращения
type SpinResult struct {
	Reward    int64   `json:"reward"`
	BandID    int     `json:"band_id"`
	SpinAngle float64 `json:"spin_angle"` // Финальный угол для анимации на фронтенде
}

// Wheel - колесо ежедневных вращений
type Wheel struct {
	Bands   []SpinBand
	randInt func(max int64) int64
}

// возвращает стандартные полосы: 80% - 2..15 поинтов, 20% - 16..25
func DefaultSpinBands() []SpinBand {
	return []SpinBand{
		{ID: 1, Min: rewards.SpinLowMin, Max: rewards.SpinLowMax, Probability: rewards.SpinLowBandShare, Color: "#3498db"},
		{ID: 2, Min: rewards.SpinHighMin, Max: rewards.SpinHighMax, Probability: 1 - rewards.SpinLowBandShare, Color: "#f1c40f"},
	}
}

// создает колесо со стандартными полосами и криптостойким рандомом
func NewWheel() *Wheel {
	return &Wheel{Bands: DefaultSpinBands(), randInt: secureRandInt}
}

// создает колесо с заданным источником случайных чисел в [0, max)
func NewWheelWithRand(randInt func(max int64) int64) *Wheel {
	return &Wheel{Bands: DefaultSpinBands(), randInt: randInt}
}

// secureRandInt returns a cryptographically secure random int in [0, max)
func secureRandInt(max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return max / 2
	}
	return n.Int64()
}

// выполняет вращение и возвращает награду
func (w *Wheel) Spin() SpinResult {
	const precision = 1000000 // точность 0.000001
	random := float64(w.randInt(precision)) / precision

	// Находим полосу по распределению вероятностей
	band := &w.Bands[len(w.Bands)-1]
	cumulative := 0.0
	for i := range w.Bands {
		cumulative += w.Bands[i].Probability
		if random < cumulative {
			band = &w.Bands[i]
			break
		}
	}

	reward := band.Min + w.randInt(band.Max-band.Min+1)

	// Угол для анимации: сектор полосы + смещение внутри + несколько оборотов
	segmentAngle := 360.0 / float64(len(w.Bands))
	baseAngle := float64(band.ID-1) * segmentAngle
	offset := float64(w.randInt(int64(segmentAngle*100))) / 100.0

	rotations := 5
	return SpinResult{
		Reward:    reward,
		BandID:    band.ID,
		SpinAngle: float64(rotations*360) + baseAngle + offset,
	}
}

// ожидаемая награда за вращение
func (w *Wheel) ExpectedReward() float64 {
	expected := 0.0
	for _, b := range w.Bands {
		expected += b.Probability * float64(b.Min+b.Max) / 2
	}
	return expected
}
