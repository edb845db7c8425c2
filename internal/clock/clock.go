package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Day - календарная дата в UTC в виде yyyymmdd
type Day int32

// Epoch - маркер "никогда", с ним новый пользователь сразу получает дневной сброс
var Epoch = time.Unix(0, 0).UTC()

// DayKey возвращает UTC дату момента t
func DayKey(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return Day(y*10000 + int(m)*100 + d)
}

// SameDay - оба момента попадают в один UTC день
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// IsToday для nullable маркеров: nil никогда не "сегодня"
func IsToday(marker *time.Time, now time.Time) bool {
	if marker == nil {
		return false
	}
	return SameDay(*marker, now)
}

// StartOfDay - 00:00:00 UTC того же дня
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Time возвращает начало дня в UTC
func (d Day) Time() time.Time {
	return time.Date(int(d)/10000, time.Month(int(d)/100%100), int(d)%100, 0, 0, 0, 0, time.UTC)
}

// Clock - источник времени; в проде реальные часы, в тестах clockwork.FakeClock
type Clock = clockwork.Clock

// Real возвращает системные часы
func Real() Clock {
	return clockwork.NewRealClock()
}
