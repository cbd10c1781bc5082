package models

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"

	MinutesPerDay = 24 * 60
)

// SaleEvent is a single sale inside a day: minute of day, product and
// location. On the wire it is the tuple [minute, productId, locationId].
type SaleEvent struct {
	Minute     int
	ProductID  int
	LocationID int
}

func (e SaleEvent) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 16)
	buf = append(buf, '[')
	buf = strconv.AppendInt(buf, int64(e.Minute), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.ProductID), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.LocationID), 10)
	buf = append(buf, ']')
	return buf, nil
}

func (e *SaleEvent) UnmarshalJSON(data []byte) error {
	var tuple []int
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("sale event: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("sale event: want 3 fields, got %d", len(tuple))
	}
	if tuple[0] < 0 || tuple[0] >= MinutesPerDay {
		return fmt.Errorf("sale event: minute %d out of range", tuple[0])
	}
	e.Minute, e.ProductID, e.LocationID = tuple[0], tuple[1], tuple[2]
	return nil
}

// CompareEvents orders events by minute, then product id.
func CompareEvents(a, b SaleEvent) int {
	if a.Minute != b.Minute {
		return a.Minute - b.Minute
	}
	return a.ProductID - b.ProductID
}

// MonthKey identifies a calendar month, the unit of generation.
type MonthKey struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// DaysIn returns the number of calendar days in the month, derived from the
// first day of the following month.
func (k MonthKey) DaysIn() int {
	return time.Date(k.Year, k.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (k MonthKey) Day(day int) time.Time {
	return time.Date(k.Year, k.Month, day, 0, 0, 0, 0, time.UTC)
}

func (k MonthKey) DayKey(day int) string {
	return k.Day(day).Format(DateLayout)
}

func (k MonthKey) Next() MonthKey {
	return MonthOf(time.Date(k.Year, k.Month+1, 1, 0, 0, 0, 0, time.UTC))
}

// DayKey formats the calendar date of t, ignoring time of day.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// TruncateDay drops the time of day, keeping the calendar date as written.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthEvents is the generated event table of one month. Every calendar day
// of the month has an entry, possibly empty. Values are never mutated after
// construction.
type MonthEvents struct {
	Key  MonthKey
	Days map[string][]SaleEvent
}

// NewMonthEvents returns a table with an empty entry for every day.
func NewMonthEvents(key MonthKey) *MonthEvents {
	n := key.DaysIn()
	days := make(map[string][]SaleEvent, n)
	for d := 1; d <= n; d++ {
		days[key.DayKey(d)] = []SaleEvent{}
	}
	return &MonthEvents{Key: key, Days: days}
}

// Day returns the events of dateKey; a day outside the month yields nil.
func (m *MonthEvents) Day(dateKey string) []SaleEvent {
	return m.Days[dateKey]
}

// DayKeys returns the date keys in ascending order.
func (m *MonthEvents) DayKeys() []string {
	keys := make([]string, 0, len(m.Days))
	for k := range m.Days {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *MonthEvents) EventCount() int {
	n := 0
	for _, events := range m.Days {
		n += len(events)
	}
	return n
}
