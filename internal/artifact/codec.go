// Package artifact reads and writes the persisted outputs of batch
// generation: products.json and sales-<year>.json.
//
// A sales file is a JSON array with one [dateKey, events] pair per calendar
// day of the year, in ascending date order, where each event is the tuple
// [minuteOfDay, productId, locationId].
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

const (
	ProductsFile = "products.json"
)

// SalesFile is the file name of a year's event table.
func SalesFile(year int) string {
	return fmt.Sprintf("sales-%d.json", year)
}

// DayEntry is one element of a sales file.
type DayEntry struct {
	Date   string
	Events []models.SaleEvent
}

func (d DayEntry) MarshalJSON() ([]byte, error) {
	events := d.Events
	if events == nil {
		events = []models.SaleEvent{}
	}
	date, err := json.Marshal(d.Date)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(date) + len(body) + 3)
	buf.WriteByte('[')
	buf.Write(date)
	buf.WriteByte(',')
	buf.Write(body)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (d *DayEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("day entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("day entry: want [date, events], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &d.Date); err != nil {
		return fmt.Errorf("day entry date: %w", err)
	}
	if err := json.Unmarshal(pair[1], &d.Events); err != nil {
		return fmt.Errorf("day entry %s: %w", d.Date, err)
	}
	if d.Events == nil {
		d.Events = []models.SaleEvent{}
	}
	return nil
}

// Entries flattens months into date-ordered day entries.
func Entries(months []*models.MonthEvents) []DayEntry {
	var entries []DayEntry
	for _, m := range months {
		for _, key := range m.DayKeys() {
			entries = append(entries, DayEntry{Date: key, Events: m.Days[key]})
		}
	}
	slices.SortFunc(entries, func(a, b DayEntry) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})
	return entries
}

func EncodeSales(w io.Writer, entries []DayEntry) error {
	if entries == nil {
		entries = []DayEntry{}
	}
	return json.NewEncoder(w).Encode(entries)
}

func DecodeSales(r io.Reader) ([]DayEntry, error) {
	var entries []DayEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode sales: %w", err)
	}
	return entries, nil
}

func EncodeProducts(w io.Writer, products []models.Product) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(products)
}

// SplitMonths groups decoded entries into per-month tables. Days of a month
// absent from the file are filled with empty lists so each table stays total.
func SplitMonths(entries []DayEntry) (map[models.MonthKey]*models.MonthEvents, error) {
	months := make(map[models.MonthKey]*models.MonthEvents)
	for _, e := range entries {
		t, err := parseDate(e.Date)
		if err != nil {
			return nil, err
		}
		key := models.MonthOf(t)
		m, ok := months[key]
		if !ok {
			m = models.NewMonthEvents(key)
			months[key] = m
		}
		m.Days[e.Date] = e.Events
	}
	return months, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date key %q: %w", s, err)
	}
	return t, nil
}
