package artifact

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

// FetchError reports that a persisted sales artifact could not be obtained.
type FetchError struct {
	Source     string
	Year       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch sales %d from %s", e.Year, e.Source)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type yearLoader func(ctx context.Context, year int) ([]DayEntry, error)

// yearMemo keeps every decoded year so that each file is read at most once,
// whichever month asks first.
type yearMemo struct {
	load  yearLoader
	group singleflight.Group

	mu    sync.RWMutex
	years map[int]map[models.MonthKey]*models.MonthEvents
}

func newYearMemo(load yearLoader) *yearMemo {
	return &yearMemo{
		load:  load,
		years: make(map[int]map[models.MonthKey]*models.MonthEvents),
	}
}

func (m *yearMemo) month(ctx context.Context, key models.MonthKey) (*models.MonthEvents, error) {
	months, err := m.year(ctx, key.Year)
	if err != nil {
		return nil, err
	}
	if events, ok := months[key]; ok {
		return events, nil
	}
	return models.NewMonthEvents(key), nil
}

func (m *yearMemo) cached(year int) (map[models.MonthKey]*models.MonthEvents, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	months, ok := m.years[year]
	return months, ok
}

func (m *yearMemo) year(ctx context.Context, year int) (map[models.MonthKey]*models.MonthEvents, error) {
	if months, ok := m.cached(year); ok {
		return months, nil
	}

	ch := m.group.DoChan(strconv.Itoa(year), func() (any, error) {
		if months, ok := m.cached(year); ok {
			return months, nil
		}
		entries, err := m.load(ctx, year)
		if err != nil {
			return nil, err
		}
		months, err := SplitMonths(entries)
		if err != nil {
			return nil, err
		}
		for key := range months {
			if key.Year != year {
				return nil, fmt.Errorf("sales file for %d contains %s", year, key)
			}
		}
		m.mu.Lock()
		m.years[year] = months
		m.mu.Unlock()
		return months, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[models.MonthKey]*models.MonthEvents), nil
	}
}

// FileSource serves months from sales-<year>.json files in a directory.
type FileSource struct {
	dir  string
	memo *yearMemo
}

func NewFileSource(dir string) *FileSource {
	s := &FileSource{dir: dir}
	s.memo = newYearMemo(s.readYear)
	return s
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) LoadMonth(ctx context.Context, key models.MonthKey) (*models.MonthEvents, error) {
	return s.memo.month(ctx, key)
}

func (s *FileSource) readYear(ctx context.Context, year int) ([]DayEntry, error) {
	path := filepath.Join(s.dir, SalesFile(year))
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: path, Year: year, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Source: path, Year: year, Err: err}
	}
	defer f.Close()

	entries, err := DecodeSales(f)
	if err != nil {
		return nil, &FetchError{Source: path, Year: year, Err: err}
	}
	return entries, nil
}

// HTTPSource serves months from sales-<year>.json files published under a
// base URL, for example the static directory of the marketing site.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	memo    *yearMemo
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "sales-artifact",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
	s.memo = newYearMemo(s.fetchYear)
	return s
}

func (s *HTTPSource) Name() string {
	return "http"
}

func (s *HTTPSource) LoadMonth(ctx context.Context, key models.MonthKey) (*models.MonthEvents, error) {
	return s.memo.month(ctx, key)
}

func (s *HTTPSource) fetchYear(ctx context.Context, year int) ([]DayEntry, error) {
	url := s.baseURL + "/" + SalesFile(year)

	res, err := s.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &FetchError{Source: url, Year: year, StatusCode: resp.StatusCode}
		}
		return DecodeSales(resp.Body)
	})
	if err != nil {
		if fe, ok := err.(*FetchError); ok {
			return nil, fe
		}
		return nil, &FetchError{Source: url, Year: year, Err: err}
	}
	return res.([]DayEntry), nil
}
