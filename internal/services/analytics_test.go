package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmlat/InfoCoffee-sub001/internal/catalog"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/synth"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func espresso() models.Product {
	return models.Product{
		ID: 0, Name: "Эспрессо", Volume: "0,1",
		Price: models.MoneyFromInt(150), Cost: models.MoneyFromInt(50),
		Min: 1, Max: 1, Category: models.CategoryCoffee,
	}
}

func newTestAnalytics(t *testing.T, src MonthSource, products []models.Product, opts ...AnalyticsOption) *Analytics {
	t.Helper()
	metrics := observability.NewMetrics("test")
	cache := NewGenerationCache(src, metrics)
	return NewAnalytics(cache, products, catalog.DefaultLocations(), metrics, opts...)
}

func TestAnalytics_Query_SingleProductDay(t *testing.T) {
	events := make([]models.SaleEvent, 5)
	for i := range events {
		events[i] = models.SaleEvent{Minute: 600 + i*10, ProductID: 0, LocationID: 0}
	}
	src := newStubSource(map[string][]models.SaleEvent{"2025-03-10": events})
	a := newTestAnalytics(t, src, []models.Product{espresso()})

	got, err := a.Query(context.Background(), StatsQuery{From: day("2025-03-10"), To: day("2025-03-10")})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if got.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", got.TotalCount)
	}
	if !got.TotalRevenue.Equal(decimal.NewFromInt(750)) {
		t.Errorf("TotalRevenue = %s, want 750", got.TotalRevenue)
	}
	if !got.TotalCost.Equal(decimal.NewFromInt(250)) {
		t.Errorf("TotalCost = %s, want 250", got.TotalCost)
	}
	if !got.TotalProfit.Equal(decimal.NewFromInt(500)) {
		t.Errorf("TotalProfit = %s, want 500", got.TotalProfit)
	}

	if len(got.Products) != 1 {
		t.Fatalf("Products len = %d, want 1", len(got.Products))
	}
	p := got.Products[0]
	if p.Count != 5 || !p.Revenue.Equal(decimal.NewFromInt(750)) {
		t.Errorf("product = %d / %s, want 5 / 750", p.Count, p.Revenue)
	}
	if len(p.Locations) != len(catalog.DefaultLocations()) {
		t.Fatalf("Locations len = %d", len(p.Locations))
	}
	top := p.Locations[0]
	if top.LocationID != 0 || top.Count != 5 || top.Percent != 100 {
		t.Errorf("top location = %+v, want id 0 count 5 pct 100", top)
	}
	for _, l := range p.Locations[1:] {
		if l.Count != 0 || l.Percent != 0 {
			t.Errorf("location %d = %+v, want zero", l.LocationID, l)
		}
	}
}

func TestAnalytics_Query_SingleLocationCatalog(t *testing.T) {
	products := []models.Product{{
		ID: 0, Name: "Эспрессо", Price: models.MoneyFromInt(150), Cost: models.MoneyFromInt(50),
		Min: 10, Max: 20, Category: models.CategoryCoffee,
	}}
	locations := []models.Location{{ID: 0, Name: "Lobby", Weight: 1}}

	newAnalytics := func(src MonthSource) *Analytics {
		metrics := observability.NewMetrics("test")
		return NewAnalytics(NewGenerationCache(src, metrics), products, locations, metrics)
	}
	checkDay := func(t *testing.T, got *models.StatsSummary, n int) {
		t.Helper()
		if got.TotalCount != n {
			t.Errorf("TotalCount = %d, want %d", got.TotalCount, n)
		}
		if !got.TotalRevenue.Equal(decimal.NewFromInt(int64(150 * n))) {
			t.Errorf("TotalRevenue = %s, want %d", got.TotalRevenue, 150*n)
		}
		if !got.TotalCost.Equal(decimal.NewFromInt(int64(50 * n))) {
			t.Errorf("TotalCost = %s, want %d", got.TotalCost, 50*n)
		}
		if len(got.Products) != 1 {
			t.Fatalf("Products len = %d, want 1", len(got.Products))
		}
		p := got.Products[0]
		if p.Count != n || !p.Revenue.Equal(got.TotalRevenue.Decimal) {
			t.Errorf("product = %d / %s", p.Count, p.Revenue)
		}
		want := []models.LocationShare{{LocationID: 0, Name: "Lobby", Count: n, Percent: 100}}
		if len(p.Locations) != 1 || p.Locations[0] != want[0] {
			t.Errorf("Locations = %+v, want %+v", p.Locations, want)
		}
	}

	t.Run("five sales", func(t *testing.T) {
		events := make([]models.SaleEvent, 5)
		for i := range events {
			events[i] = models.SaleEvent{Minute: 600 + i*30, ProductID: 0, LocationID: 0}
		}
		a := newAnalytics(newStubSource(map[string][]models.SaleEvent{"2025-03-10": events}))
		got, err := a.Query(context.Background(), StatsQuery{From: day("2025-03-10")})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		checkDay(t, got, 5)
	})

	t.Run("generated days", func(t *testing.T) {
		s, err := synth.New(products, locations)
		if err != nil {
			t.Fatal(err)
		}
		month := models.MonthKey{Year: 2025, Month: time.March}
		table := s.GenerateMonth(month)
		a := newAnalytics(s)

		checked := 0
		for date, events := range table.Days {
			if len(events) == 0 {
				continue
			}
			got, err := a.Query(context.Background(), StatsQuery{From: day(date)})
			if err != nil {
				t.Fatalf("Query(%s) error = %v", date, err)
			}
			checkDay(t, got, len(events))
			checked++
		}
		if checked == 0 {
			t.Fatal("expected at least one day with sales")
		}
	})
}

func TestAnalytics_Query_UnknownLocation(t *testing.T) {
	src := newStubSource(map[string][]models.SaleEvent{
		"2025-03-10": {{Minute: 600, ProductID: 0, LocationID: 0}},
	})
	a := newTestAnalytics(t, src, []models.Product{espresso()})

	got, err := a.Query(context.Background(), StatsQuery{From: day("2025-03-10"), LocationIDs: []int{999}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.TotalCount != 0 || !got.TotalRevenue.IsZero() {
		t.Errorf("totals = %d / %s, want zero", got.TotalCount, got.TotalRevenue)
	}
	if len(got.Products) != 1 || got.Products[0].Count != 0 {
		t.Errorf("Products = %+v", got.Products)
	}
	if len(got.Products[0].Locations) != 0 {
		t.Errorf("unknown location should not produce shares, got %+v", got.Products[0].Locations)
	}
}

func TestAnalytics_Query_Range(t *testing.T) {
	src := newStubSource(map[string][]models.SaleEvent{
		"2025-01-30": {{Minute: 600, ProductID: 0, LocationID: 1}},
		"2025-01-31": {{Minute: 600, ProductID: 0, LocationID: 1}, {Minute: 601, ProductID: 0, LocationID: 2}},
		"2025-02-01": {{Minute: 900, ProductID: 0, LocationID: 2}},
		"2025-02-02": {{Minute: 900, ProductID: 0, LocationID: 2}},
	})
	a := newTestAnalytics(t, src, []models.Product{espresso()})

	tests := []struct {
		name      string
		from, to  string
		wantCount int
		wantDays  []string
	}{
		{"single day", "2025-01-31", "2025-01-31", 2, []string{"2025-01-31"}},
		{"across months", "2025-01-31", "2025-02-01", 3, []string{"2025-01-31", "2025-02-01"}},
		{"three days", "2025-01-30", "2025-02-01", 4, []string{"2025-01-30", "2025-01-31", "2025-02-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Query(context.Background(), StatsQuery{From: day(tt.from), To: day(tt.to)})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if got.TotalCount != tt.wantCount {
				t.Errorf("TotalCount = %d, want %d", got.TotalCount, tt.wantCount)
			}
			if got.From != tt.from || got.To != tt.to {
				t.Errorf("range = %s..%s", got.From, got.To)
			}
			if len(got.Days) != len(tt.wantDays) {
				t.Fatalf("Days len = %d, want %d", len(got.Days), len(tt.wantDays))
			}
			sum := 0
			for i, d := range got.Days {
				if d.Date != tt.wantDays[i] {
					t.Errorf("Days[%d] = %s, want %s", i, d.Date, tt.wantDays[i])
				}
				sum += d.Count
			}
			if sum != got.TotalCount {
				t.Errorf("day counts sum to %d, total is %d", sum, got.TotalCount)
			}
		})
	}
}

func TestAnalytics_Query_InvalidRange(t *testing.T) {
	a := newTestAnalytics(t, newStubSource(nil), []models.Product{espresso()}, WithMaxRangeDays(31))

	tests := []struct {
		name string
		q    StatsQuery
	}{
		{"missing start", StatsQuery{}},
		{"inverted", StatsQuery{From: day("2025-03-10"), To: day("2025-03-09")}},
		{"too long", StatsQuery{From: day("2025-01-01"), To: day("2025-03-01")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Query(context.Background(), tt.q)
			if !errors.Is(err, ErrInvalidRange) {
				t.Errorf("Query() error = %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestAnalytics_Query_SourceFailure(t *testing.T) {
	src := newStubSource(nil)
	src.fail.Store(true)
	a := newTestAnalytics(t, src, []models.Product{espresso()})

	_, err := a.Query(context.Background(), StatsQuery{From: day("2025-03-01"), To: day("2025-03-05")})
	if !errors.Is(err, errStub) {
		t.Errorf("Query() error = %v, want errStub", err)
	}
}

func TestAnalytics_Query_Sorting(t *testing.T) {
	products := []models.Product{
		espresso(),
		{ID: 1, Name: "Латте", Price: models.MoneyFromInt(200), Cost: models.MoneyFromInt(70), Category: models.CategoryCoffee},
		{ID: 2, Name: "Чай", Price: models.MoneyFromInt(100), Cost: models.MoneyFromInt(10), Category: models.CategoryTea},
		{ID: 3, Name: "Вода", Price: models.Money{}, Cost: models.MoneyFromInt(10), Category: models.CategoryFree},
	}
	src := newStubSource(map[string][]models.SaleEvent{
		"2025-06-01": {
			{Minute: 600, ProductID: 0, LocationID: 3},
			{Minute: 601, ProductID: 1, LocationID: 4},
			{Minute: 602, ProductID: 2, LocationID: 4},
			{Minute: 603, ProductID: 2, LocationID: 3},
			{Minute: 604, ProductID: 2, LocationID: 3},
			{Minute: 605, ProductID: 42, LocationID: 3},
		},
	})
	a := newTestAnalytics(t, src, products)

	got, err := a.Query(context.Background(), StatsQuery{From: day("2025-06-01")})
	if err != nil {
		t.Fatal(err)
	}

	// Count desc, then revenue desc, then id asc.
	wantOrder := []int{2, 1, 0, 3}
	for i, id := range wantOrder {
		if got.Products[i].ProductID != id {
			t.Errorf("Products[%d] = %d, want %d", i, got.Products[i].ProductID, id)
		}
	}
	if got.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5 (unknown product skipped)", got.TotalCount)
	}

	tea := got.Products[0]
	if tea.Locations[0].LocationID != 3 || tea.Locations[1].LocationID != 4 {
		t.Errorf("tea locations = %+v", tea.Locations)
	}
	if tea.Locations[0].Percent != 66.67 || tea.Locations[1].Percent != 33.33 {
		t.Errorf("tea shares = %v / %v", tea.Locations[0].Percent, tea.Locations[1].Percent)
	}
	// Ties on zero count fall back to location id.
	for i := 3; i < len(tea.Locations); i++ {
		if tea.Locations[i-1].Count == tea.Locations[i].Count && tea.Locations[i-1].LocationID > tea.Locations[i].LocationID {
			t.Errorf("tie not broken by id: %+v", tea.Locations)
		}
	}
}

func TestAnalytics_Query_LocationFilterPartitions(t *testing.T) {
	products, err := catalog.NewLoader().LoadFile("../../data/catalog.csv")
	if err != nil {
		t.Fatal(err)
	}
	s, err := synth.New(products, catalog.DefaultLocations())
	if err != nil {
		t.Fatal(err)
	}
	a := newTestAnalytics(t, s, products)
	ctx := context.Background()
	q := StatsQuery{From: day("2024-02-25"), To: day("2024-03-03")}

	all, err := a.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount == 0 {
		t.Fatal("expected generated sales")
	}

	again, err := a.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalCount != all.TotalCount || !again.TotalRevenue.Equal(all.TotalRevenue.Decimal) {
		t.Error("repeated query must return identical totals")
	}

	count := 0
	var revenue models.Money
	for _, loc := range catalog.DefaultLocations() {
		part, err := a.Query(ctx, StatsQuery{From: q.From, To: q.To, LocationIDs: []int{loc.ID}})
		if err != nil {
			t.Fatal(err)
		}
		count += part.TotalCount
		revenue = revenue.Add(part.TotalRevenue)
	}
	if count != all.TotalCount {
		t.Errorf("per-location counts sum to %d, want %d", count, all.TotalCount)
	}
	if !revenue.Equal(all.TotalRevenue.Decimal) {
		t.Errorf("per-location revenue sums to %s, want %s", revenue, all.TotalRevenue)
	}
}

func TestAnalytics_Stats(t *testing.T) {
	a := newTestAnalytics(t, newStubSource(nil), []models.Product{espresso()})
	if _, err := a.Query(context.Background(), StatsQuery{From: day("2025-03-10")}); err != nil {
		t.Fatal(err)
	}

	stats := a.Stats()
	if stats["source"] != "stub" {
		t.Errorf("source = %v", stats["source"])
	}
	if stats["queries_served"] != int64(1) {
		t.Errorf("queries_served = %v, want 1", stats["queries_served"])
	}
	months, ok := stats["months_generated"].([]string)
	if !ok || len(months) != 1 || months[0] != "2025-03" {
		t.Errorf("months_generated = %v", stats["months_generated"])
	}
}
