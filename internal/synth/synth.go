// Package synth fabricates point-of-sale events for a catalog.
//
// Generation is a pure function of the month, the catalog and the seeding
// algorithm: the same inputs always produce the same table. Each product is
// drawn from two private streams, one deciding how many units sell in the
// month and one deciding when and where each unit sells, so changing how
// events are placed does not move monthly volumes.
package synth

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dmlat/InfoCoffee-sub001/internal/catalog"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/seed"
)

const (
	// DefaultScale converts a historical monthly bound into synthetic
	// monthly volume.
	DefaultScale = 2.5

	// Sales happen between 10:00 and 22:00 inclusive.
	OpeningMinute = 10 * 60
	ClosingMinute = 22 * 60
)

type Synthesizer struct {
	products  []models.Product
	locations []models.Location
	weights   []float64
	scale     float64
}

type Option func(*Synthesizer)

// WithScale overrides DefaultScale.
func WithScale(scale float64) Option {
	return func(s *Synthesizer) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// New builds a synthesizer over a fixed catalog. The slices are copied.
func New(products []models.Product, locations []models.Location, opts ...Option) (*Synthesizer, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("synth: empty product catalog")
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("synth: no locations")
	}
	s := &Synthesizer{
		products:  slices.Clone(products),
		locations: slices.Clone(locations),
		weights:   catalog.LocationWeights(locations),
		scale:     DefaultScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Synthesizer) Scale() float64 {
	return s.scale
}

// VolumeBounds is the inclusive range a product's monthly event count is
// drawn from.
func (s *Synthesizer) VolumeBounds(p models.Product) (int, int) {
	return int(math.Round(float64(p.Min) * s.scale)), int(math.Round(float64(p.Max) * s.scale))
}

// CountSeedKey and PlaceSeedKey name the two streams of a product in a month.
func CountSeedKey(month models.MonthKey, productID int) string {
	return fmt.Sprintf("%s:%d:count", month, productID)
}

func PlaceSeedKey(month models.MonthKey, productID int) string {
	return fmt.Sprintf("%s:%d:place", month, productID)
}

// GenerateMonth returns the event table for every day of month.
func (s *Synthesizer) GenerateMonth(month models.MonthKey) *models.MonthEvents {
	out := models.NewMonthEvents(month)
	days := month.DaysIn()

	for _, p := range s.products {
		countGen := seed.New(CountSeedKey(month, p.ID))
		placeGen := seed.New(PlaceSeedKey(month, p.ID))

		lo, hi := s.VolumeBounds(p)
		n := seed.RandomInt(countGen, lo, hi)

		for i := 0; i < n; i++ {
			day := seed.RandomInt(placeGen, 1, days)
			minute := seed.RandomInt(placeGen, OpeningMinute, ClosingMinute)
			loc := s.locations[seed.WeightedPick(placeGen, s.weights)]

			key := month.DayKey(day)
			out.Days[key] = append(out.Days[key], models.SaleEvent{
				Minute:     minute,
				ProductID:  p.ID,
				LocationID: loc.ID,
			})
		}
	}

	for _, events := range out.Days {
		slices.SortStableFunc(events, models.CompareEvents)
	}
	return out
}

// GenerateYear returns all twelve months of year in calendar order.
func (s *Synthesizer) GenerateYear(year int) []*models.MonthEvents {
	months := make([]*models.MonthEvents, 0, 12)
	for m := 1; m <= 12; m++ {
		months = append(months, s.GenerateMonth(models.MonthKey{Year: year, Month: time.Month(m)}))
	}
	return months
}

// LoadMonth lets the synthesizer back a generation cache.
func (s *Synthesizer) LoadMonth(ctx context.Context, month models.MonthKey) (*models.MonthEvents, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.GenerateMonth(month), nil
}

func (s *Synthesizer) Name() string {
	return "memory"
}
