package catalog

import "github.com/dmlat/InfoCoffee-sub001/internal/models"

// DefaultLocations is the reference set of vending points.
func DefaultLocations() []models.Location {
	return []models.Location{
		{ID: 0, Name: "Business Center", Weight: 1.4},
		{ID: 1, Name: "University Campus", Weight: 1.2},
		{ID: 2, Name: "Central Station", Weight: 1.0},
		{ID: 3, Name: "City Mall", Weight: 0.9},
		{ID: 4, Name: "Hospital Lobby", Weight: 0.7},
		{ID: 5, Name: "Fitness Club", Weight: 0.5},
	}
}

// LocationWeights returns the weights in slice order.
func LocationWeights(locations []models.Location) []float64 {
	weights := make([]float64, len(locations))
	for i, loc := range locations {
		weights[i] = loc.Weight
	}
	return weights
}
