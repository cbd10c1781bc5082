// Package models holds the catalog, sale event and statistics types shared
// by the generator, the query engine and the HTTP layer.
package models

type Category string

const (
	CategoryCoffee   Category = "coffee"
	CategoryRaf      Category = "raf"
	CategoryTea      Category = "tea"
	CategoryLemonade Category = "lemonade"
	CategoryFree     Category = "free"
)

// Product is one catalog line. ID is the zero-based position in the catalog
// and is what SaleEvent refers to. Min and Max bound the historical monthly
// unit count the generator scales from.
type Product struct {
	ID       int             `json:"id" validate:"gte=0"`
	Name     string          `json:"name" validate:"required"`
	Volume   string          `json:"volume"`
	Price    Money    `json:"price"`
	Cost     Money    `json:"cost"`
	Min      int             `json:"min" validate:"gte=0"`
	Max      int             `json:"max" validate:"gtefield=Min"`
	Category Category        `json:"category" validate:"oneof=coffee raf tea lemonade free"`
}

// Margin is price minus cost for a single unit.
func (p Product) Margin() Money {
	return p.Price.Sub(p.Cost)
}

// Location is a vending point. Weights are relative and need not sum to 1.
type Location struct {
	ID     int     `json:"id" validate:"gte=0"`
	Name   string  `json:"name" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0"`
}
