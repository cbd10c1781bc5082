package models

type StatsSummary struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	LocationIDs  []int           `json:"location_ids"`
	TotalCount   int             `json:"total_count"`
	TotalRevenue Money `json:"total_revenue"`
	TotalCost    Money `json:"total_cost"`
	TotalProfit  Money `json:"total_profit"`
	Products     []ProductStats  `json:"products"`
	Days         []DayStats      `json:"days"`
}

type ProductStats struct {
	ProductID int             `json:"product_id"`
	Name      string          `json:"name"`
	Category  Category        `json:"category"`
	Count     int             `json:"count"`
	Revenue   Money `json:"revenue"`
	Locations []LocationShare `json:"locations"`
}

type LocationShare struct {
	LocationID int     `json:"location_id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
}

type DayStats struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Revenue Money `json:"revenue"`
}
