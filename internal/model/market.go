package model

import "time"

// Market is a market or segment derived for one or more clients.
type Market struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Segment     string    `json:"segment,omitempty"`
	Description string    `json:"description,omitempty"`
	MarketSize  string    `json:"market_size,omitempty"`
	GrowthTrend string    `json:"growth_trend,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record returns the candidate field set of the market.
func (m Market) Record() Record {
	return Compact(Record{
		"name":         m.Name,
		"category":     m.Category,
		"segment":      m.Segment,
		"description":  m.Description,
		"market_size":  m.MarketSize,
		"growth_trend": m.GrowthTrend,
	})
}

// ClientMarket associates a client with a market.
type ClientMarket struct {
	ClientID string `json:"client_id"`
	MarketID string `json:"market_id"`
	Primary  bool   `json:"primary"`
}

// Product is the principal product a client sells into a market.
type Product struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	MarketID    string `json:"market_id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// Record returns the candidate field set of the product.
func (p Product) Record() Record {
	return Compact(Record{
		"name":        p.Name,
		"market_id":   p.MarketID,
		"category":    p.Category,
		"description": p.Description,
	})
}
