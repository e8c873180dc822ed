package model

import "time"

// ValidationStatus is the review state of a competitor or lead.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// Quality tiers derived from a 0-100 score.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Party is a company discovered inside a market, either as a competitor
// or as a lead.
type Party struct {
	ID               string           `json:"id"`
	MarketID         string           `json:"market_id"`
	Name             string           `json:"name"`
	Website          string           `json:"website,omitempty"`
	TaxID            string           `json:"tax_id,omitempty"`
	City             string           `json:"city,omitempty"`
	State            string           `json:"state,omitempty"`
	Size             string           `json:"size,omitempty"`
	Description      string           `json:"description,omitempty"`
	QualityScore     int              `json:"quality_score"`
	QualityTier      string           `json:"quality_tier"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Record returns the candidate field set of the party. Score, tier and
// validation status are derived by the store at write time.
func (p Party) Record() Record {
	return Compact(Record{
		"name":        p.Name,
		"website":     p.Website,
		"tax_id":      p.TaxID,
		"city":        p.City,
		"state":       p.State,
		"size":        p.Size,
		"description": p.Description,
	})
}

// Competitor is a party competing with the client inside a market.
type Competitor = Party

// Lead is a prospective buyer inside a market.
type Lead = Party
