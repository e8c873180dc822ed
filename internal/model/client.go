package model

import "time"

// Client is the seed entity fed into the enrichment pipeline.
type Client struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	Name             string    `json:"name"`
	TaxID            string    `json:"tax_id,omitempty"`
	Website          string    `json:"website,omitempty"`
	LegalName        string    `json:"legal_name,omitempty"`
	Sector           string    `json:"sector,omitempty"`
	Size             string    `json:"size,omitempty"`
	Employees        string    `json:"employees,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Description      string    `json:"description,omitempty"`
	PrincipalProduct string    `json:"principal_product,omitempty"`
	QualityScore     int       `json:"quality_score"`
	QualityTier      string    `json:"quality_tier,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Seed returns the externally supplied identity fields, omitting blanks.
func (c Client) Seed() Record {
	return Compact(Record{
		"name":    c.Name,
		"tax_id":  c.TaxID,
		"website": c.Website,
	})
}

// Compact drops empty-string values so an omitted attribute never
// overwrites a stored one.
func Compact(r Record) Record {
	for k, v := range r {
		if s, ok := v.(string); ok && s == "" {
			delete(r, k)
		}
	}
	return r
}
