package model

// EntityType names a persisted entity kind.
type EntityType string

const (
	EntityClient     EntityType = "client"
	EntityMarket     EntityType = "market"
	EntityProduct    EntityType = "product"
	EntityCompetitor EntityType = "competitor"
	EntityLead       EntityType = "lead"
)

// Record is a column-name to value view of one entity row.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// EntityDef describes how an entity type is stored and deduplicated.
type EntityDef struct {
	Type  EntityType
	Table string
	// ScopeColumn holds the parent id the fingerprint is scoped by.
	ScopeColumn string
	// KeyColumns are hashed, in order, into the fingerprint.
	KeyColumns []string
	// RequiredKeys must be non-empty or the upsert is rejected.
	RequiredKeys []string
	// Fields are the tracked columns; every history entry names one of these.
	Fields []string
}

// Tracks reports whether col is a tracked field of the entity.
func (s EntityDef) Tracks(col string) bool {
	for _, f := range s.Fields {
		if f == col {
			return true
		}
	}
	return false
}

var partyFields = []string{
	"name", "website", "tax_id", "city", "state", "size", "description",
	"quality_score", "quality_tier", "validation_status",
}

var defs = map[EntityType]EntityDef{
	EntityClient: {
		Type:         EntityClient,
		Table:        "clients",
		ScopeColumn:  "project_id",
		KeyColumns:   []string{"name"},
		RequiredKeys: []string{"name"},
		Fields: []string{
			"name", "tax_id", "website", "legal_name", "sector", "size", "employees",
			"city", "state", "description", "principal_product", "quality_score", "quality_tier",
		},
	},
	EntityMarket: {
		Type:         EntityMarket,
		Table:        "markets",
		ScopeColumn:  "project_id",
		KeyColumns:   []string{"name"},
		RequiredKeys: []string{"name"},
		Fields:       []string{"name", "category", "segment", "description", "market_size", "growth_trend"},
	},
	EntityProduct: {
		Type:         EntityProduct,
		Table:        "products",
		ScopeColumn:  "client_id",
		KeyColumns:   []string{"market_id", "name"},
		RequiredKeys: []string{"market_id", "name"},
		Fields:       []string{"name", "market_id", "category", "description"},
	},
	EntityCompetitor: {
		Type:         EntityCompetitor,
		Table:        "competitors",
		ScopeColumn:  "market_id",
		KeyColumns:   []string{"name"},
		RequiredKeys: []string{"name"},
		Fields:       partyFields,
	},
	EntityLead: {
		Type:         EntityLead,
		Table:        "leads",
		ScopeColumn:  "market_id",
		KeyColumns:   []string{"name"},
		RequiredKeys: []string{"name"},
		Fields:       partyFields,
	},
}

// DefFor returns the storage definition of an entity type.
func DefFor(t EntityType) (EntityDef, bool) {
	s, ok := defs[t]
	return s, ok
}

// EntityTypes lists every known entity type in dependency order.
func EntityTypes() []EntityType {
	return []EntityType{EntityClient, EntityMarket, EntityProduct, EntityCompetitor, EntityLead}
}
