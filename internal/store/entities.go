package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

const clientColumns = `id, project_id, name, tax_id, website, legal_name, sector, size, employees,
	city, state, description, principal_product, quality_score, quality_tier, created_at, updated_at`

const partyColumns = `id, market_id, name, website, tax_id, city, state, size, description,
	quality_score, quality_tier, validation_status, created_at, updated_at`

func (s *sqlStore) Upsert(ctx context.Context, req dedup.Request) (*dedup.Result, error) {
	return s.dedup.Upsert(ctx, req)
}

func scanClient(row db.Row) (*model.Client, error) {
	var c model.Client
	var taxID, website, legal, sector, size, employees *string
	var city, state, description, product, tier *string
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &taxID, &website, &legal, &sector, &size, &employees,
		&city, &state, &description, &product, &c.QualityScore, &tier, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.TaxID, c.Website, c.LegalName = deref(taxID), deref(website), deref(legal)
	c.Sector, c.Size, c.Employees = deref(sector), deref(size), deref(employees)
	c.City, c.State, c.Description = deref(city), deref(state), deref(description)
	c.PrincipalProduct, c.QualityTier = deref(product), deref(tier)
	return &c, nil
}

func (s *sqlStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	row := s.conn.QueryRow(ctx, s.q(`SELECT `+clientColumns+` FROM clients WHERE id = $1`), id)
	c, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "client", id)
	}
	return c, nil
}

func (s *sqlStore) ListClients(ctx context.Context, filter ClientFilter) ([]model.Client, error) {
	q := db.NewQuery(s.d, `SELECT `+clientColumns+` FROM clients`, "project_id", "name", "created_at")
	if filter.ProjectID != "" {
		q.Eq("project_id", filter.ProjectID)
	}
	if filter.Name != "" {
		q.Contains("name", filter.Name)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	sql, args, err := q.OrderBy("created_at", false).Page(limit, filter.Offset).Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Classify(err, "store: list clients")
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan client")
		}
		out = append(out, *c)
	}
	return out, db.Classify(rows.Err(), "store: list clients")
}

func (s *sqlStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	var category, segment, desc, size, trend *string
	err := s.conn.QueryRow(ctx, s.q(`SELECT id, project_id, name, category, segment, description,
		market_size, growth_trend, created_at, updated_at FROM markets WHERE id = $1`), id).
		Scan(&m.ID, &m.ProjectID, &m.Name, &category, &segment, &desc, &size, &trend, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "market", id)
	}
	m.Category, m.Segment, m.Description = deref(category), deref(segment), deref(desc)
	m.MarketSize, m.GrowthTrend = deref(size), deref(trend)
	return &m, nil
}

// AssociateMarket links a client to a market. Re-associating is a no-op
// except that the primary flag follows the latest call.
func (s *sqlStore) AssociateMarket(ctx context.Context, cm model.ClientMarket) error {
	_, err := s.conn.Exec(ctx, s.q(`INSERT INTO client_markets (client_id, market_id, is_primary, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id, market_id) DO UPDATE SET is_primary = excluded.is_primary`),
		cm.ClientID, cm.MarketID, cm.Primary, s.now(),
	)
	return db.Classify(err, "store: associate market")
}

// ClientMarkets returns the markets of a client, primary first.
func (s *sqlStore) ClientMarkets(ctx context.Context, clientID string) ([]model.Market, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT m.id, m.project_id, m.name, m.category, m.segment,
		m.description, m.market_size, m.growth_trend, m.created_at, m.updated_at
		FROM client_markets cm JOIN markets m ON m.id = cm.market_id
		WHERE cm.client_id = $1
		ORDER BY cm.is_primary DESC, m.name`), clientID)
	if err != nil {
		return nil, db.Classify(err, "store: client markets")
	}
	defer rows.Close()

	var out []model.Market
	for rows.Next() {
		var m model.Market
		var category, segment, desc, size, trend *string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &category, &segment, &desc, &size, &trend,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan market")
		}
		m.Category, m.Segment, m.Description = deref(category), deref(segment), deref(desc)
		m.MarketSize, m.GrowthTrend = deref(size), deref(trend)
		out = append(out, m)
	}
	return out, db.Classify(rows.Err(), "store: client markets")
}

func partyTable(entity model.EntityType) (string, error) {
	if entity != model.EntityCompetitor && entity != model.EntityLead {
		return "", eris.Wrapf(model.ErrConstraintViolation, "store: %s is not a party entity", entity)
	}
	def, _ := model.DefFor(entity)
	return db.Ident(def.Table), nil
}

// PartyNames returns the stored names of competitors or leads in a market.
func (s *sqlStore) PartyNames(ctx context.Context, entity model.EntityType, marketID string) ([]string, error) {
	table, err := partyTable(entity)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, s.q(`SELECT name FROM `+table+` WHERE market_id = $1 ORDER BY name`), marketID)
	if err != nil {
		return nil, db.Classify(err, "store: party names")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "store: scan name")
		}
		names = append(names, n)
	}
	return names, db.Classify(rows.Err(), "store: party names")
}

func scanParty(row db.Row) (*model.Party, error) {
	var p model.Party
	var website, taxID, city, state, size *string
	var description, tier, status *string
	err := row.Scan(&p.ID, &p.MarketID, &p.Name, &website, &taxID, &city, &state, &size, &description,
		&p.QualityScore, &tier, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Website, p.TaxID, p.City, p.State = deref(website), deref(taxID), deref(city), deref(state)
	p.Size, p.Description, p.QualityTier = deref(size), deref(description), deref(tier)
	p.ValidationStatus = model.ValidationStatus(deref(status))
	return &p, nil
}

// ListParties lists competitors or leads. Every filter value is bound as a
// parameter; only whitelisted columns can be filtered or sorted on.
func (s *sqlStore) ListParties(ctx context.Context, entity model.EntityType, filter PartyFilter) ([]model.Party, error) {
	table, err := partyTable(entity)
	if err != nil {
		return nil, err
	}
	base := `SELECT ` + partyColumns + ` FROM (SELECT p.*, m.project_id FROM ` + table +
		` p JOIN markets m ON m.id = p.market_id) parties`
	q := db.NewQuery(s.d, base,
		"project_id", "market_id", "quality_tier", "validation_status", "state", "name", "quality_score", "created_at")

	if filter.ProjectID != "" {
		q.Eq("project_id", filter.ProjectID)
	}
	if filter.MarketID != "" {
		q.Eq("market_id", filter.MarketID)
	}
	if filter.Tier != "" {
		q.Eq("quality_tier", filter.Tier)
	}
	if filter.Status != "" {
		q.Eq("validation_status", string(filter.Status))
	}
	if filter.State != "" {
		q.Eq("state", filter.State)
	}
	if filter.Name != "" {
		q.Contains("name", filter.Name)
	}
	if filter.MinScore > 0 {
		q.Gte("quality_score", filter.MinScore)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sql, args, err := q.OrderBy("quality_score", true).Page(limit, filter.Offset).Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Classify(err, "store: list parties")
	}
	defer rows.Close()

	var out []model.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan party")
		}
		out = append(out, *p)
	}
	return out, db.Classify(rows.Err(), "store: list parties")
}

func (s *sqlStore) ListHistory(ctx context.Context, entity model.EntityType, id string) ([]model.HistoryEntry, error) {
	return s.history.List(ctx, s.conn, entity, id)
}

// LastLead returns the most recently discovered lead of a project created
// at or after since, or nil when there is none.
func (s *sqlStore) LastLead(ctx context.Context, projectID string, since time.Time) (*model.Party, error) {
	row := s.conn.QueryRow(ctx, s.q(`SELECT `+partyColumns+` FROM (SELECT l.*, m.project_id FROM leads l
		JOIN markets m ON m.id = l.market_id) parties
		WHERE project_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`), projectID, since)
	p, err := scanParty(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, db.Classify(err, "store: last lead")
	}
	return p, nil
}

func (s *sqlStore) LeadCountsByMarket(ctx context.Context, projectID string) ([]MarketCount, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT m.id, m.name, COUNT(l.id)
		FROM markets m JOIN leads l ON l.market_id = m.id
		WHERE m.project_id = $1
		GROUP BY m.id, m.name
		ORDER BY m.name`), projectID)
	if err != nil {
		return nil, db.Classify(err, "store: lead counts")
	}
	defer rows.Close()

	var out []MarketCount
	for rows.Next() {
		var mc MarketCount
		if err := rows.Scan(&mc.MarketID, &mc.Name, &mc.Leads); err != nil {
			return nil, eris.Wrap(err, "store: scan lead count")
		}
		out = append(out, mc)
	}
	return out, db.Classify(rows.Err(), "store: lead counts")
}
