package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/metrics"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/scorer"
)

type attributesPayload struct {
	LegalName   string `json:"legal_name"`
	TaxID       string `json:"tax_id"`
	Website     string `json:"website"`
	Sector      string `json:"sector"`
	Size        string `json:"size"`
	Employees   string `json:"employees"`
	City        string `json:"city"`
	State       string `json:"state"`
	Description string `json:"description" validate:"required"`
}

type productSpec struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category"`
	Description string `json:"description" validate:"required"`
}

type productPayload struct {
	Product productSpec `json:"product"`
}

type marketSpec struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category"`
	Segment     string `json:"segment"`
	Description string `json:"description"`
	MarketSize  string `json:"market_size"`
	GrowthTrend string `json:"growth_trend"`
}

type marketPayload struct {
	Markets []marketSpec `json:"markets" validate:"required,min=1,max=3,dive"`
}

// enrichAttributes is S1. Identifiers supplied with the seed win over
// generated ones.
func (p *Pipeline) enrichAttributes(clientID string) stageFunc {
	return func(ctx context.Context, r *run) (any, generate.Usage, error) {
		client, err := p.store.GetClient(ctx, clientID)
		if err != nil {
			return nil, generate.Usage{}, err
		}
		r.client = *client

		prompt := fmt.Sprintf(attributesPrompt, client.Name, orUnknown(client.TaxID), orUnknown(client.Website))
		attrs, usage, err := generateInto[attributesPayload](ctx, p.gen, StageAttributes, attributesSystem, prompt)
		if err != nil {
			return nil, usage, err
		}

		c := r.client
		c.LegalName, c.Sector, c.Size, c.Employees = attrs.LegalName, attrs.Sector, attrs.Size, attrs.Employees
		c.City, c.State, c.Description = attrs.City, attrs.State, attrs.Description
		if c.TaxID == "" {
			c.TaxID = attrs.TaxID
		}
		if c.Website == "" {
			c.Website = attrs.Website
		}

		fields := model.Compact(model.Record{
			"name":        c.Name,
			"tax_id":      c.TaxID,
			"website":     c.Website,
			"legal_name":  c.LegalName,
			"sector":      c.Sector,
			"size":        c.Size,
			"employees":   c.Employees,
			"city":        c.City,
			"state":       c.State,
			"description": c.Description,
		})
		if _, err := p.upsert(ctx, model.EntityClient, c.ProjectID, fields); err != nil {
			return nil, usage, err
		}
		r.client = c
		return attrs, usage, nil
	}
}

// deriveProduct is S2. The product row itself needs a market and is
// written by S3; here only the client's principal product is recorded.
func (p *Pipeline) deriveProduct(ctx context.Context, r *run) (any, generate.Usage, error) {
	c := r.client
	prompt := fmt.Sprintf(productPrompt, c.Name, orUnknown(c.Sector), c.Description)
	out, usage, err := generateInto[productPayload](ctx, p.gen, StageProduct, productSystem, prompt)
	if err != nil {
		return nil, usage, err
	}

	fields := model.Record{"name": c.Name, "principal_product": out.Product.Name}
	if _, err := p.upsert(ctx, model.EntityClient, c.ProjectID, fields); err != nil {
		return nil, usage, err
	}
	r.product = out.Product
	r.client.PrincipalProduct = out.Product.Name
	return out.Product, usage, nil
}

// deriveMarkets is S3. The first market is primary.
func (p *Pipeline) deriveMarkets(ctx context.Context, r *run) (any, generate.Usage, error) {
	c, prod := r.client, r.product
	prompt := fmt.Sprintf(marketPrompt, c.Name, orUnknown(c.Sector), prod.Name, orUnknown(prod.Category), prod.Description, p.cfg.MaxMarkets)
	out, usage, err := generateInto[marketPayload](ctx, p.gen, StageMarkets, marketSystem, prompt)
	if err != nil {
		return nil, usage, err
	}

	defs := out.Markets
	if len(defs) > p.cfg.MaxMarkets {
		defs = defs[:p.cfg.MaxMarkets]
	}

	markets := make([]model.Market, 0, len(defs))
	for i, ms := range defs {
		m := model.Market{
			ProjectID:   c.ProjectID,
			Name:        strings.TrimSpace(ms.Name),
			Category:    ms.Category,
			Segment:     ms.Segment,
			Description: ms.Description,
			MarketSize:  ms.MarketSize,
			GrowthTrend: ms.GrowthTrend,
		}
		res, err := p.upsert(ctx, model.EntityMarket, c.ProjectID, m.Record())
		if err != nil {
			return nil, usage, err
		}
		m.ID = res.ID
		if err := p.store.AssociateMarket(ctx, model.ClientMarket{ClientID: c.ID, MarketID: m.ID, Primary: i == 0}); err != nil {
			return nil, usage, err
		}
		markets = append(markets, m)
	}
	if len(markets) == 0 {
		return nil, usage, eris.Wrap(model.ErrGeneration, "pipeline: no markets derived")
	}

	product := model.Product{
		Name:        prod.Name,
		MarketID:    markets[0].ID,
		Category:    prod.Category,
		Description: prod.Description,
	}
	if _, err := p.upsert(ctx, model.EntityProduct, c.ID, product.Record()); err != nil {
		return nil, usage, err
	}

	r.markets = markets
	return markets, usage, nil
}

// generateCompetitors is S4 over the primary market. Stored leads are
// excluded so the two sets stay disjoint across runs.
func (p *Pipeline) generateCompetitors(ctx context.Context, r *run) (any, generate.Usage, error) {
	market := r.markets[0]
	leads, err := p.store.PartyNames(ctx, model.EntityLead, market.ID)
	if err != nil {
		return nil, generate.Usage{}, err
	}

	out, names, usage, err := p.generateParties(ctx, r, model.EntityCompetitor, p.cfg.CompetitorQuota, append(leads, r.client.Name))
	if err != nil {
		return nil, usage, err
	}
	r.competitors = names
	return out, usage, nil
}

// generateLeads is S5 over the primary market, excluding every competitor
// of the market including those S4 just wrote.
func (p *Pipeline) generateLeads(ctx context.Context, r *run) (any, generate.Usage, error) {
	market := r.markets[0]
	competitors, err := p.store.PartyNames(ctx, model.EntityCompetitor, market.ID)
	if err != nil {
		return nil, generate.Usage{}, err
	}
	exclude := append(competitors, r.competitors...)
	exclude = append(exclude, r.client.Name)

	out, _, usage, err := p.generateParties(ctx, r, model.EntityLead, p.cfg.LeadQuota, exclude)
	return out, usage, err
}

func (p *Pipeline) generateParties(ctx context.Context, r *run, kind model.EntityType, quota int, exclude []string) (PartyOutput, []string, generate.Usage, error) {
	market := r.markets[0]
	out := PartyOutput{MarketID: market.ID, Requested: quota}

	uniq, err := p.guard.GenerateUnique(ctx, UniqueRequest{
		Market:  market,
		Kind:    kind,
		Quota:   quota,
		Exclude: exclude,
		Client:  r.client,
		Product: r.product.Name,
	})
	var usage generate.Usage
	if uniq != nil {
		usage = uniq.Usage
	}
	if err != nil {
		return out, nil, usage, err
	}

	names := make([]string, 0, len(uniq.Candidates))
	for _, c := range uniq.Candidates {
		res, err := p.upsert(ctx, kind, market.ID, c.Record())
		if err != nil {
			return out, names, usage, err
		}
		if res.Created {
			out.Created++
		} else {
			out.Updated++
		}
		names = append(names, c.Name)
	}
	out.Names = names
	out.Shortfall = uniq.Shortfall
	metrics.AddShortfall(string(kind), uniq.Shortfall)
	return out, names, usage, nil
}

func (p *Pipeline) upsert(ctx context.Context, entity model.EntityType, scope string, fields model.Record) (*dedup.Result, error) {
	req := dedup.Request{
		Entity: entity,
		Scope:  scope,
		Fields: fields,
		Actor:  p.cfg.Actor,
	}
	switch entity {
	case model.EntityClient, model.EntityCompetitor, model.EntityLead:
		req.Derive = scorer.Derive
	}
	return p.store.Upsert(ctx, req)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
