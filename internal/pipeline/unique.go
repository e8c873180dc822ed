package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// maxExcludeInPrompt caps the exclusion list sent to the model. Names
// beyond it are still filtered locally.
const maxExcludeInPrompt = 150

// NameSource lists the stored names of a party kind in a market.
type NameSource interface {
	PartyNames(ctx context.Context, entity model.EntityType, marketID string) ([]string, error)
}

// Candidate is one company proposed by the generation service.
type Candidate struct {
	Name        string `json:"name" validate:"required"`
	Website     string `json:"website"`
	TaxID       string `json:"tax_id"`
	City        string `json:"city"`
	State       string `json:"state"`
	Size        string `json:"size"`
	Description string `json:"description"`
}

// Record returns the candidate as an upsert field set.
func (c Candidate) Record() model.Record {
	return model.Party{
		Name:        strings.TrimSpace(c.Name),
		Website:     c.Website,
		TaxID:       c.TaxID,
		City:        c.City,
		State:       c.State,
		Size:        c.Size,
		Description: c.Description,
	}.Record()
}

type partyPayload struct {
	Companies []Candidate `json:"companies" validate:"required,min=1,dive"`
}

// UniqueRequest asks for Quota new companies of Kind in Market.
type UniqueRequest struct {
	Market  model.Market
	Kind    model.EntityType
	Quota   int
	Exclude []string
	// Client and Product give the prompt its subject.
	Client  model.Client
	Product string
}

// UniqueResult holds the collected candidates. Shortfall is the number of
// candidates still missing when the attempt budget ran out.
type UniqueResult struct {
	Candidates []Candidate
	Shortfall  int
	Attempts   int
	Usage      generate.Usage
}

// Guard collects candidates that are new for a market: not already stored
// under the same kind and not in the caller's exclusion list.
type Guard struct {
	gen      generate.Generator
	names    NameSource
	attempts int
}

// NewGuard creates a Guard. attempts bounds the number of generation calls
// per request.
func NewGuard(gen generate.Generator, names NameSource, attempts int) *Guard {
	if attempts <= 0 {
		attempts = 3
	}
	return &Guard{gen: gen, names: names, attempts: attempts}
}

// GenerateUnique requests candidates until Quota unique ones are collected
// or the attempt budget is spent. Each retry asks for more than is missing.
// A short result is not an error; an error is returned only when nothing
// was collected and the last attempt failed.
func (g *Guard) GenerateUnique(ctx context.Context, req UniqueRequest) (*UniqueResult, error) {
	res := &UniqueResult{}
	if req.Quota <= 0 {
		return res, nil
	}

	stored, err := g.names.PartyNames(ctx, req.Kind, req.Market.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(stored)+len(req.Exclude))
	var avoid []string
	for _, n := range append(stored, req.Exclude...) {
		key := dedup.Normalize(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		avoid = append(avoid, n)
	}

	log := zap.L().With(
		zap.String("market_id", req.Market.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("quota", req.Quota),
	)

	stage := string(req.Kind) + "_unique"
	var lastErr error
	for attempt := 0; attempt < g.attempts && len(res.Candidates) < req.Quota; attempt++ {
		res.Attempts++
		remaining := req.Quota - len(res.Candidates)
		ask := remaining + (remaining*attempt+1)/2

		resp, genErr := g.gen.Generate(ctx, generate.Request{
			Stage:  stage,
			System: partySystem,
			Prompt: partyPrompt(req, ask, avoid),
		})
		if genErr != nil {
			if ctx.Err() != nil {
				return res, genErr
			}
			lastErr = genErr
			log.Warn("pipeline: unique attempt failed", zap.Int("attempt", res.Attempts), zap.Error(genErr))
			continue
		}
		res.Usage.Add(resp.Usage)

		payload, decErr := generate.Decode[partyPayload](stage, resp.Text)
		if decErr != nil {
			lastErr = decErr
			log.Warn("pipeline: unique attempt unparseable", zap.Int("attempt", res.Attempts), zap.Error(decErr))
			continue
		}

		added := 0
		for _, c := range payload.Companies {
			key := dedup.Normalize(c.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			avoid = append(avoid, c.Name)
			res.Candidates = append(res.Candidates, c)
			added++
			if len(res.Candidates) == req.Quota {
				break
			}
		}
		log.Debug("pipeline: unique attempt",
			zap.Int("attempt", res.Attempts),
			zap.Int("returned", len(payload.Companies)),
			zap.Int("added", added),
		)
	}

	if len(res.Candidates) == 0 && lastErr != nil {
		return res, lastErr
	}
	res.Shortfall = req.Quota - len(res.Candidates)
	return res, nil
}

func partyPrompt(req UniqueRequest, ask int, avoid []string) string {
	exclude := "none"
	if len(avoid) > 0 {
		if len(avoid) > maxExcludeInPrompt {
			avoid = avoid[len(avoid)-maxExcludeInPrompt:]
		}
		exclude = strings.Join(avoid, "; ")
	}
	m, c := req.Market, req.Client
	if req.Kind == model.EntityLead {
		return fmt.Sprintf(leadPrompt, m.Name, m.Category, m.Description, ask, c.Name, req.Product, c.Name, exclude)
	}
	return fmt.Sprintf(competitorPrompt, m.Name, m.Category, m.Description, ask, c.Name, exclude)
}
