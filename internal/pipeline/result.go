package pipeline

import (
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/notify"
)

// Stage identifies one step of the enrichment pipeline.
type Stage int

const (
	StageAttributes Stage = iota + 1
	StageProduct
	StageMarkets
	StageCompetitors
	StageLeads
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageAttributes, StageProduct, StageMarkets, StageCompetitors, StageLeads}

func (s Stage) String() string {
	switch s {
	case StageAttributes:
		return "attribute_enrichment"
	case StageProduct:
		return "product_derivation"
	case StageMarkets:
		return "market_derivation"
	case StageCompetitors:
		return "competitor_generation"
	case StageLeads:
		return "lead_generation"
	default:
		return "unknown"
	}
}

// StageResult is the outcome of one attempted stage.
type StageResult struct {
	Stage      int             `json:"stage"`
	Name       string          `json:"name"`
	Success    bool            `json:"success"`
	Output     any             `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Kind       model.ErrorKind `json:"error_kind,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Usage      generate.Usage  `json:"usage"`
	CostUSD    float64         `json:"cost_usd"`
}

// PartyOutput is the output payload of the competitor and lead stages.
type PartyOutput struct {
	MarketID  string   `json:"market_id"`
	Requested int      `json:"requested"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Shortfall int      `json:"shortfall"`
	Names     []string `json:"names"`
}

// Result is the outcome of one pipeline run. Stages holds one entry per
// attempted stage; stages after a failure are absent.
type Result struct {
	ClientID string         `json:"client_id"`
	Stages   []StageResult  `json:"stages"`
	Usage    generate.Usage `json:"usage"`
	CostUSD  float64        `json:"cost_usd"`
	Events   []notify.Event `json:"-"`
}

// Succeeded reports whether every stage ran and succeeded.
func (r *Result) Succeeded() bool {
	if len(r.Stages) != len(Stages) {
		return false
	}
	for _, s := range r.Stages {
		if !s.Success {
			return false
		}
	}
	return true
}

// FailedStage returns the stage that aborted the run, or nil.
func (r *Result) FailedStage() *StageResult {
	for i := range r.Stages {
		if !r.Stages[i].Success {
			return &r.Stages[i]
		}
	}
	return nil
}

// Stage returns the result of stage s, or nil if it was not attempted.
func (r *Result) Stage(s Stage) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == int(s) {
			return &r.Stages[i]
		}
	}
	return nil
}
