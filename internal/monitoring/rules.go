package monitoring

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

type ruleFile struct {
	Rules []model.AlertConfig `yaml:"rules"`
}

// LoadRules reads alert rules from a YAML file. Rules without a project
// are assigned projectID.
func LoadRules(path, projectID string) ([]model.AlertConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "monitoring: read rules %s", path)
	}
	return ParseRules(data, projectID)
}

// ParseRules decodes and validates a YAML rule document.
func ParseRules(data []byte, projectID string) ([]model.AlertConfig, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "monitoring: parse rules")
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ProjectID == "" {
			r.ProjectID = projectID
		}
		if err := validateRule(*r); err != nil {
			return nil, err
		}
	}
	return f.Rules, nil
}

func validateRule(r model.AlertConfig) error {
	if r.ID == "" || r.Name == "" {
		return eris.Wrapf(model.ErrConfigurationMissing, "monitoring: rule %q needs an id and a name", r.Name)
	}
	switch r.Type {
	case model.AlertErrorRate:
		if r.Condition.Threshold <= 0 || r.Condition.Threshold > 1 {
			return eris.Wrapf(model.ErrConstraintViolation, "monitoring: rule %s: error_rate threshold must be in (0, 1]", r.ID)
		}
	case model.AlertHighQualityLead, model.AlertMarketVolume:
		if r.Condition.Threshold <= 0 {
			return eris.Wrapf(model.ErrConstraintViolation, "monitoring: rule %s: threshold must be positive", r.ID)
		}
	default:
		return eris.Wrapf(model.ErrConstraintViolation, "monitoring: rule %s: unknown type %q", r.ID, r.Type)
	}
	return nil
}

// RuleSaver persists alert rules.
type RuleSaver interface {
	SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error
}

// SyncRules saves every rule, keeping the stored last-trigger times.
func SyncRules(ctx context.Context, st RuleSaver, rules []model.AlertConfig) error {
	for i := range rules {
		if err := st.SaveAlertConfig(ctx, &rules[i]); err != nil {
			return err
		}
	}
	return nil
}
