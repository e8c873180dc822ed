package generate

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses a model response into T. The payload must be a single
// JSON object, may not carry fields T does not declare, and must pass T's
// validate tags. Any failure is model.ErrGeneration.
func Decode[T any](stage, text string) (T, error) {
	var out T
	raw := cleanJSON(text)
	if raw == "" {
		return out, eris.Wrapf(model.ErrGeneration, "generate: %s: no JSON object in response", stage)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, eris.Wrapf(model.ErrGeneration, "generate: %s: decode: %v", stage, err)
	}
	if dec.More() {
		return out, eris.Wrapf(model.ErrGeneration, "generate: %s: trailing data after JSON object", stage)
	}
	if err := validate.Struct(out); err != nil {
		return out, eris.Wrapf(model.ErrGeneration, "generate: %s: schema: %v", stage, err)
	}
	return out, nil
}

// cleanJSON strips code fences and prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
