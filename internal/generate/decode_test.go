package generate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

type marketPayload struct {
	Markets []struct {
		Name     string `json:"name" validate:"required"`
		Category string `json:"category"`
	} `json:"markets" validate:"required,min=1,max=3,dive"`
}

func TestDecode_Valid(t *testing.T) {
	got, err := Decode[marketPayload]("s3", "Here you go:\n```json\n{\"markets\":[{\"name\":\"Embalagens\",\"category\":\"B2B\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, got.Markets, 1)
	assert.Equal(t, "Embalagens", got.Markets[0].Name)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose only", "I could not find any markets."},
		{"malformed", `{"markets": [`},
		{"unknown field", `{"markets":[{"name":"A"}],"confidence":0.9}`},
		{"missing required", `{"markets":[{"category":"B2B"}]}`},
		{"too many", `{"markets":[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"}]}`},
		{"zero markets", `{"markets":[]}`},
		{"wrong type", `{"markets":"Embalagens"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[marketPayload]("s3", tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrGeneration), "got %v", err)
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`Sure! {"a":{"b":2}} hope this helps`, `{"a":{"b":2}}`},
		{`no json`, ``},
		{`} {`, ``},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in), tt.in)
	}
}
