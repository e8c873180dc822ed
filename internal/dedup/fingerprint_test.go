package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Embalagens", "embalagens"},
		{"  Acme   Ltda  ", "acme ltda"},
		{"São Paulo", "sao paulo"},
		{"AÇÚCAR\tE  ÁLCOOL", "acucar e alcool"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	keys := []string{"name"}
	a := Fingerprint(model.EntityMarket, "p1", keys, model.Record{"name": "Embalagens"})
	b := Fingerprint(model.EntityMarket, "p1", keys, model.Record{"name": "  EMBALAGENS "})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_Scoped(t *testing.T) {
	keys := []string{"name"}
	r := model.Record{"name": "Acme"}
	assert.NotEqual(t,
		Fingerprint(model.EntityCompetitor, "m1", keys, r),
		Fingerprint(model.EntityCompetitor, "m2", keys, r))
	assert.NotEqual(t,
		Fingerprint(model.EntityCompetitor, "m1", keys, r),
		Fingerprint(model.EntityLead, "m1", keys, r))
}

func TestFingerprint_KeyOrderMatters(t *testing.T) {
	keys := []string{"market_id", "name"}
	a := Fingerprint(model.EntityProduct, "c1", keys, model.Record{"market_id": "m1", "name": "Caixas"})
	b := Fingerprint(model.EntityProduct, "c1", keys, model.Record{"market_id": "Caixas", "name": "m1"})
	assert.NotEqual(t, a, b)
}
