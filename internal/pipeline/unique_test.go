package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

type staticNames map[model.EntityType][]string

func (s staticNames) PartyNames(_ context.Context, entity model.EntityType, _ string) ([]string, error) {
	return s[entity], nil
}

func uniqueReq(quota int) UniqueRequest {
	return UniqueRequest{
		Market: model.Market{ID: "m1", Name: "Logistics packaging"},
		Kind:   model.EntityCompetitor,
		Quota:  quota,
		Client: model.Client{Name: "Acme"},
	}
}

func TestGuard_SkipsStoredAndExcluded(t *testing.T) {
	m := &mockGenerator{}
	m.On("Generate", mock.Anything, mock.Anything).
		Return(reply(companies("Polytech", "Acme", "Novo Filme", "Plásticos União")), nil)

	g := NewGuard(m, staticNames{model.EntityCompetitor: {"POLYTECH"}}, 3)
	req := uniqueReq(2)
	req.Exclude = []string{"Acme", "Plasticos Uniao"}

	res, err := g.GenerateUnique(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Novo Filme", res.Candidates[0].Name)
	assert.Equal(t, 1, res.Shortfall)
	assert.Equal(t, 3, res.Attempts)
}

func TestGuard_RetryAsksForMore(t *testing.T) {
	m := &mockGenerator{}
	var prompts []string
	m.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompts = append(prompts, args.Get(1).(generate.Request).Prompt) }).
		Return(reply(companies("Alfa")), nil).Once()
	m.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompts = append(prompts, args.Get(1).(generate.Request).Prompt) }).
		Return(reply(companies("Beta", "Gama", "Delta", "Épsilon", "Zeta")), nil).Once()

	res, err := NewGuard(m, staticNames{}, 3).GenerateUnique(context.Background(), uniqueReq(4))
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 4)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "List 4 companies")
	assert.Contains(t, prompts[1], "List 5 companies")
	assert.Contains(t, prompts[1], "Alfa")
}

func TestGuard_ErrorOnlyWhenNothingCollected(t *testing.T) {
	m := &mockGenerator{}
	m.On("Generate", mock.Anything, mock.Anything).Return(reply(companies("Alfa")), nil).Once()
	m.On("Generate", mock.Anything, mock.Anything).Return(nil, eris.Wrap(model.ErrGeneration, "boom"))

	res, err := NewGuard(m, staticNames{}, 3).GenerateUnique(context.Background(), uniqueReq(3))
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, 2, res.Shortfall)

	m2 := &mockGenerator{}
	m2.On("Generate", mock.Anything, mock.Anything).Return(reply(`not json`), nil)
	_, err = NewGuard(m2, staticNames{}, 2).GenerateUnique(context.Background(), uniqueReq(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGeneration)
	m2.AssertNumberOfCalls(t, "Generate", 2)
}

func TestGuard_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &mockGenerator{}
	m.On("Generate", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	_, err := NewGuard(m, staticNames{}, 3).GenerateUnique(ctx, uniqueReq(3))
	require.ErrorIs(t, err, context.Canceled)
	m.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGuard_ZeroQuota(t *testing.T) {
	m := &mockGenerator{}
	res, err := NewGuard(m, staticNames{}, 3).GenerateUnique(context.Background(), uniqueReq(0))
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}
