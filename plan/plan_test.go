package plan_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ryzeai/ryze/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `{
  "layout": "Centered login card",
  "reasoning": "A card keeps the form compact",
  "structure": [
    {
      "component": "Container",
      "children": [
        {
          "component": "Card",
          "props": {"className": "w-96"},
          "children": [
            {"component": "Input", "props": {"type": "email", "placeholder": "Email"}},
            {"component": "Button", "props": {"variant": "default"}, "children": "Sign in"}
          ]
        }
      ]
    }
  ]
}`

func TestParse_ValidPlan(t *testing.T) {
	p, err := plan.Parse([]byte(samplePlan))
	require.NoError(t, err)

	assert.Equal(t, "Centered login card", p.Layout)
	require.Len(t, p.Structure, 1)

	card := p.Structure[0].Children.Nodes[0]
	assert.Equal(t, "Card", card.Component)
	assert.Equal(t, "w-96", card.Props["className"])

	button := card.Children.Nodes[1]
	assert.True(t, button.Children.IsText())
	assert.Equal(t, "Sign in", button.Children.Text)

	assert.Equal(t, []string{"Container", "Card", "Input", "Button"}, p.Components())
}

func TestParse_RoundTripPreservesTree(t *testing.T) {
	p, err := plan.Parse([]byte(samplePlan))
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	again, err := plan.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestChildren_UnusualShapesSurvive(t *testing.T) {
	input := `{"layout":"x","reasoning":"","structure":[{"component":"Flex","children":["a",{"component":"Button"}]}]}`

	p, err := plan.Parse([]byte(input))
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(data))
}

func TestChildren_OmittedWhenEmpty(t *testing.T) {
	p := plan.Plan{Layout: "x", Structure: []plan.Node{{Component: "Chart"}}}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "children")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *plan.Plan
		wantErr bool
	}{
		{name: "nil", plan: nil, wantErr: true},
		{name: "empty", plan: &plan.Plan{}, wantErr: true},
		{name: "layout only", plan: &plan.Plan{Layout: "Dashboard"}},
		{name: "structure only", plan: &plan.Plan{Structure: []plan.Node{{Component: "Navbar"}}}},
		{
			name: "nested node without component",
			plan: &plan.Plan{Structure: []plan.Node{{
				Component: "Container",
				Children:  plan.NodeChildren(plan.Node{Props: map[string]any{"a": 1}}),
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plan.Validate(tt.plan)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, plan.ErrInvalid))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	_, err := plan.Parse([]byte(`{"layout": 12}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrInvalid)

	_, err = plan.Parse([]byte(`not json`))
	assert.ErrorIs(t, err, plan.ErrInvalid)
}
