package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendera/backoffice-gateway/internal/resource"
)

func TestNewGraph_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		dependents    map[string][]string
		errorContains string
	}{
		{
			name:       "valid map",
			dependents: map[string][]string{"expenses": {"expenses.stats"}},
		},
		{
			name:       "empty map is valid",
			dependents: map[string][]string{},
		},
		{
			name:          "empty resource key",
			dependents:    map[string][]string{"": {"a"}},
			errorContains: "resource key cannot be empty",
		},
		{
			name:          "empty dependent key",
			dependents:    map[string][]string{"expenses": {""}},
			errorContains: "dependent key cannot be empty",
		},
		{
			name:          "self dependency",
			dependents:    map[string][]string{"expenses": {"expenses"}},
			errorContains: "cannot depend on itself",
		},
		{
			name:          "duplicate dependent",
			dependents:    map[string][]string{"expenses": {"expenses.stats", "expenses.stats"}},
			errorContains: "duplicate dependent",
		},
		{
			name: "two element cycle",
			dependents: map[string][]string{
				"a": {"b"},
				"b": {"a"},
			},
			errorContains: "dependency cycle",
		},
		{
			name: "three element cycle",
			dependents: map[string][]string{
				"a": {"b"},
				"b": {"c"},
				"c": {"a"},
			},
			errorContains: "dependency cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := resource.NewGraph(tt.dependents)

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, g)
		})
	}
}

func TestGraph_Dependents(t *testing.T) {
	t.Parallel()

	g, err := resource.NewGraph(map[string][]string{
		"expenses": {"expenses.stats", "expenses.byCategory", "budgets.summary"},
		"budgets":  {"budgets.summary", "dashboard.summary"},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      string
		expected []string
	}{
		{
			name:     "direct dependents",
			key:      "expenses",
			expected: []string{"budgets.summary", "expenses.byCategory", "expenses.stats"},
		},
		{
			name:     "dependents of budgets",
			key:      "budgets",
			expected: []string{"budgets.summary", "dashboard.summary"},
		},
		{
			name:     "leaf has no dependents",
			key:      "expenses.stats",
			expected: []string{},
		},
		{
			name:     "unknown key has no dependents",
			key:      "suppliers",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, g.Dependents(tt.key))
		})
	}
}

func TestGraph_TransitiveDependents(t *testing.T) {
	t.Parallel()

	g, err := resource.NewGraph(map[string][]string{
		"expenses":        {"expenses.stats"},
		"expenses.stats":  {"dashboard.summary"},
		"dashboard.stats": {},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"dashboard.summary", "expenses.stats"}, g.Dependents("expenses"))
	assert.Equal(t, []string{"dashboard.summary", "expenses", "expenses.stats"}, g.Affected("expenses"))
}

func TestGraph_Known(t *testing.T) {
	t.Parallel()

	g := resource.Default()

	assert.True(t, g.Known("expenses"))
	assert.True(t, g.Known("expenses.stats"), "derived views are known resources")
	assert.True(t, g.Known("dashboard.summary"))
	assert.False(t, g.Known("unicorns"))
}

func TestDefault_CoversProcurementDomain(t *testing.T) {
	t.Parallel()

	g := resource.Default()

	deps := g.Dependents("expenses")
	assert.Contains(t, deps, "expenses.stats")
	assert.Contains(t, deps, "expenses.byCategory")
	assert.Contains(t, deps, "budgets.summary")
	assert.Contains(t, deps, "dashboard.summary", "budgets.summary chains to the dashboard")

	assert.NotContains(t, g.Dependents("suppliers"), "expenses.stats",
		"unrelated resources must not share dependents")
}
