package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpression(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		truthy  map[string]bool
		want    bool
		wantErr bool
	}{
		{
			name:   "bare key",
			input:  "battle_start",
			truthy: map[string]bool{"battle_start": true},
			want:   true,
		},
		{
			name:   "matcher call form",
			input:  "matcher(battle_start)",
			truthy: map[string]bool{"battle_start": true},
			want:   true,
		},
		{
			name:   "spaced matcher call form",
			input:  "matcher ( battle_start )",
			truthy: map[string]bool{"battle_start": true},
			want:   true,
		},
		{
			name:   "not",
			input:  "not loading",
			truthy: map[string]bool{"loading": false},
			want:   true,
		},
		{
			name:   "and short-circuit order",
			input:  "a and b",
			truthy: map[string]bool{"a": true, "b": false},
			want:   false,
		},
		{
			name:   "or",
			input:  "a or b",
			truthy: map[string]bool{"a": false, "b": true},
			want:   true,
		},
		{
			name:   "precedence not > and > or",
			input:  "a or b and not c",
			truthy: map[string]bool{"a": false, "b": true, "c": false},
			want:   true,
		},
		{
			name:   "parens",
			input:  "(a or b) and c",
			truthy: map[string]bool{"a": true, "b": false, "c": false},
			want:   false,
		},
		{
			name:   "group path key",
			input:  "battle_rules/ガチホコ",
			truthy: map[string]bool{"battle_rules/ガチホコ": true},
			want:   true,
		},
		{name: "unbalanced paren", input: "(a or b", wantErr: true},
		{name: "dangling operator", input: "a and", wantErr: true},
		{name: "empty matcher call", input: "matcher()", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpression(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := expr.Eval(func(key string) bool { return tt.truthy[key] })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionShortCircuit(t *testing.T) {
	var calls []string
	lookup := func(result map[string]bool) func(string) bool {
		return func(key string) bool {
			calls = append(calls, key)
			return result[key]
		}
	}

	expr, err := ParseExpression("a and b and c")
	require.NoError(t, err)
	calls = nil
	expr.Eval(lookup(map[string]bool{"a": true, "b": false, "c": true}))
	assert.Equal(t, []string{"a", "b"}, calls, "and stops at first false")

	expr, err = ParseExpression("a or b or c")
	require.NoError(t, err)
	calls = nil
	expr.Eval(lookup(map[string]bool{"a": false, "b": true, "c": false}))
	assert.Equal(t, []string{"a", "b"}, calls, "or stops at first true")
}

func TestExpressionKeys(t *testing.T) {
	expr, err := ParseExpression("a and (b or not c)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, expr.Keys(nil))
}
