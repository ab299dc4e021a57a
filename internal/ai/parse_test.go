package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysis_EmbeddedObject(t *testing.T) {
	a, err := parseAnalysis(`Here you go: {"summary":"s","useCase":"u","tags":["a","b"]} thanks`)
	require.NoError(t, err)
	assert.Equal(t, "s", a.Summary)
	assert.Equal(t, "u", a.UseCase)
	assert.Equal(t, []string{"a", "b"}, a.Tags)
}

func TestParseAnalysis_Defaults(t *testing.T) {
	a, err := parseAnalysis("```json\n{\"summary\":\"only summary\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "only summary", a.Summary)
	assert.Equal(t, "", a.UseCase)
	assert.NotNil(t, a.Tags)
	assert.Empty(t, a.Tags)
}

func TestParseAnalysis_CommaSeparatedTags(t *testing.T) {
	a, err := parseAnalysis(`{"summary":"s","useCase":"u","tags":"code, review ,"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "review"}, a.Tags)
}

func TestParseAnalysis_Failures(t *testing.T) {
	_, err := parseAnalysis("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = parseAnalysis(`{"summary": "unterminated`)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = parseAnalysis(`{summary: s}`)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
}

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"nested", `x {"a":{"b":2}} y {"c":3}`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"s":"}{"} tail`, `{"s":"}{"}`, true},
		{"escaped quote", `{"s":"say \"}\" now"}`, `{"s":"say \"}\" now"}`, true},
		{"unclosed outer", `{ note {"a":1}`, `{"a":1}`, true},
		{"none", `no braces`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
