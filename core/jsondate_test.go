package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	when := time.Date(2023, 11, 4, 8, 30, 15, 123000000, time.UTC)

	tests := []struct {
		name  string
		value any
	}{
		{"string", "bar"},
		{"number", 42.5},
		{"bool", true},
		{"nil", nil},
		{"date", when},
		{"nested map", map[string]any{"a": map[string]any{"b": "c"}}},
		{"array", []any{1.0, "two", false}},
		{"date in array", []any{when, map[string]any{"at": when}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := Attributes{}
			attrs.Set("k", tt.value)

			snap, err := Snapshot(attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.value, snap["k"])
		})
	}
}

func TestUnmarshalJSONRevivesDates(t *testing.T) {
	v, err := UnmarshalJSON([]byte(`{"at":"2024-01-02T03:04:05.678Z","plain":"2024-01-02","list":["2024-01-02T03:04:05Z"]}`))
	require.NoError(t, err)

	m := v.(map[string]any)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC), m["at"])
	assert.Equal(t, "2024-01-02", m["plain"], "date without time stays a string")
	assert.Equal(t, []any{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, m["list"])
}

func TestUnmarshalAttributesInvalid(t *testing.T) {
	_, err := UnmarshalAttributes([]byte(`{not json`))
	assert.Error(t, err)
}

func TestUnmarshalAttributesNull(t *testing.T) {
	attrs, err := UnmarshalAttributes([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, attrs)
}
