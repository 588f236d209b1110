package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs() []map[string]any {
	return []map[string]any{
		{"id": "a", "n": 3.0, "group": "x"},
		{"id": "b", "n": 1.0, "group": "y"},
		{"id": "c", "n": 2.0, "group": "x"},
		{"id": "d", "group": "y"},
	}
}

func ids(items []map[string]any) []string {
	out := make([]string, len(items))
	for i, d := range items {
		out[i] = d["id"].(string)
	}
	return out
}

func self(m map[string]any) map[string]any { return m }

func TestApplyFilterAndSort(t *testing.T) {
	out, err := Apply(docs(), self, Query{"group": "x"}, Options{Sort: []SortField{{"n", Ascending}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(out))
}

func TestApplySortMissingFirst(t *testing.T) {
	out, err := Apply(docs(), self, nil, Options{Sort: []SortField{{"n", Ascending}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(out))

	out, err = Apply(docs(), self, nil, Options{Sort: []SortField{{"n", Descending}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(out))
}

func TestApplyMultiFieldSort(t *testing.T) {
	out, err := Apply(docs(), self, nil, Options{Sort: []SortField{{"group", Descending}, {"n", Ascending}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(out))
}

func TestApplyPaging(t *testing.T) {
	sorted := Options{Sort: []SortField{{"id", Ascending}}}

	tests := []struct {
		name        string
		skip, limit int
		want        []string
	}{
		{"no paging", 0, 0, []string{"a", "b", "c", "d"}},
		{"limit", 0, 2, []string{"a", "b"}},
		{"skip", 1, 0, []string{"b", "c", "d"}},
		{"skip and limit", 1, 2, []string{"b", "c"}},
		{"skip past end", 10, 2, []string{}},
		{"limit past end", 3, 10, []string{"d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := sorted
			opts.Skip, opts.Limit = tt.skip, tt.limit
			out, err := Apply(docs(), self, nil, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestApplyEmptyIsNotNil(t *testing.T) {
	out, err := Apply(nil, self, Query{"x": 1}, Options{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestApplyInvalidOptions(t *testing.T) {
	_, err := Apply(docs(), self, nil, Options{Skip: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = Apply(docs(), self, nil, Options{Sort: []SortField{{"n", 2}}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseSort(t *testing.T) {
	fields, err := ParseSort("name:1, age:-1,created")
	require.NoError(t, err)
	assert.Equal(t, []SortField{{"name", Ascending}, {"age", Descending}, {"created", Ascending}}, fields)

	_, err = ParseSort("name:up")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	fields, err = ParseSort("")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSortPairs(t *testing.T) {
	fields, err := SortPairs([2]any{"a", 1}, [2]any{"b", "desc"}, [2]any{"c", -1.0})
	require.NoError(t, err)
	assert.Equal(t, []SortField{{"a", Ascending}, {"b", Descending}, {"c", Descending}}, fields)

	_, err = SortPairs([2]any{1, 1})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestCompareKinds(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, 1.0))
	assert.Equal(t, -1, Compare(1.0, "a"))
	assert.Equal(t, 1, Compare(true, "a"))
	assert.Equal(t, 0, Compare(2, 2.0))
	assert.Equal(t, -1, Compare("a", "b"))
}
