package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsonstore/jsonsync/tree"
)

const nestedDoc = `{
	"children": [
		{"a": 1},
		{"b": 2},
		{
			"c": 3,
			"children": [
				{"a": 1},
				{"b": 2},
				{"c": 3}
			]
		}
	]
}`

func paths(found []tree.Path) []string {
	out := make([]string, len(found))
	for i, p := range found {
		out[i] = p.String()
	}
	return out
}

func TestFind(t *testing.T) {
	root := tree.MustParse(nestedDoc)

	testCases := []struct {
		name   string
		key    string
		params Params
		want   []string
	}{
		{name: "all matches depth first", key: "a", want: []string{"/children/0", "/children/2/children/0"}},
		{name: "count limit", key: "a", params: Params{MaxCount: 1}, want: []string{"/children/0"}},
		{name: "value match", key: "a", params: Params{Value: tree.Int(1), MaxCount: 1}, want: []string{"/children/0"}},
		{name: "value matches numerically", key: "a", params: Params{Value: tree.MustParse("1.0")}, want: []string{"/children/0", "/children/2/children/0"}},
		{name: "value mismatch", key: "a", params: Params{Value: tree.Int(2), MaxCount: 1}, want: []string{}},
		{name: "key mismatch", key: "d", want: []string{}},
		{name: "prune depth 1", key: "a", params: Params{MaxCount: -1, PruneDepth: 1}, want: []string{"/children/0"}},
		{name: "prune depth 2", key: "a", params: Params{MaxCount: -1, PruneDepth: 2}, want: []string{"/children/0", "/children/2/children/0"}},
		{name: "negative depth is unlimited", key: "c", params: Params{PruneDepth: -1}, want: []string{"/children/2", "/children/2/children/2"}},
		{name: "start row", key: "a", params: Params{Row: 1}, want: []string{"/children/2/children/0"}},
		{name: "start container", key: "b", params: Params{Parent: tree.Root().Row(2)}, want: []string{"/children/2/children/1"}},
		{name: "missing start container", key: "a", params: Params{Parent: tree.Root().Row(9)}, want: []string{}},
		{name: "start row past end", key: "a", params: Params{Row: 10}, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			found := Find(root, tc.key, tc.params)
			assert.Equal(t, tc.want, paths(found))
		})
	}
}

func TestFindLimitSpansLevels(t *testing.T) {
	root := tree.MustParse(`{"children":[{"children":[{"k":1},{"k":2}]},{"k":3}]}`)

	found := Find(root, "k", Params{MaxCount: 2})
	assert.Equal(t, []string{"/children/0/children/0", "/children/0/children/1"}, paths(found))

	found = Find(root, "k", Params{MaxCount: 3})
	assert.Equal(t, []string{"/children/0/children/0", "/children/0/children/1", "/children/1"}, paths(found))
}

func TestFindSkipsScalarRows(t *testing.T) {
	root := tree.MustParse(`{"children":[1,"a",null,{"a":true}]}`)
	assert.Equal(t, []string{"/children/3"}, paths(Find(root, "a", Params{})))
}

func TestFindFirst(t *testing.T) {
	root := tree.MustParse(nestedDoc)

	p, ok := FindFirst(root, "b", Params{})
	require.True(t, ok)
	assert.Equal(t, "/children/1", p.String())

	p, ok = FindFirst(root, "b", Params{Parent: tree.Root().Row(2), MaxCount: 5})
	require.True(t, ok)
	assert.Equal(t, "/children/2/children/1", p.String())

	_, ok = FindFirst(root, "zzz", Params{})
	assert.False(t, ok)
}
