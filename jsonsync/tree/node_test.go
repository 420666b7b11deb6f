package tree

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsonstore/jsonsync/common"
)

func TestParseAndMarshal(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "null", in: "null", want: "null"},
		{name: "bool", in: " true ", want: "true"},
		{name: "integer keeps literal", in: "1", want: "1"},
		{name: "float keeps literal", in: "1.50", want: "1.50"},
		{name: "string without html escaping", in: `"a<b>&c"`, want: `"a<b>&c"`},
		{name: "object keys sorted", in: `{"b":1, "a":{"d":[],"c":null}}`, want: `{"a":{"c":null,"d":[]},"b":1}`},
		{name: "nested array", in: `[1,[2,{"x":"y"}]]`, want: `[1,[2,{"x":"y"}]]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := Parse([]byte(tc.in))
			require.NoError(t, err)

			data, err := n.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "{", `{"a":1} {}`, "[1,]"} {
		_, err := Parse([]byte(in))
		var desErr common.ErrDeserialization
		assert.True(t, errors.As(err, &desErr), "input %q", in)
	}
}

func TestUnmarshalIntoNode(t *testing.T) {
	var holder struct {
		Data *Node `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"name":"x","n":2}}`), &holder))
	require.NotNil(t, holder.Data)

	name, ok := holder.Data.Get("name")
	require.True(t, ok)
	s, ok := name.AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)
}

func TestCloneIsDeep(t *testing.T) {
	orig := MustParse(`{"children":[{"a":1}]}`)
	clone := orig.Clone()
	require.True(t, Equal(orig, clone))

	children, _ := clone.Get(ChildrenKey)
	children.Index(0).Put("a", Int(2))
	children.Append(Object())

	assert.Equal(t, `{"children":[{"a":1}]}`, orig.String())
	assert.Equal(t, `{"children":[{"a":2},{}]}`, clone.String())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(MustParse("1"), MustParse("1.0")))
	assert.True(t, Equal(MustParse("100"), MustParse("1e2")))
	assert.False(t, Equal(MustParse("1"), MustParse(`"1"`)))
	assert.True(t, Equal(MustParse(`{"a":[1,2]}`), MustParse(`{"a":[1,2]}`)))
	assert.False(t, Equal(MustParse(`{"a":[1,2]}`), MustParse(`{"a":[2,1]}`)))
	assert.False(t, Equal(MustParse(`{"a":1}`), MustParse(`{"b":1}`)))
	assert.True(t, Equal(nil, Null()))
}

func TestArraySplicing(t *testing.T) {
	arr := MustParse(`[0,1,2,3]`)

	arr.InsertAt(1, String("a"), String("b"))
	assert.Equal(t, `[0,"a","b",1,2,3]`, arr.String())

	removed := arr.RemoveRange(2, 3)
	assert.Equal(t, `[0,"a",3]`, arr.String())
	require.Len(t, removed, 3)
	assert.Equal(t, `"b"`, removed[0].String())

	arr.InsertAt(3, Null())
	assert.Equal(t, `[0,"a",3,null]`, arr.String())
}

func TestObjectFields(t *testing.T) {
	obj := Object()
	obj.Put("b", Bool(true))
	obj.Put("a", nil)

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	assert.True(t, obj.Has("a"))

	old, ok := obj.Delete("b")
	require.True(t, ok)
	v, _ := old.AsBool()
	assert.True(t, v)
	assert.False(t, obj.Has("b"))

	_, ok = obj.Delete("missing")
	assert.False(t, ok)
}

func TestFromValue(t *testing.T) {
	n, err := FromValue(map[string]any{
		"name":  "row",
		"count": 3,
		"tags":  []any{"x", 1.5, nil, true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"name":"row","tags":["x",1.5,null,true]}`, n.String())

	_, err = FromValue(struct{}{})
	assert.Error(t, err)
}

func TestContainerDefault(t *testing.T) {
	assert.Equal(t, `{"children":[]}`, Container().String())
}
