package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplicaID(t *testing.T) {
	id1 := NewReplicaID()
	id2 := NewReplicaID()

	assert.False(t, id1.IsNil())
	assert.NotEqual(t, id1, id2)
	assert.True(t, NilReplicaID.IsNil())

	parsed, err := ParseReplicaID(id1.String())
	require.NoError(t, err)
	assert.Equal(t, id1, parsed)

	_, err = ParseReplicaID("not-a-uuid")
	assert.Error(t, err)
}

func TestReplicaIDJSON(t *testing.T) {
	id := NewReplicaID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ReplicaID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	// the zero id travels as null
	data, err = json.Marshal(NilReplicaID)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	decoded = id
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsNil())

	assert.Error(t, json.Unmarshal([]byte("42"), &decoded))
}

func TestErrorTypes(t *testing.T) {
	var err error = ErrIndexOutOfRange{Path: "/children/0", Row: 3, Count: 1, Len: 2}

	var rangeErr ErrIndexOutOfRange
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 3, rangeErr.Row)
	assert.Contains(t, err.Error(), "/children/0")

	cause := errors.New("unexpected EOF")
	err = ErrDeserialization{Cause: cause}
	assert.ErrorIs(t, err, cause)

	assert.Contains(t, ErrMalformedEvent{Type: "move", Message: "missing src_row"}.Error(), "malformed move event")
	assert.Contains(t, ErrMalformedEvent{Message: "no redo"}.Error(), "malformed event: no redo")
	assert.Contains(t, ErrPathNotFound{Path: "/a"}.Error(), `"/a"`)
	assert.Contains(t, ErrPathNotFound{Path: "/a", Reason: "scalar"}.Error(), "scalar")
}
