package common

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// ReplicaID identifies one replica of a document. It is generated once per
// store instance and stamped on every event that replica originates.
type ReplicaID uuid.UUID

// NilReplicaID is the zero value for ReplicaID.
var NilReplicaID ReplicaID

// NewReplicaID creates a new ReplicaID using UUID v7.
// It panics if the UUID cannot be created.
func NewReplicaID() ReplicaID {
	const retry = 3

	var lastErr error
	var id uuid.UUID
	for i := 0; i < retry; i++ {
		id, lastErr = uuid.NewV7()
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		panic(lastErr)
	}

	return ReplicaID(id)
}

// ParseReplicaID parses the canonical string form of a ReplicaID.
func ParseReplicaID(s string) (ReplicaID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilReplicaID, fmt.Errorf("invalid replica id %q: %w", s, err)
	}
	return ReplicaID(u), nil
}

// String returns the string representation of the ReplicaID.
func (r ReplicaID) String() string {
	return uuid.UUID(r).String()
}

// IsNil reports whether r is the zero id.
func (r ReplicaID) IsNil() bool {
	return r == NilReplicaID
}

// MarshalJSON encodes the id as a UUID string, or null for the zero id.
func (r ReplicaID) MarshalJSON() ([]byte, error) {
	if r.IsNil() {
		return []byte("null"), nil
	}
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *ReplicaID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NilReplicaID
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid replica id: %s", data)
	}
	id, err := ParseReplicaID(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*r = id
	return nil
}
