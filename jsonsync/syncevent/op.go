package syncevent

import (
	"encoding/json"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/tree"
)

// OpType is the value of the "type" field of an op.
type OpType string

const (
	OpInsert     OpType = "insert"
	OpInsertRows OpType = "insert_rows"
	OpRemove     OpType = "remove"
	OpRemoveRows OpType = "remove_rows"
	OpSet        OpType = "set"
	OpMove       OpType = "move"
	OpReset      OpType = "reset"
)

// Op is one direction of an event: a single mutation with its parameters.
type Op interface {
	// Type selects the handler for the op.
	Type() OpType
	// Source returns the id of the replica the op is attributed to.
	Source() common.ReplicaID
	// WithSource returns a copy of the op attributed to id.
	WithSource(id common.ReplicaID) Op
}

// Insert upserts Parent[Key] = Data.
type Insert struct {
	ID     common.ReplicaID `json:"id"`
	Parent tree.Path        `json:"parent"`
	Key    string           `json:"key"`
	Data   *tree.Node       `json:"data"`
}

func (o *Insert) Type() OpType              { return OpInsert }
func (o *Insert) Source() common.ReplicaID { return o.ID }

func (o *Insert) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *Insert) MarshalJSON() ([]byte, error) {
	type alias Insert
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpInsert, (*alias)(o)})
}

// InsertRows splices Count rows into Parent.children at Row. An empty Data
// means Count empty objects.
type InsertRows struct {
	ID     common.ReplicaID `json:"id"`
	Parent tree.Path        `json:"parent"`
	Row    int              `json:"row"`
	Count  int              `json:"count"`
	Data   []*tree.Node     `json:"data"`
}

func (o *InsertRows) Type() OpType              { return OpInsertRows }
func (o *InsertRows) Source() common.ReplicaID { return o.ID }

func (o *InsertRows) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *InsertRows) MarshalJSON() ([]byte, error) {
	type alias InsertRows
	c := *o
	if c.Data == nil {
		c.Data = []*tree.Node{}
	}
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpInsertRows, (*alias)(&c)})
}

// Remove deletes Parent[Key].
type Remove struct {
	ID     common.ReplicaID `json:"id"`
	Parent tree.Path        `json:"parent"`
	Key    string           `json:"key"`
}

func (o *Remove) Type() OpType              { return OpRemove }
func (o *Remove) Source() common.ReplicaID { return o.ID }

func (o *Remove) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *Remove) MarshalJSON() ([]byte, error) {
	type alias Remove
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpRemove, (*alias)(o)})
}

// RemoveRows deletes Count rows of Parent.children starting at Row.
type RemoveRows struct {
	ID     common.ReplicaID `json:"id"`
	Parent tree.Path        `json:"parent"`
	Row    int              `json:"row"`
	Count  int              `json:"count"`
}

func (o *RemoveRows) Type() OpType              { return OpRemoveRows }
func (o *RemoveRows) Source() common.ReplicaID { return o.ID }

func (o *RemoveRows) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *RemoveRows) MarshalJSON() ([]byte, error) {
	type alias RemoveRows
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpRemoveRows, (*alias)(o)})
}

// Set overwrites, for every field of Data, the same field of row Row of
// Parent.children.
type Set struct {
	ID     common.ReplicaID `json:"id"`
	Parent tree.Path        `json:"parent"`
	Row    int              `json:"row"`
	Data   *tree.Node       `json:"data"`
}

func (o *Set) Type() OpType              { return OpSet }
func (o *Set) Source() common.ReplicaID { return o.ID }

func (o *Set) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *Set) MarshalJSON() ([]byte, error) {
	type alias Set
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpSet, (*alias)(o)})
}

// Move cuts Count rows out of SrcParent.children at SrcRow and inserts them
// into DstParent.children at DstRow, both resolved after the cut.
type Move struct {
	ID        common.ReplicaID `json:"id"`
	SrcParent tree.Path        `json:"src_parent"`
	SrcRow    int              `json:"src_row"`
	Count     int              `json:"count"`
	DstParent tree.Path        `json:"dst_parent"`
	DstRow    int              `json:"dst_row"`
}

func (o *Move) Type() OpType              { return OpMove }
func (o *Move) Source() common.ReplicaID { return o.ID }

func (o *Move) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *Move) MarshalJSON() ([]byte, error) {
	type alias Move
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpMove, (*alias)(o)})
}

// Reset replaces the whole document with Data.
type Reset struct {
	ID   common.ReplicaID `json:"id"`
	Data *tree.Node       `json:"data"`
}

func (o *Reset) Type() OpType              { return OpReset }
func (o *Reset) Source() common.ReplicaID { return o.ID }

func (o *Reset) WithSource(id common.ReplicaID) Op {
	c := *o
	c.ID = id
	return &c
}

func (o *Reset) MarshalJSON() ([]byte, error) {
	type alias Reset
	return json.Marshal(struct {
		Type OpType `json:"type"`
		*alias
	}{OpReset, (*alias)(o)})
}
