// Package wire defines the command and response messages exchanged with the query
// handler, their validation rules and their binary encoding.
package wire

import (
	"fmt"
	"time"
)

// Opcode tags the payload of a Command
type Opcode uint8

const (
	OpTxBegin Opcode = iota + 1
	OpTxCommit
	OpTxAbort
	OpAddNode
	OpAddEdge
	OpQueryNode
)

func (op Opcode) String() string {
	switch op {
	case OpTxBegin:
		return "TxBegin"
	case OpTxCommit:
		return "TxCommit"
	case OpTxAbort:
		return "TxAbort"
	case OpAddNode:
		return "AddNode"
	case OpAddEdge:
		return "AddEdge"
	case OpQueryNode:
		return "QueryNode"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// ValueType is the tag of a typed wire value. The zero tag is invalid.
type ValueType uint8

const (
	ValueUnset ValueType = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueTime
	ValueBlob
)

func (t ValueType) String() string {
	switch t {
	case ValueUnset:
		return "unset"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueTime:
		return "time"
	case ValueBlob:
		return "blob"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Value is a typed property value; only the field selected by Type is meaningful
type Value struct {
	Type   ValueType
	Bool   bool
	Int    int64
	Float  float64
	String string
	Time   time.Time
	Blob   []byte
}

func BoolValue(b bool) Value      { return Value{Type: ValueBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Type: ValueInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Type: ValueFloat, Float: f} }
func StringValue(s string) Value  { return Value{Type: ValueString, String: s} }
func TimeValue(t time.Time) Value { return Value{Type: ValueTime, Time: t} }
func BlobValue(b []byte) Value    { return Value{Type: ValueBlob, Blob: b} }

// Ptr returns a pointer to a copy of v, for predicate operands
func (v Value) Ptr() *Value { return &v }

// Any returns the Go value selected by Type
func (v Value) Any() any {
	switch v.Type {
	case ValueBool:
		return v.Bool
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.String
	case ValueTime:
		return v.Time
	case ValueBlob:
		return v.Blob
	default:
		return nil
	}
}

// Property is a (key, typed value) pair
type Property struct {
	Key   string `validate:"required,max=256"`
	Value Value
}

// PredicateOp is the comparison operator of a PropertyPredicate
type PredicateOp uint8

const (
	PredExists PredicateOp = iota
	PredAbsent
	PredEq
	PredNe
	PredLt
	PredLe
	PredGt
	PredGe
	PredGeLe
	PredGeLt
	PredGtLe
	PredGtLt
)

// PropertyPredicate filters on one property. V2 is only used by range operators.
type PropertyPredicate struct {
	Key string `validate:"required,max=256"`
	Op  PredicateOp
	V1  *Value
	V2  *Value
}

// Direction of a neighbor expansion
type Direction uint8

const (
	DirOutgoing Direction = iota
	DirIncoming
	DirAny
)

// Link asks for the neighbors of the start set instead of the start set itself
type Link struct {
	Direction  Direction `validate:"lte=2"`
	EdgeLabel  string    `validate:"max=256"`
	Label      string    `validate:"max=256"`
	Predicates []PropertyPredicate `validate:"dive"`
	Or         bool
}

// Aggregate computed over the first projected property key
type Aggregate uint8

const (
	AggNone Aggregate = iota
	AggSum
	AggAverage
)

// ResultSpec controls how matches are turned into records.
// A nil Limit means unlimited; a zero Limit reports counts only.
type ResultSpec struct {
	PropertyKeys []string `validate:"dive,required"`
	Limit        *int     `validate:"omitempty,gte=0"`
	Unique       bool
	SortKey      string
	Aggregate    Aggregate `validate:"lte=2"`
}

// Limit returns a pointer suitable for ResultSpec.Limit
func Limit(n int) *int {
	return &n
}

// AddNode creates a node with one label
type AddNode struct {
	Label      string     `validate:"max=256"`
	Properties []Property `validate:"dive"`
}

// AddEdge connects every node of the Src reference to every node of the Dst reference
type AddEdge struct {
	Src        int        `validate:"gt=0"`
	Dst        int        `validate:"gt=0"`
	Label      string     `validate:"required,max=256"`
	Properties []Property `validate:"dive"`
}

// QueryNode selects nodes either by scan (Label, Predicates) or from an earlier
// command's result (SourceRef), optionally expanding to neighbors (Link).
type QueryNode struct {
	SourceRef  int                 `validate:"gte=0"`
	Label      string              `validate:"max=256"`
	Predicates []PropertyPredicate `validate:"dive"`
	Or         bool
	Link       *Link `validate:"omitempty"`
	Result     ResultSpec
}

// Command is one tagged operation of a batch.
// RefID registers the command's result for later commands; 0 means none.
type Command struct {
	Op        Opcode `validate:"gte=1,lte=6"`
	GroupID   int    `validate:"gte=0"`
	RefID     int    `validate:"gte=0"`
	AddNode   *AddNode
	AddEdge   *AddEdge
	QueryNode *QueryNode
}

// Batch is the ordered command list of one transaction
type Batch struct {
	NumGroups int        `validate:"gte=0"`
	Commands  []*Command `validate:"dive,required"`
}

// Status of a command or group
type Status uint8

const (
	StatusSuccess Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "error"
}

// ErrorCode classifies a failed command
type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	CodeNullIterator
	CodePropertyType
	CodeInvalidReference
	CodeMalformedCommand
	CodeStore
	CodeAborted
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "None"
	case CodeNullIterator:
		return "NullIterator"
	case CodePropertyType:
		return "PropertyType"
	case CodeInvalidReference:
		return "InvalidReference"
	case CodeMalformedCommand:
		return "MalformedCommand"
	case CodeStore:
		return "Store"
	case CodeAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Record is one projected node
type Record struct {
	ID         uint64
	Properties []Property
}

// Get returns the value of key, if projected
func (r Record) Get(key string) (Value, bool) {
	for _, p := range r.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// CommandResponse is the outcome of one command
type CommandResponse struct {
	Op        Opcode
	GroupID   int
	Status    Status
	ErrorCode ErrorCode
	Error     string
	Matched   int64
	Returned  int64
	Records   []Record
	Aggregate *Value
	Created   []uint64 // IDs of nodes or edges created by the command
}

// GroupResponse merges the responses of every command in one group
type GroupResponse struct {
	GroupID   int
	Status    Status
	ErrorCode ErrorCode
	Error     string
	Matched   int64
	Returned  int64
	Records   []Record
	Aggregate *Value
	Commands  []*CommandResponse
}

// ResponseBatch is the grouped result of one transaction, ordered by group id
type ResponseBatch struct {
	TxID   string
	Groups []*GroupResponse
}
