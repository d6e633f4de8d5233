package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// ValueType represents the type of a property value
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeBytes
	TypeTimestamp
)

// String returns the name of the value type
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Value represents a typed property value
type Value struct {
	Type ValueType
	Data []byte
}

// ErrValueType is returned when a value is read as the wrong type
var ErrValueType = errors.New("value has a different type")

func word(t ValueType, u uint64) Value {
	return Value{Type: t, Data: binary.LittleEndian.AppendUint64(make([]byte, 0, 8), u)}
}

func StringValue(s string) Value { return Value{Type: TypeString, Data: []byte(s)} }
func IntValue(i int64) Value     { return word(TypeInt, uint64(i)) }
func FloatValue(f float64) Value { return word(TypeFloat, math.Float64bits(f)) }
func BytesValue(b []byte) Value  { return Value{Type: TypeBytes, Data: b} }

func BoolValue(b bool) Value {
	if b {
		return Value{Type: TypeBool, Data: []byte{1}}
	}
	return Value{Type: TypeBool, Data: []byte{0}}
}

// TimestampValue keeps nanosecond precision so timestamps round-trip through the wire codec.
func TimestampValue(t time.Time) Value { return word(TypeTimestamp, uint64(t.UnixNano())) }

// unword returns the 8-byte payload of a value of type t
func (v Value) unword(t ValueType) (uint64, error) {
	if v.Type != t || len(v.Data) != 8 {
		return 0, fmt.Errorf("%w: %s is not %s", ErrValueType, v.Type, t)
	}
	return binary.LittleEndian.Uint64(v.Data), nil
}

func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("%w: %s is not string", ErrValueType, v.Type)
	}
	return string(v.Data), nil
}

func (v Value) AsInt() (int64, error) {
	u, err := v.unword(TypeInt)
	return int64(u), err
}

func (v Value) AsFloat() (float64, error) {
	u, err := v.unword(TypeFloat)
	return math.Float64frombits(u), err
}

func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool || len(v.Data) != 1 {
		return false, fmt.Errorf("%w: %s is not bool", ErrValueType, v.Type)
	}
	return v.Data[0] == 1, nil
}

func (v Value) AsBytes() ([]byte, error) {
	if v.Type != TypeBytes {
		return nil, fmt.Errorf("%w: %s is not bytes", ErrValueType, v.Type)
	}
	return v.Data, nil
}

func (v Value) AsTimestamp() (time.Time, error) {
	u, err := v.unword(TypeTimestamp)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(u)), nil
}

// AsNumber returns int and float values as float64.
func (v Value) AsNumber() (float64, bool) {
	switch v.Type {
	case TypeInt:
		i, err := v.AsInt()
		return float64(i), err == nil
	case TypeFloat:
		f, err := v.AsFloat()
		return f, err == nil
	default:
		return 0, false
	}
}

// Equal reports whether two values have the same type and contents
func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && bytes.Equal(v.Data, other.Data)
}

// String renders the value for logs and error messages
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return string(v.Data)
	case TypeInt:
		i, _ := v.AsInt()
		return fmt.Sprintf("%d", i)
	case TypeFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	case TypeBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("%t", b)
	case TypeTimestamp:
		ts, _ := v.AsTimestamp()
		return ts.UTC().Format(time.RFC3339Nano)
	case TypeBytes:
		return fmt.Sprintf("bytes[%d]", len(v.Data))
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// CompareValues orders two values. It returns -1, 0 or 1 and ok=true when the values are
// comparable: same type, or int against float. Bool orders false before true.
func CompareValues(a, b Value) (int, bool) {
	if a.Type != b.Type {
		x, okA := a.AsNumber()
		y, okB := b.AsNumber()
		if !okA || !okB || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return compareOrdered(x, y), true
	}

	switch a.Type {
	case TypeInt:
		x, errA := a.AsInt()
		y, errB := b.AsInt()
		if errA != nil || errB != nil {
			return 0, false
		}
		return compareOrdered(x, y), true
	case TypeFloat:
		x, errA := a.AsFloat()
		y, errB := b.AsFloat()
		if errA != nil || errB != nil || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return compareOrdered(x, y), true
	case TypeTimestamp:
		x, errA := a.AsTimestamp()
		y, errB := b.AsTimestamp()
		if errA != nil || errB != nil {
			return 0, false
		}
		return x.Compare(y), true
	case TypeBool:
		x, errA := a.AsBool()
		y, errB := b.AsBool()
		if errA != nil || errB != nil {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case TypeString, TypeBytes:
		return bytes.Compare(a.Data, b.Data), true
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Node represents a vertex in the graph
type Node struct {
	ID         uint64
	Labels     []string
	Properties map[string]Value
	CreatedAt  int64
	UpdatedAt  int64
}

// Edge represents a relationship between nodes
type Edge struct {
	ID         uint64
	FromNodeID uint64
	ToNodeID   uint64
	Type       string
	Properties map[string]Value
	CreatedAt  int64
}

// Clone copies the node. Property values share their byte slices, which are
// never mutated in place.
func (n *Node) Clone() *Node {
	c := *n
	c.Labels = slices.Clone(n.Labels)
	c.Properties = cloneProps(n.Properties)
	return &c
}

func (n *Node) HasLabel(label string) bool {
	return slices.Contains(n.Labels, label)
}

func (n *Node) GetProperty(key string) (Value, bool) {
	val, ok := n.Properties[key]
	return val, ok
}

// Clone copies the edge
func (e *Edge) Clone() *Edge {
	c := *e
	c.Properties = cloneProps(e.Properties)
	return &c
}

func (e *Edge) GetProperty(key string) (Value, bool) {
	val, ok := e.Properties[key]
	return val, ok
}

func cloneProps(props map[string]Value) map[string]Value {
	if props == nil {
		return make(map[string]Value)
	}
	return maps.Clone(props)
}

// Other returns the endpoint of the edge that is not nodeID
func (e *Edge) Other(nodeID uint64) uint64 {
	if e.FromNodeID == nodeID {
		return e.ToNodeID
	}
	return e.FromNodeID
}
