package wire

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages are encoded in the protobuf binary format so that clients can use
// generated code from the equivalent .proto schema. Field numbers:
//
//	Batch            1 num_groups  2 commands
//	Command          1 op  2 group  3 ref  4 add_node  5 add_edge  6 query_node
//	Value            1 type  2 bool  3 int(sint64)  4 float(fixed64)  5 string  6 time(sint64 ns)  7 blob
//	Property         1 key  2 value
//	AddNode          1 label  2 properties
//	AddEdge          1 src  2 dst  3 label  4 properties
//	Predicate        1 key  2 op  3 v1  4 v2
//	Link             1 direction  2 edge_label  3 label  4 predicates  5 or
//	ResultSpec       1 property_keys  2 limit  3 unique  4 sort_key  5 aggregate  6 has_limit
//	QueryNode        1 source_ref  2 label  3 predicates  4 or  5 link  6 result
//	Record           1 id  2 properties
//	CommandResponse  1 op  2 group  3 status  4 error_code  5 error  6 matched  7 returned
//	                 8 records  9 aggregate  10 created
//	GroupResponse    1 group  2 status  3 error_code  4 error  5 matched  6 returned
//	                 7 records  8 aggregate  9 commands
//	ResponseBatch    1 tx_id  2 groups

// MarshalBatch encodes a command batch
func MarshalBatch(b *Batch) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(b.NumGroups))
	for _, cmd := range b.Commands {
		out = appendMessage(out, 2, marshalCommand(cmd))
	}
	return out
}

// UnmarshalBatch decodes a command batch. It does not validate it.
func UnmarshalBatch(data []byte) (*Batch, error) {
	b := &Batch{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, data, &b.NumGroups)
		case 2:
			msg, n, err := consumeMessage(typ, data)
			if err != nil {
				return 0, err
			}
			cmd, err := unmarshalCommand(msg)
			if err != nil {
				return 0, err
			}
			b.Commands = append(b.Commands, cmd)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalResponseBatch encodes a grouped response
func MarshalResponseBatch(r *ResponseBatch) []byte {
	var out []byte
	out = appendString(out, 1, r.TxID)
	for _, g := range r.Groups {
		out = appendMessage(out, 2, marshalGroup(g))
	}
	return out
}

// UnmarshalResponseBatch decodes a grouped response
func UnmarshalResponseBatch(data []byte) (*ResponseBatch, error) {
	r := &ResponseBatch{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &r.TxID)
		case 2:
			msg, n, err := consumeMessage(typ, data)
			if err != nil {
				return 0, err
			}
			g, err := unmarshalGroup(msg)
			if err != nil {
				return 0, err
			}
			r.Groups = append(r.Groups, g)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func marshalCommand(c *Command) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(c.Op))
	out = appendUint(out, 2, uint64(c.GroupID))
	out = appendUint(out, 3, uint64(c.RefID))
	if c.AddNode != nil {
		out = appendMessage(out, 4, marshalAddNode(c.AddNode))
	}
	if c.AddEdge != nil {
		out = appendMessage(out, 5, marshalAddEdge(c.AddEdge))
	}
	if c.QueryNode != nil {
		out = appendMessage(out, 6, marshalQueryNode(c.QueryNode))
	}
	return out
}

func unmarshalCommand(data []byte) (*Command, error) {
	c := &Command{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint8(typ, data, (*uint8)(&c.Op))
		case 2:
			return consumeInt(typ, data, &c.GroupID)
		case 3:
			return consumeInt(typ, data, &c.RefID)
		case 4:
			return consumeSub(typ, data, func(msg []byte) (err error) {
				c.AddNode, err = unmarshalAddNode(msg)
				return err
			})
		case 5:
			return consumeSub(typ, data, func(msg []byte) (err error) {
				c.AddEdge, err = unmarshalAddEdge(msg)
				return err
			})
		case 6:
			return consumeSub(typ, data, func(msg []byte) (err error) {
				c.QueryNode, err = unmarshalQueryNode(msg)
				return err
			})
		}
		return 0, nil
	})
	return c, err
}

func marshalValue(v Value) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(v.Type))
	switch v.Type {
	case ValueBool:
		if v.Bool {
			out = appendUint(out, 2, 1)
		}
	case ValueInt:
		out = appendSint(out, 3, v.Int)
	case ValueFloat:
		out = protowire.AppendTag(out, 4, protowire.Fixed64Type)
		out = protowire.AppendFixed64(out, math.Float64bits(v.Float))
	case ValueString:
		out = appendString(out, 5, v.String)
	case ValueTime:
		out = appendSint(out, 6, v.Time.UnixNano())
	case ValueBlob:
		out = protowire.AppendTag(out, 7, protowire.BytesType)
		out = protowire.AppendBytes(out, v.Blob)
	}
	return out
}

func unmarshalValue(data []byte) (Value, error) {
	var v Value
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint8(typ, data, (*uint8)(&v.Type))
		case 2:
			var x uint64
			n, err := consumeUint(typ, data, &x)
			v.Bool = protowire.DecodeBool(x)
			return n, err
		case 3:
			return consumeSint(typ, data, &v.Int)
		case 4:
			if typ != protowire.Fixed64Type {
				return 0, wireTypeError(num, typ)
			}
			bits, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return 0, parseError(n)
			}
			v.Float = math.Float64frombits(bits)
			return n, nil
		case 5:
			return consumeString(typ, data, &v.String)
		case 6:
			var ns int64
			n, err := consumeSint(typ, data, &ns)
			v.Time = time.Unix(0, ns)
			return n, err
		case 7:
			msg, n, err := consumeMessage(typ, data)
			v.Blob = append([]byte(nil), msg...)
			return n, err
		}
		return 0, nil
	})
	if v.Type == ValueTime && v.Time.IsZero() {
		v.Time = time.Unix(0, 0)
	}
	return v, err
}

func marshalProperties(out []byte, num protowire.Number, props []Property) []byte {
	for _, p := range props {
		var inner []byte
		inner = appendString(inner, 1, p.Key)
		inner = appendMessage(inner, 2, marshalValue(p.Value))
		out = appendMessage(out, num, inner)
	}
	return out
}

func consumeProperty(typ protowire.Type, data []byte, dst *[]Property) (int, error) {
	return consumeSub(typ, data, func(msg []byte) error {
		var p Property
		err := decodeFields(msg, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
			switch num {
			case 1:
				return consumeString(typ, data, &p.Key)
			case 2:
				return consumeSub(typ, data, func(msg []byte) (err error) {
					p.Value, err = unmarshalValue(msg)
					return err
				})
			}
			return 0, nil
		})
		*dst = append(*dst, p)
		return err
	})
}

func marshalAddNode(a *AddNode) []byte {
	var out []byte
	out = appendString(out, 1, a.Label)
	return marshalProperties(out, 2, a.Properties)
}

func unmarshalAddNode(data []byte) (*AddNode, error) {
	a := &AddNode{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &a.Label)
		case 2:
			return consumeProperty(typ, data, &a.Properties)
		}
		return 0, nil
	})
	return a, err
}

func marshalAddEdge(a *AddEdge) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(a.Src))
	out = appendUint(out, 2, uint64(a.Dst))
	out = appendString(out, 3, a.Label)
	return marshalProperties(out, 4, a.Properties)
}

func unmarshalAddEdge(data []byte) (*AddEdge, error) {
	a := &AddEdge{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, data, &a.Src)
		case 2:
			return consumeInt(typ, data, &a.Dst)
		case 3:
			return consumeString(typ, data, &a.Label)
		case 4:
			return consumeProperty(typ, data, &a.Properties)
		}
		return 0, nil
	})
	return a, err
}

func marshalPredicates(out []byte, num protowire.Number, preds []PropertyPredicate) []byte {
	for _, p := range preds {
		var inner []byte
		inner = appendString(inner, 1, p.Key)
		inner = appendUint(inner, 2, uint64(p.Op))
		if p.V1 != nil {
			inner = appendMessage(inner, 3, marshalValue(*p.V1))
		}
		if p.V2 != nil {
			inner = appendMessage(inner, 4, marshalValue(*p.V2))
		}
		out = appendMessage(out, num, inner)
	}
	return out
}

func consumePredicate(typ protowire.Type, data []byte, dst *[]PropertyPredicate) (int, error) {
	return consumeSub(typ, data, func(msg []byte) error {
		var p PropertyPredicate
		err := decodeFields(msg, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
			switch num {
			case 1:
				return consumeString(typ, data, &p.Key)
			case 2:
				return consumeUint8(typ, data, (*uint8)(&p.Op))
			case 3, 4:
				return consumeSub(typ, data, func(msg []byte) error {
					v, err := unmarshalValue(msg)
					if num == 3 {
						p.V1 = &v
					} else {
						p.V2 = &v
					}
					return err
				})
			}
			return 0, nil
		})
		*dst = append(*dst, p)
		return err
	})
}

func marshalQueryNode(q *QueryNode) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(q.SourceRef))
	out = appendString(out, 2, q.Label)
	out = marshalPredicates(out, 3, q.Predicates)
	out = appendBool(out, 4, q.Or)
	if q.Link != nil {
		var link []byte
		link = appendUint(link, 1, uint64(q.Link.Direction))
		link = appendString(link, 2, q.Link.EdgeLabel)
		link = appendString(link, 3, q.Link.Label)
		link = marshalPredicates(link, 4, q.Link.Predicates)
		link = appendBool(link, 5, q.Link.Or)
		out = appendMessage(out, 5, link)
	}

	var rs []byte
	for _, key := range q.Result.PropertyKeys {
		rs = protowire.AppendTag(rs, 1, protowire.BytesType)
		rs = protowire.AppendString(rs, key)
	}
	if q.Result.Limit != nil {
		rs = appendUint(rs, 2, uint64(*q.Result.Limit))
		rs = appendBool(rs, 6, true)
	}
	rs = appendBool(rs, 3, q.Result.Unique)
	rs = appendString(rs, 4, q.Result.SortKey)
	rs = appendUint(rs, 5, uint64(q.Result.Aggregate))
	return appendMessage(out, 6, rs)
}

func unmarshalQueryNode(data []byte) (*QueryNode, error) {
	q := &QueryNode{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, data, &q.SourceRef)
		case 2:
			return consumeString(typ, data, &q.Label)
		case 3:
			return consumePredicate(typ, data, &q.Predicates)
		case 4:
			return consumeBool(typ, data, &q.Or)
		case 5:
			return consumeSub(typ, data, func(msg []byte) error {
				q.Link = &Link{}
				return decodeFields(msg, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
					switch num {
					case 1:
						return consumeUint8(typ, data, (*uint8)(&q.Link.Direction))
					case 2:
						return consumeString(typ, data, &q.Link.EdgeLabel)
					case 3:
						return consumeString(typ, data, &q.Link.Label)
					case 4:
						return consumePredicate(typ, data, &q.Link.Predicates)
					case 5:
						return consumeBool(typ, data, &q.Link.Or)
					}
					return 0, nil
				})
			})
		case 6:
			return consumeSub(typ, data, func(msg []byte) error {
				return unmarshalResultSpec(msg, &q.Result)
			})
		}
		return 0, nil
	})
	return q, err
}

func unmarshalResultSpec(data []byte, rs *ResultSpec) error {
	var limit int
	var hasLimit bool
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			var key string
			n, err := consumeString(typ, data, &key)
			rs.PropertyKeys = append(rs.PropertyKeys, key)
			return n, err
		case 2:
			return consumeInt(typ, data, &limit)
		case 3:
			return consumeBool(typ, data, &rs.Unique)
		case 4:
			return consumeString(typ, data, &rs.SortKey)
		case 5:
			return consumeUint8(typ, data, (*uint8)(&rs.Aggregate))
		case 6:
			return consumeBool(typ, data, &hasLimit)
		}
		return 0, nil
	})
	if hasLimit {
		rs.Limit = Limit(limit)
	}
	return err
}

func marshalRecords(out []byte, num protowire.Number, records []Record) []byte {
	for _, r := range records {
		var inner []byte
		inner = appendUint(inner, 1, r.ID)
		inner = marshalProperties(inner, 2, r.Properties)
		out = appendMessage(out, num, inner)
	}
	return out
}

func consumeRecord(typ protowire.Type, data []byte, dst *[]Record) (int, error) {
	return consumeSub(typ, data, func(msg []byte) error {
		var r Record
		err := decodeFields(msg, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
			switch num {
			case 1:
				return consumeUint(typ, data, &r.ID)
			case 2:
				return consumeProperty(typ, data, &r.Properties)
			}
			return 0, nil
		})
		*dst = append(*dst, r)
		return err
	})
}

func marshalCommandResponse(c *CommandResponse) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(c.Op))
	out = appendUint(out, 2, uint64(c.GroupID))
	out = appendUint(out, 3, uint64(c.Status))
	out = appendUint(out, 4, uint64(c.ErrorCode))
	out = appendString(out, 5, c.Error)
	out = appendUint(out, 6, uint64(c.Matched))
	out = appendUint(out, 7, uint64(c.Returned))
	out = marshalRecords(out, 8, c.Records)
	if c.Aggregate != nil {
		out = appendMessage(out, 9, marshalValue(*c.Aggregate))
	}
	for _, id := range c.Created {
		out = protowire.AppendTag(out, 10, protowire.VarintType)
		out = protowire.AppendVarint(out, id)
	}
	return out
}

func unmarshalCommandResponse(data []byte) (*CommandResponse, error) {
	c := &CommandResponse{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint8(typ, data, (*uint8)(&c.Op))
		case 2:
			return consumeInt(typ, data, &c.GroupID)
		case 3:
			return consumeUint8(typ, data, (*uint8)(&c.Status))
		case 4:
			return consumeUint8(typ, data, (*uint8)(&c.ErrorCode))
		case 5:
			return consumeString(typ, data, &c.Error)
		case 6:
			return consumeInt64(typ, data, &c.Matched)
		case 7:
			return consumeInt64(typ, data, &c.Returned)
		case 8:
			return consumeRecord(typ, data, &c.Records)
		case 9:
			return consumeSub(typ, data, func(msg []byte) error {
				v, err := unmarshalValue(msg)
				c.Aggregate = &v
				return err
			})
		case 10:
			var id uint64
			n, err := consumeUint(typ, data, &id)
			c.Created = append(c.Created, id)
			return n, err
		}
		return 0, nil
	})
	return c, err
}

func marshalGroup(g *GroupResponse) []byte {
	var out []byte
	out = appendUint(out, 1, uint64(g.GroupID))
	out = appendUint(out, 2, uint64(g.Status))
	out = appendUint(out, 3, uint64(g.ErrorCode))
	out = appendString(out, 4, g.Error)
	out = appendUint(out, 5, uint64(g.Matched))
	out = appendUint(out, 6, uint64(g.Returned))
	out = marshalRecords(out, 7, g.Records)
	if g.Aggregate != nil {
		out = appendMessage(out, 8, marshalValue(*g.Aggregate))
	}
	for _, c := range g.Commands {
		out = appendMessage(out, 9, marshalCommandResponse(c))
	}
	return out
}

func unmarshalGroup(data []byte) (*GroupResponse, error) {
	g := &GroupResponse{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, data, &g.GroupID)
		case 2:
			return consumeUint8(typ, data, (*uint8)(&g.Status))
		case 3:
			return consumeUint8(typ, data, (*uint8)(&g.ErrorCode))
		case 4:
			return consumeString(typ, data, &g.Error)
		case 5:
			return consumeInt64(typ, data, &g.Matched)
		case 6:
			return consumeInt64(typ, data, &g.Returned)
		case 7:
			return consumeRecord(typ, data, &g.Records)
		case 8:
			return consumeSub(typ, data, func(msg []byte) error {
				v, err := unmarshalValue(msg)
				g.Aggregate = &v
				return err
			})
		case 9:
			return consumeSub(typ, data, func(msg []byte) error {
				c, err := unmarshalCommandResponse(msg)
				g.Commands = append(g.Commands, c)
				return err
			})
		}
		return 0, nil
	})
	return g, err
}

// Encoding helpers. Zero scalars are omitted, as proto3 does.

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendUint(b, num, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// Decoding helpers. A field callback returns the number of bytes it consumed,
// or 0 to have the field skipped as unknown.

type fieldFunc func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

func decodeFields(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return parseError(n)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, data)
		}
		if m < 0 {
			return parseError(m)
		}
		data = data[m:]
	}
	return nil
}

func parseError(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: field %d has unexpected wire type %d", ErrMalformed, num, typ)
}

func consumeUint(typ protowire.Type, data []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: expected varint, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, parseError(n)
	}
	*dst = v
	return n, nil
}

func consumeUint8(typ protowire.Type, data []byte, dst *uint8) (int, error) {
	var v uint64
	n, err := consumeUint(typ, data, &v)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint8 {
		return 0, fmt.Errorf("%w: enum value %d out of range", ErrMalformed, v)
	}
	*dst = uint8(v)
	return n, nil
}

func consumeInt(typ protowire.Type, data []byte, dst *int) (int, error) {
	var v uint64
	n, err := consumeUint(typ, data, &v)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: integer %d out of range", ErrMalformed, v)
	}
	*dst = int(v)
	return n, nil
}

func consumeInt64(typ protowire.Type, data []byte, dst *int64) (int, error) {
	var v uint64
	n, err := consumeUint(typ, data, &v)
	*dst = int64(v)
	return n, err
}

func consumeSint(typ protowire.Type, data []byte, dst *int64) (int, error) {
	var v uint64
	n, err := consumeUint(typ, data, &v)
	*dst = protowire.DecodeZigZag(v)
	return n, err
}

func consumeBool(typ protowire.Type, data []byte, dst *bool) (int, error) {
	var v uint64
	n, err := consumeUint(typ, data, &v)
	*dst = protowire.DecodeBool(v)
	return n, err
}

func consumeString(typ protowire.Type, data []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("%w: expected length-delimited field, got wire type %d", ErrMalformed, typ)
	}
	s, n := protowire.ConsumeString(data)
	if n < 0 {
		return 0, parseError(n)
	}
	*dst = s
	return n, nil
}

func consumeMessage(typ protowire.Type, data []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: expected length-delimited field, got wire type %d", ErrMalformed, typ)
	}
	msg, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, parseError(n)
	}
	return msg, n, nil
}

func consumeSub(typ protowire.Type, data []byte, fn func(msg []byte) error) (int, error) {
	msg, n, err := consumeMessage(typ, data)
	if err != nil {
		return 0, err
	}
	if err := fn(msg); err != nil {
		return 0, err
	}
	return n, nil
}
