package query

import (
	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

var predicateOps = map[wire.PredicateOp]storage.PredicateOp{
	wire.PredExists: storage.OpDontCare,
	wire.PredAbsent: storage.OpAbsent,
	wire.PredEq:     storage.OpEq,
	wire.PredNe:     storage.OpNe,
	wire.PredLt:     storage.OpLt,
	wire.PredLe:     storage.OpLe,
	wire.PredGt:     storage.OpGt,
	wire.PredGe:     storage.OpGe,
	wire.PredGeLe:   storage.OpGeLe,
	wire.PredGeLt:   storage.OpGeLt,
	wire.PredGtLe:   storage.OpGtLe,
	wire.PredGtLt:   storage.OpGtLt,
}

// TranslateValue converts a wire value to a store value
func TranslateValue(v wire.Value) (storage.Value, error) {
	switch v.Type {
	case wire.ValueBool:
		return storage.BoolValue(v.Bool), nil
	case wire.ValueInt:
		return storage.IntValue(v.Int), nil
	case wire.ValueFloat:
		return storage.FloatValue(v.Float), nil
	case wire.ValueString:
		return storage.StringValue(v.String), nil
	case wire.ValueTime:
		return storage.TimestampValue(v.Time), nil
	case wire.ValueBlob:
		return storage.BytesValue(v.Blob), nil
	default:
		return storage.Value{}, &Error{Kind: KindPropertyType, Msg: "unknown value tag " + v.Type.String()}
	}
}

// ExportValue converts a store value back to its wire form
func ExportValue(v storage.Value) (wire.Value, error) {
	var err error
	var out wire.Value
	switch v.Type {
	case storage.TypeBool:
		out.Type = wire.ValueBool
		out.Bool, err = v.AsBool()
	case storage.TypeInt:
		out.Type = wire.ValueInt
		out.Int, err = v.AsInt()
	case storage.TypeFloat:
		out.Type = wire.ValueFloat
		out.Float, err = v.AsFloat()
	case storage.TypeString:
		out.Type = wire.ValueString
		out.String, err = v.AsString()
	case storage.TypeTimestamp:
		out.Type = wire.ValueTime
		out.Time, err = v.AsTimestamp()
	case storage.TypeBytes:
		out.Type = wire.ValueBlob
		out.Blob, err = v.AsBytes()
	default:
		return wire.Value{}, &Error{Kind: KindPropertyType, Msg: "unknown store type " + v.Type.String()}
	}
	if err != nil {
		return wire.Value{}, &Error{Kind: KindPropertyType, Err: err}
	}
	return out, nil
}

// TranslatePredicate converts a wire predicate to a store predicate. The operand
// count must match the operator and both range operands must share a type.
func TranslatePredicate(p wire.PropertyPredicate) (storage.PropertyPredicate, error) {
	op, ok := predicateOps[p.Op]
	if !ok {
		return storage.PropertyPredicate{}, newError(KindPropertyType, "", "unknown predicate operator %d on %q", p.Op, p.Key)
	}
	out := storage.PropertyPredicate{Key: p.Key, Op: op}

	want := op.Operands()
	operands := []*wire.Value{p.V1, p.V2}
	for i := 0; i < want; i++ {
		if operands[i] == nil {
			return storage.PropertyPredicate{}, newError(KindPropertyType, "", "%s on %q needs %d operands", op, p.Key, want)
		}
		v, err := TranslateValue(*operands[i])
		if err != nil {
			return storage.PropertyPredicate{}, err
		}
		if i == 0 {
			out.V1 = v
		} else {
			out.V2 = v
		}
	}
	if want == 2 {
		if _, ok := storage.CompareValues(out.V1, out.V2); !ok {
			return storage.PropertyPredicate{}, newError(KindPropertyType, "", "range bounds on %q have incomparable types %s and %s",
				p.Key, out.V1.Type, out.V2.Type)
		}
	}
	return out, nil
}

// TranslatePredicates converts a predicate list
func TranslatePredicates(preds []wire.PropertyPredicate) ([]storage.PropertyPredicate, error) {
	if len(preds) == 0 {
		return nil, nil
	}
	out := make([]storage.PropertyPredicate, 0, len(preds))
	for _, p := range preds {
		sp, err := TranslatePredicate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// TranslateProperties converts a wire property list into a property map
func TranslateProperties(props []wire.Property) (map[string]storage.Value, error) {
	out := make(map[string]storage.Value, len(props))
	for _, p := range props {
		v, err := TranslateValue(p.Value)
		if err != nil {
			return nil, err
		}
		out[p.Key] = v
	}
	return out, nil
}

func translateDirection(d wire.Direction) (storage.Direction, error) {
	switch d {
	case wire.DirOutgoing:
		return storage.DirectionOutgoing, nil
	case wire.DirIncoming:
		return storage.DirectionIncoming, nil
	case wire.DirAny:
		return storage.DirectionAny, nil
	default:
		return 0, newError(KindMalformedCommand, "", "unknown direction %d", d)
	}
}
