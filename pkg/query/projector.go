package query

import (
	"sort"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// IDKey is the reserved projection key that selects the node's system id
const IDKey = "_id"

// Projection is the outcome of projecting a sequence
type Projection struct {
	Records   []wire.Record
	Matched   int64 // every element of the sequence, before dedup and limit
	Returned  int64 // records emitted, after dedup and limit
	Aggregate *wire.Value
}

// Project drains seq and builds records according to spec. The sequence is always
// iterated to the end so Matched counts every match even under a small limit.
// The aggregate, when requested, covers every distinct match regardless of the limit.
func Project(seq Sequence, spec wire.ResultSpec) (*Projection, error) {
	p := &Projection{}
	var seen map[uint64]struct{}
	if spec.Unique {
		seen = make(map[uint64]struct{})
	}
	agg := newAggregator(spec)

	for ; seq.Valid(); seq.Advance() {
		node, err := seq.Current()
		if err != nil {
			return nil, err
		}
		p.Matched++

		if seen != nil {
			if _, dup := seen[node.ID]; dup {
				continue
			}
			seen[node.ID] = struct{}{}
		}
		if err := agg.add(node); err != nil {
			return nil, err
		}
		if spec.Limit != nil && p.Returned >= int64(*spec.Limit) {
			continue
		}

		rec, err := projectNode(node, spec.PropertyKeys)
		if err != nil {
			return nil, err
		}
		p.Records = append(p.Records, rec)
		p.Returned++
	}
	if err := seq.Err(); err != nil {
		return nil, wrapError(KindStore, "", err)
	}

	p.Aggregate = agg.result()
	return p, nil
}

func projectNode(node *storage.Node, keys []string) (wire.Record, error) {
	rec := wire.Record{ID: node.ID}
	if len(keys) == 0 {
		keys = make([]string, 0, len(node.Properties))
		for k := range node.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	for _, key := range keys {
		if key == IDKey {
			rec.Properties = append(rec.Properties, wire.Property{Key: key, Value: wire.IntValue(int64(node.ID))})
			continue
		}
		v, ok := node.GetProperty(key)
		if !ok {
			continue
		}
		wv, err := ExportValue(v)
		if err != nil {
			return wire.Record{}, err
		}
		rec.Properties = append(rec.Properties, wire.Property{Key: key, Value: wv})
	}
	return rec, nil
}

type aggregator struct {
	kind   wire.Aggregate
	key    string
	count  int64
	isum   int64
	fsum   float64
	floats bool
}

func newAggregator(spec wire.ResultSpec) *aggregator {
	a := &aggregator{kind: spec.Aggregate}
	if len(spec.PropertyKeys) > 0 {
		a.key = spec.PropertyKeys[0]
	}
	return a
}

func (a *aggregator) add(node *storage.Node) error {
	if a.kind == wire.AggNone {
		return nil
	}
	if a.key == IDKey {
		a.isum += int64(node.ID)
		a.fsum += float64(node.ID)
		a.count++
		return nil
	}
	v, ok := node.GetProperty(a.key)
	if !ok {
		return nil
	}
	switch v.Type {
	case storage.TypeInt:
		i, _ := v.AsInt()
		a.isum += i
		a.fsum += float64(i)
	case storage.TypeFloat:
		f, _ := v.AsFloat()
		a.fsum += f
		a.floats = true
	default:
		return newError(KindPropertyType, "", "cannot aggregate %s property %q", v.Type, a.key)
	}
	a.count++
	return nil
}

func (a *aggregator) result() *wire.Value {
	switch a.kind {
	case wire.AggSum:
		if a.floats {
			return wire.FloatValue(a.fsum).Ptr()
		}
		return wire.IntValue(a.isum).Ptr()
	case wire.AggAverage:
		if a.count == 0 {
			return nil
		}
		return wire.FloatValue(a.fsum / float64(a.count)).Ptr()
	default:
		return nil
	}
}
