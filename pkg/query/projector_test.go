package query

import (
	"testing"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

func person(id uint64, name string, age storage.Value) *storage.Node {
	return &storage.Node{ID: id, Labels: []string{"Person"}, Properties: map[string]storage.Value{
		"name": storage.StringValue(name),
		"age":  age,
	}}
}

func peopleSequence(nodes ...*storage.Node) *NodeSequence {
	return NewNodeSequence(storage.NewSliceIterator(nodes...))
}

func TestProjectUniqueKeepsMatchedCount(t *testing.T) {
	x := person(1, "x", storage.IntValue(1))
	y := person(2, "y", storage.IntValue(2))

	p, err := Project(peopleSequence(x, y, x, x), wire.ResultSpec{Unique: true, Limit: wire.Limit(10)})
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if p.Matched != 4 || p.Returned != 2 || len(p.Records) != 2 {
		t.Errorf("matched=%d returned=%d records=%d; want 4 2 2", p.Matched, p.Returned, len(p.Records))
	}
	if p.Records[0].ID != 1 || p.Records[1].ID != 2 {
		t.Errorf("first occurrence must win, got %v", p.Records)
	}
}

func TestProjectLimit(t *testing.T) {
	nodes := []*storage.Node{
		person(1, "a", storage.IntValue(1)),
		person(2, "b", storage.IntValue(2)),
		person(3, "c", storage.IntValue(3)),
	}
	tests := []struct {
		name         string
		limit        *int
		wantReturned int64
	}{
		{"unlimited", nil, 3},
		{"counts only", wire.Limit(0), 0},
		{"bounded", wire.Limit(2), 2},
		{"above size", wire.Limit(50), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Project(peopleSequence(nodes...), wire.ResultSpec{Limit: tt.limit})
			if err != nil {
				t.Fatalf("Project failed: %v", err)
			}
			if p.Matched != 3 {
				t.Errorf("matched = %d, want 3 regardless of limit", p.Matched)
			}
			if p.Returned != tt.wantReturned || int64(len(p.Records)) != tt.wantReturned {
				t.Errorf("returned = %d (%d records), want %d", p.Returned, len(p.Records), tt.wantReturned)
			}
		})
	}
}

func TestProjectPropertyKeys(t *testing.T) {
	n := person(7, "Bob", storage.IntValue(40))

	t.Run("all properties sorted by key", func(t *testing.T) {
		p, _ := Project(peopleSequence(n), wire.ResultSpec{})
		props := p.Records[0].Properties
		if len(props) != 2 || props[0].Key != "age" || props[1].Key != "name" {
			t.Errorf("unexpected properties %v", props)
		}
	})

	t.Run("whitelist with id", func(t *testing.T) {
		p, _ := Project(peopleSequence(n), wire.ResultSpec{PropertyKeys: []string{IDKey, "name", "missing"}})
		rec := p.Records[0]
		if len(rec.Properties) != 2 {
			t.Fatalf("expected _id and name only, got %v", rec.Properties)
		}
		if id, _ := rec.Get(IDKey); id.Int != 7 {
			t.Errorf("_id = %v, want 7", id)
		}
		if name, _ := rec.Get("name"); name.String != "Bob" {
			t.Errorf("name = %v, want Bob", name)
		}
	})
}

func TestProjectAggregate(t *testing.T) {
	a := person(1, "a", storage.IntValue(10))
	b := person(2, "b", storage.IntValue(20))
	c := person(3, "c", storage.FloatValue(4.5))
	noAge := &storage.Node{ID: 4, Properties: map[string]storage.Value{}}

	tests := []struct {
		name string
		seq  *NodeSequence
		agg  wire.Aggregate
		want wire.Value
	}{
		{"int sum", peopleSequence(a, b, noAge), wire.AggSum, wire.IntValue(30)},
		{"mixed sum", peopleSequence(a, b, c), wire.AggSum, wire.FloatValue(34.5)},
		{"average", peopleSequence(a, b), wire.AggAverage, wire.FloatValue(15)},
		{"sum ignores limit", peopleSequence(a, b), wire.AggSum, wire.IntValue(30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Project(tt.seq, wire.ResultSpec{PropertyKeys: []string{"age"}, Aggregate: tt.agg, Limit: wire.Limit(1)})
			if err != nil {
				t.Fatalf("Project failed: %v", err)
			}
			if p.Aggregate == nil || p.Aggregate.Any() != tt.want.Any() {
				t.Errorf("aggregate = %v, want %v", p.Aggregate, tt.want.Any())
			}
		})
	}

	t.Run("average of nothing", func(t *testing.T) {
		p, _ := Project(peopleSequence(noAge), wire.ResultSpec{PropertyKeys: []string{"age"}, Aggregate: wire.AggAverage})
		if p.Aggregate != nil {
			t.Errorf("expected no aggregate, got %v", p.Aggregate)
		}
	})

	t.Run("non numeric", func(t *testing.T) {
		_, err := Project(peopleSequence(a), wire.ResultSpec{PropertyKeys: []string{"name"}, Aggregate: wire.AggSum})
		if KindOf(err) != KindPropertyType {
			t.Errorf("expected PropertyType, got %v", err)
		}
	})
}
