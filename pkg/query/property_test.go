package query

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

func nodesWithKeys(keys []int) []*storage.Node {
	nodes := make([]*storage.Node, len(keys))
	for i, k := range keys {
		nodes[i] = &storage.Node{
			ID:         uint64(i + 1),
			Properties: map[string]storage.Value{"k": storage.IntValue(int64(k))},
		}
	}
	return nodes
}

func collect(seq Sequence) []uint64 {
	var ids []uint64
	for ; seq.Valid(); seq.Advance() {
		n, _ := seq.Current()
		ids = append(ids, n.ID)
	}
	return ids
}

// TestSequenceProperties checks replay and sort invariants of NodeSequence over
// random inputs.
func TestSequenceProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reset replays the yielded prefix without store pulls", prop.ForAll(
		func(keys []int, consumed int) bool {
			src := &countingIterator{NodeIterator: storage.NewSliceIterator(nodesWithKeys(keys)...)}
			seq := NewNodeSequence(src)

			var first []uint64
			for i := 0; i < consumed && seq.Valid(); i++ {
				n, _ := seq.Current()
				first = append(first, n.ID)
				seq.Advance()
			}
			pulls := src.pulls

			seq.Reset()
			var second []uint64
			for i := 0; i < len(first); i++ {
				n, err := seq.Current()
				if err != nil {
					return false
				}
				second = append(second, n.ID)
				seq.Advance()
			}
			return equalIDs(first, second) && src.pulls == pulls
		},
		gen.SliceOf(gen.IntRange(-50, 50)),
		gen.IntRange(0, 30),
	))

	properties.Property("sort is ordered, stable and replayable", prop.ForAll(
		func(keys []int) bool {
			src := &countingIterator{NodeIterator: storage.NewSliceIterator(nodesWithKeys(keys)...)}
			seq := NewNodeSequence(src)
			if seq.SortBy("k") != nil {
				return false
			}

			sorted := collect(seq)
			if len(sorted) != len(keys) {
				return false
			}
			for i := 1; i < len(sorted); i++ {
				a, b := keys[sorted[i-1]-1], keys[sorted[i]-1]
				if a > b || (a == b && sorted[i-1] > sorted[i]) {
					return false
				}
			}

			pulls := src.pulls
			seq.Reset()
			return equalIDs(collect(seq), sorted) && src.pulls == pulls
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.Property("matched counts every element, returned honors unique and limit", prop.ForAll(
		func(ids []int, limit int, unique bool) bool {
			nodes := make([]*storage.Node, len(ids))
			distinct := make(map[int]struct{})
			for i, id := range ids {
				nodes[i] = &storage.Node{ID: uint64(id), Properties: map[string]storage.Value{}}
				distinct[id] = struct{}{}
			}
			seq := NewNodeSequence(storage.NewSliceIterator(nodes...))

			p, err := Project(seq, wire.ResultSpec{Limit: wire.Limit(limit), Unique: unique})
			if err != nil {
				return false
			}
			want := len(ids)
			if unique {
				want = len(distinct)
			}
			if want > limit {
				want = limit
			}
			return p.Matched == int64(len(ids)) && p.Returned == int64(want) && len(p.Records) == want
		},
		gen.SliceOf(gen.IntRange(1, 8)),
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
