package query

import (
	"testing"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
)

// countingIterator counts how many nodes were pulled from the underlying iterator
type countingIterator struct {
	storage.NodeIterator
	pulls int
}

func (c *countingIterator) Next() bool {
	ok := c.NodeIterator.Next()
	if ok {
		c.pulls++
	}
	return ok
}

func makeNodes(ids ...uint64) []*storage.Node {
	nodes := make([]*storage.Node, len(ids))
	for i, id := range ids {
		nodes[i] = &storage.Node{ID: id, Properties: map[string]storage.Value{}}
	}
	return nodes
}

func drainIDs(t *testing.T, seq Sequence) []uint64 {
	t.Helper()
	var ids []uint64
	for ; seq.Valid(); seq.Advance() {
		n, err := seq.Current()
		if err != nil {
			t.Fatalf("Current on a valid sequence failed: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if err := seq.Err(); err != nil {
		t.Fatalf("sequence ended with error: %v", err)
	}
	return ids
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// graphFixture is a committed graph built through the store API
type graphFixture struct {
	store *storage.GraphStorage
	ids   map[string]uint64
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	gs := storage.NewGraphStorage()
	t.Cleanup(func() { gs.Close() })
	return &graphFixture{store: gs, ids: make(map[string]uint64)}
}

// build creates one node per name (label "Person", property name) and one
// "knows" edge per pair, in the given order
func (f *graphFixture) build(t *testing.T, names []string, edges [][2]string) {
	t.Helper()
	tx, err := f.store.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, name := range names {
		n, err := tx.CreateNode([]string{"Person"}, map[string]storage.Value{"name": storage.StringValue(name)})
		if err != nil {
			t.Fatalf("CreateNode failed: %v", err)
		}
		f.ids[name] = n.ID
	}
	for _, e := range edges {
		if _, err := tx.CreateEdge(f.ids[e[0]], f.ids[e[1]], "knows", nil); err != nil {
			t.Fatalf("CreateEdge failed: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func (f *graphFixture) idsOf(names ...string) []uint64 {
	out := make([]uint64, len(names))
	for i, n := range names {
		out[i] = f.ids[n]
	}
	return out
}

func (f *graphFixture) sequence(names ...string) *NodeSequence {
	var nodes []*storage.Node
	for _, name := range names {
		n, _ := f.store.GetNode(f.ids[name])
		nodes = append(nodes, n)
	}
	return NewNodeSequence(storage.NewSliceIterator(nodes...))
}
