package query

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
)

func TestNodeSequenceIsPositionedOnConstruction(t *testing.T) {
	src := &countingIterator{NodeIterator: storage.NewSliceIterator(makeNodes(1, 2, 3)...)}
	seq := NewNodeSequence(src)

	if !seq.Valid() {
		t.Fatal("expected sequence positioned on first node")
	}
	if src.pulls != 1 {
		t.Errorf("construction pulled %d nodes, want 1", src.pulls)
	}
	n, err := seq.Current()
	if err != nil || n.ID != 1 {
		t.Errorf("Current() = %v, %v; want node 1", n, err)
	}
}

func TestNodeSequenceReplayDoesNotRequery(t *testing.T) {
	src := &countingIterator{NodeIterator: storage.NewSliceIterator(makeNodes(5, 3, 9)...)}
	seq := NewNodeSequence(src)

	first := drainIDs(t, seq)
	seq.Reset()
	second := drainIDs(t, seq)

	if !equalIDs(first, []uint64{5, 3, 9}) || !equalIDs(first, second) {
		t.Errorf("replay mismatch: first %v, second %v", first, second)
	}
	if src.pulls != 3 {
		t.Errorf("store pulled %d times, want 3", src.pulls)
	}
}

func TestNodeSequencePartialReplay(t *testing.T) {
	src := &countingIterator{NodeIterator: storage.NewSliceIterator(makeNodes(1, 2, 3, 4)...)}
	seq := NewNodeSequence(src)
	seq.Advance()

	seq.Reset()
	if got := drainIDs(t, seq); !equalIDs(got, []uint64{1, 2, 3, 4}) {
		t.Errorf("got %v after partial replay", got)
	}
	if src.pulls != 4 {
		t.Errorf("store pulled %d times, want 4", src.pulls)
	}
}

func TestNodeSequenceCurrentWhenExhausted(t *testing.T) {
	tests := []struct {
		name string
		seq  *NodeSequence
	}{
		{"empty", NewNodeSequence(storage.NewSliceIterator())},
		{"past end", func() *NodeSequence {
			s := NewSingletonSequence(makeNodes(1)[0])
			s.Advance()
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seq.Valid() {
				t.Fatal("expected invalid sequence")
			}
			_, err := tt.seq.Current()
			if !errors.Is(err, ErrNullIterator) || KindOf(err) != KindNullIterator {
				t.Errorf("expected NullIterator, got %v", err)
			}
			if tt.seq.Advance() {
				t.Error("Advance past the end must fail")
			}
		})
	}
}

func TestNodeSequenceMaterializeAll(t *testing.T) {
	seq := NewNodeSequence(storage.NewSliceIterator(makeNodes(1, 2, 3)...))
	if seq.Drained() {
		t.Fatal("sequence should not be drained after construction")
	}
	if err := seq.MaterializeAll(); err != nil {
		t.Fatalf("MaterializeAll failed: %v", err)
	}
	if !seq.Drained() || seq.Len() != 3 {
		t.Errorf("Drained=%v Len=%d, want true 3", seq.Drained(), seq.Len())
	}
	n, _ := seq.Current()
	if n.ID != 1 {
		t.Errorf("MaterializeAll moved the cursor to %d", n.ID)
	}
}

func TestNodeSequenceSortBy(t *testing.T) {
	mk := func(id uint64, v *storage.Value) *storage.Node {
		n := &storage.Node{ID: id, Properties: map[string]storage.Value{}}
		if v != nil {
			n.Properties["age"] = *v
		}
		return n
	}
	val := func(v storage.Value) *storage.Value { return &v }

	nodes := []*storage.Node{
		mk(1, val(storage.IntValue(30))),
		mk(2, nil),
		mk(3, val(storage.FloatValue(12.5))),
		mk(4, val(storage.IntValue(30))),
		mk(5, val(storage.StringValue("old"))),
		mk(6, val(storage.IntValue(7))),
	}
	src := &countingIterator{NodeIterator: storage.NewSliceIterator(nodes...)}
	seq := NewNodeSequence(src)

	if err := seq.SortBy("age"); err != nil {
		t.Fatalf("SortBy failed: %v", err)
	}
	want := []uint64{6, 3, 1, 4, 5, 2}
	if got := drainIDs(t, seq); !equalIDs(got, want) {
		t.Errorf("sorted order = %v, want %v", got, want)
	}
	seq.Reset()
	if got := drainIDs(t, seq); !equalIDs(got, want) {
		t.Errorf("second pass = %v, want %v", got, want)
	}
	if src.pulls != len(nodes) {
		t.Errorf("store pulled %d times, want %d", src.pulls, len(nodes))
	}
}

// Values of types that do not compare are grouped in a fixed order: bool,
// numbers, NaN, string, bytes, timestamp; nodes without the key come last.
// Within a group, and among nodes without the key, discovery order is kept.
func TestNodeSequenceSortByMixedTypes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	values := map[uint64]storage.Value{
		1:  storage.StringValue("b"),
		2:  storage.TimestampValue(ts),
		4:  storage.IntValue(2),
		5:  storage.BytesValue([]byte("z")),
		6:  storage.FloatValue(math.NaN()),
		7:  storage.BoolValue(true),
		8:  storage.StringValue("a"),
		10: storage.FloatValue(1.5),
		11: storage.BoolValue(false),
		12: storage.FloatValue(math.NaN()),
	}
	var nodes []*storage.Node
	for id := uint64(1); id <= 12; id++ {
		n := &storage.Node{ID: id, Properties: map[string]storage.Value{}}
		if v, ok := values[id]; ok {
			n.Properties["k"] = v
		}
		nodes = append(nodes, n)
	}

	seq := NewNodeSequence(storage.NewSliceIterator(nodes...))
	if err := seq.SortBy("k"); err != nil {
		t.Fatalf("SortBy failed: %v", err)
	}

	want := []uint64{11, 7, 10, 4, 6, 12, 8, 1, 5, 2, 3, 9}
	if got := drainIDs(t, seq); !equalIDs(got, want) {
		t.Errorf("sorted order = %v, want %v", got, want)
	}
}

type failingIterator struct {
	storage.NodeIterator
	err error
}

func (f *failingIterator) Err() error { return f.err }

func TestNodeSequenceStoreError(t *testing.T) {
	boom := errors.New("disk on fire")
	seq := NewNodeSequence(&failingIterator{NodeIterator: storage.NewSliceIterator(makeNodes(1)...), err: boom})

	seq.Advance()
	if seq.Valid() || !errors.Is(seq.Err(), boom) {
		t.Errorf("expected store error after end, got valid=%v err=%v", seq.Valid(), seq.Err())
	}
	if err := seq.SortBy("x"); !errors.Is(err, boom) {
		t.Errorf("SortBy should report the store error, got %v", err)
	}
}
