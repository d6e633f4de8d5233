package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphquery/pkg/query"
	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

const testTimeout = 5 * time.Second

func newTestEngine(t *testing.T) *query.Engine {
	t.Helper()
	gs := storage.NewGraphStorage()
	t.Cleanup(func() { gs.Close() })
	return query.NewEngine(gs, query.EngineConfig{})
}

// run starts serve in the background and returns a function that stops it and
// checks it exited cleanly
func run(t *testing.T, serve func(ctx context.Context) error) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx) }()

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			require.True(t, errors.Is(err, ErrServerClosed), "serve returned %v", err)
		case <-time.After(testTimeout):
			t.Fatal("server did not stop")
		}
	}
	t.Cleanup(stop)
	return stop
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// personBatch adds one Person per name in group 0 and returns them all in group 1
func personBatch(names ...string) *wire.Batch {
	b := &wire.Batch{NumGroups: 2}
	for _, name := range names {
		b.Commands = append(b.Commands, &wire.Command{Op: wire.OpAddNode, AddNode: &wire.AddNode{
			Label:      "Person",
			Properties: []wire.Property{{Key: "name", Value: wire.StringValue(name)}},
		}})
	}
	b.Commands = append(b.Commands,
		&wire.Command{Op: wire.OpQueryNode, GroupID: 1, QueryNode: &wire.QueryNode{
			Label:  "Person",
			Result: wire.ResultSpec{PropertyKeys: []string{"name"}, SortKey: "name"},
		}},
		&wire.Command{Op: wire.OpTxCommit, GroupID: 1},
	)
	return b
}

func names(t *testing.T, g *wire.GroupResponse) []string {
	t.Helper()
	out := make([]string, 0, len(g.Records))
	for _, r := range g.Records {
		v, ok := r.Get("name")
		require.True(t, ok)
		out = append(out, v.String)
	}
	return out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.Gauge.GetValue()
}

// eventually polls cond, for metrics updated after a response was sent
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
