package wire

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *Command
		wantErr string
	}{
		{"begin", &Command{Op: OpTxBegin}, ""},
		{"add node", &Command{Op: OpAddNode, RefID: 1, AddNode: &AddNode{Label: "Person"}}, ""},
		{"query by ref", &Command{Op: OpQueryNode, QueryNode: &QueryNode{SourceRef: 1, Link: &Link{}}}, ""},
		{"nil", nil, "nil command"},
		{"unknown opcode", &Command{Op: 9}, "Op"},
		{"negative ref", &Command{Op: OpTxBegin, RefID: -1}, "RefID"},
		{"missing payload", &Command{Op: OpAddNode}, "requires exactly one AddNode"},
		{"wrong payload", &Command{Op: OpAddNode, QueryNode: &QueryNode{}}, "requires exactly one AddNode"},
		{"payload on tx op", &Command{Op: OpTxCommit, AddNode: &AddNode{}}, "unexpected payload"},
		{"edge without label", &Command{Op: OpAddEdge, AddEdge: &AddEdge{Src: 1, Dst: 2}}, "Label"},
		{"edge with zero ref", &Command{Op: OpAddEdge, AddEdge: &AddEdge{Dst: 2, Label: "knows"}}, "Src"},
		{"property without key", &Command{Op: OpAddNode, AddNode: &AddNode{
			Properties: []Property{{Value: IntValue(1)}},
		}}, "Key"},
		{"ref plus scan", &Command{Op: OpQueryNode, QueryNode: &QueryNode{SourceRef: 1, Label: "Person"}}, "source reference"},
		{"aggregate without key", &Command{Op: OpQueryNode, QueryNode: &QueryNode{
			Result: ResultSpec{Aggregate: AggSum},
		}}, "aggregate requires"},
		{"negative limit", &Command{Op: OpQueryNode, QueryNode: &QueryNode{
			Result: ResultSpec{Limit: Limit(-1)},
		}}, "Limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.cmd)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid command, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchGroups(t *testing.T) {
	cmd := func(group int) *Command { return &Command{Op: OpTxBegin, GroupID: group} }

	tests := []struct {
		name  string
		batch *Batch
		ok    bool
	}{
		{"ordered", &Batch{NumGroups: 3, Commands: []*Command{cmd(0), cmd(0), cmd(2)}}, true},
		{"empty", &Batch{}, true},
		{"out of range", &Batch{NumGroups: 2, Commands: []*Command{cmd(2)}}, false},
		{"decreasing", &Batch{NumGroups: 3, Commands: []*Command{cmd(1), cmd(0)}}, false},
		{"nil command", &Batch{NumGroups: 1, Commands: []*Command{nil}}, false},
		{"empty batch with one group", &Batch{NumGroups: 1}, true},
		{"more groups than commands", &Batch{NumGroups: 3, Commands: []*Command{cmd(0), cmd(1)}}, false},
		{"huge group count", &Batch{NumGroups: math.MaxInt32}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.batch)
			if tt.ok && err != nil {
				t.Errorf("expected valid batch, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}
