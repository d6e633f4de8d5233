// Package batchfile reads command batches written in YAML and renders their
// responses back to YAML.
//
//	commands:
//	  - op: add_node
//	    ref: 1
//	    label: Person
//	    properties: {name: Alice, age: 30}
//	  - op: query_node
//	    group: 1
//	    source: 1
//	    link: {direction: out, edge: knows}
//	    result: {keys: [name], sort: name}
//	  - op: commit
//	    group: 1
//
// When groups is omitted the batch has one group more than the highest group id used.
package batchfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphquery/pkg/validation"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// File is the YAML document
type File struct {
	Groups   int       `yaml:"groups"`
	Commands []Command `yaml:"commands"`
}

// Command is one entry of the commands list
type Command struct {
	Op    string `yaml:"op"`
	Group int    `yaml:"group"`
	Ref   int    `yaml:"ref"`

	// add_node, add_edge and query_node
	Label      string     `yaml:"label"`
	Properties Properties `yaml:"properties"`

	// add_edge
	Src int `yaml:"src"`
	Dst int `yaml:"dst"`

	// query_node
	Source int         `yaml:"source"`
	Where  []Predicate `yaml:"where"`
	Or     bool        `yaml:"or"`
	Link   *Link       `yaml:"link"`
	Result Result      `yaml:"result"`
}

// Predicate is one property filter. Range operators take two values.
type Predicate struct {
	Key    string  `yaml:"key"`
	Op     string  `yaml:"op"`
	Value  *Value  `yaml:"value"`
	Values []Value `yaml:"values"`
}

// Link expands to neighbors
type Link struct {
	Direction string      `yaml:"direction"`
	Edge      string      `yaml:"edge"`
	Label     string      `yaml:"label"`
	Where     []Predicate `yaml:"where"`
	Or        bool        `yaml:"or"`
}

// Result shapes the response records
type Result struct {
	Keys      []string `yaml:"keys"`
	Limit     *int     `yaml:"limit"`
	Unique    bool     `yaml:"unique"`
	Sort      string   `yaml:"sort"`
	Aggregate string   `yaml:"aggregate"`
}

var opcodes = map[string]wire.Opcode{
	"begin":      wire.OpTxBegin,
	"commit":     wire.OpTxCommit,
	"abort":      wire.OpTxAbort,
	"add_node":   wire.OpAddNode,
	"add_edge":   wire.OpAddEdge,
	"query_node": wire.OpQueryNode,
}

var predicateOps = map[string]wire.PredicateOp{
	"exists": wire.PredExists,
	"absent": wire.PredAbsent,
	"eq":     wire.PredEq,
	"ne":     wire.PredNe,
	"lt":     wire.PredLt,
	"le":     wire.PredLe,
	"gt":     wire.PredGt,
	"ge":     wire.PredGe,
	"ge_le":  wire.PredGeLe,
	"ge_lt":  wire.PredGeLt,
	"gt_le":  wire.PredGtLe,
	"gt_lt":  wire.PredGtLt,
}

var directions = map[string]wire.Direction{
	"":    wire.DirOutgoing,
	"out": wire.DirOutgoing,
	"in":  wire.DirIncoming,
	"any": wire.DirAny,
}

var aggregates = map[string]wire.Aggregate{
	"":        wire.AggNone,
	"sum":     wire.AggSum,
	"average": wire.AggAverage,
	"avg":     wire.AggAverage,
}

// Load reads a batch file
func Load(path string) (*wire.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML batch and converts it to a validated wire batch
func Parse(data []byte) (*wire.Batch, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	b, err := f.Batch()
	if err != nil {
		return nil, err
	}
	if err := wire.ValidateBatch(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Batch converts the document to a wire batch
func (f *File) Batch() (*wire.Batch, error) {
	b := &wire.Batch{NumGroups: f.Groups, Commands: make([]*wire.Command, 0, len(f.Commands))}
	maxGroup := -1
	for i := range f.Commands {
		cmd, err := f.Commands[i].command()
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		maxGroup = max(maxGroup, cmd.GroupID)
		b.Commands = append(b.Commands, cmd)
	}
	if b.NumGroups == 0 {
		b.NumGroups = maxGroup + 1
	}
	return b, nil
}

func (c *Command) command() (*wire.Command, error) {
	op, ok := opcodes[c.Op]
	if !ok {
		return nil, fmt.Errorf("unknown op %q", c.Op)
	}
	cmd := &wire.Command{Op: op, GroupID: c.Group, RefID: c.Ref}

	switch op {
	case wire.OpAddNode:
		if err := checkNames(c.Label, true, c.Properties); err != nil {
			return nil, err
		}
		cmd.AddNode = &wire.AddNode{Label: c.Label, Properties: c.Properties}
	case wire.OpAddEdge:
		if err := checkNames(c.Label, false, c.Properties); err != nil {
			return nil, err
		}
		cmd.AddEdge = &wire.AddEdge{Src: c.Src, Dst: c.Dst, Label: c.Label, Properties: c.Properties}
	case wire.OpQueryNode:
		qn, err := c.queryNode()
		if err != nil {
			return nil, err
		}
		cmd.QueryNode = qn
	}
	return cmd, nil
}

func (c *Command) queryNode() (*wire.QueryNode, error) {
	if err := validation.ValidateLabel(c.Label, true); err != nil {
		return nil, err
	}
	preds, err := predicates(c.Where)
	if err != nil {
		return nil, err
	}
	qn := &wire.QueryNode{SourceRef: c.Source, Label: c.Label, Predicates: preds, Or: c.Or}

	if c.Link != nil {
		dir, ok := directions[c.Link.Direction]
		if !ok {
			return nil, fmt.Errorf("unknown link direction %q", c.Link.Direction)
		}
		if err := validation.ValidateLabel(c.Link.Edge, true); err != nil {
			return nil, fmt.Errorf("link edge: %w", err)
		}
		if err := validation.ValidateLabel(c.Link.Label, true); err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
		lp, err := predicates(c.Link.Where)
		if err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
		qn.Link = &wire.Link{Direction: dir, EdgeLabel: c.Link.Edge, Label: c.Link.Label, Predicates: lp, Or: c.Link.Or}
	}

	agg, ok := aggregates[c.Result.Aggregate]
	if !ok {
		return nil, fmt.Errorf("unknown aggregate %q", c.Result.Aggregate)
	}
	for _, key := range c.Result.Keys {
		if err := validation.ValidatePropertyKey(key); err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
	}
	qn.Result = wire.ResultSpec{
		PropertyKeys: c.Result.Keys,
		Limit:        c.Result.Limit,
		Unique:       c.Result.Unique,
		SortKey:      c.Result.Sort,
		Aggregate:    agg,
	}
	return qn, nil
}

func predicates(in []Predicate) ([]wire.PropertyPredicate, error) {
	out := make([]wire.PropertyPredicate, 0, len(in))
	for _, p := range in {
		op, ok := predicateOps[p.Op]
		if !ok {
			return nil, fmt.Errorf("unknown predicate op %q", p.Op)
		}
		if err := validation.ValidatePropertyKey(p.Key); err != nil {
			return nil, err
		}
		pred := wire.PropertyPredicate{Key: p.Key, Op: op}
		switch {
		case p.Value != nil && len(p.Values) > 0:
			return nil, fmt.Errorf("predicate on %q: give value or values, not both", p.Key)
		case p.Value != nil:
			pred.V1 = p.Value.Value.Ptr()
		case len(p.Values) > 2:
			return nil, fmt.Errorf("predicate on %q: at most two values", p.Key)
		case len(p.Values) > 0:
			pred.V1 = p.Values[0].Value.Ptr()
			if len(p.Values) == 2 {
				pred.V2 = p.Values[1].Value.Ptr()
			}
		}
		out = append(out, pred)
	}
	return out, nil
}

func checkNames(label string, optional bool, props Properties) error {
	if err := validation.ValidateLabel(label, optional); err != nil {
		return err
	}
	if err := validation.ValidatePropertyCount(len(props)); err != nil {
		return err
	}
	for _, p := range props {
		if err := validation.ValidatePropertyKey(p.Key); err != nil {
			return err
		}
	}
	return nil
}
