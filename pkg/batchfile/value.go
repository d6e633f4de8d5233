package batchfile

import (
	"encoding/base64"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// Value is a wire value written as a plain YAML scalar. The YAML tag picks the
// type: !!bool, !!int, !!float, !!str, !!timestamp or !!binary (base64).
type Value struct {
	wire.Value
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		v.Value = wire.BoolValue(b)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return err
		}
		v.Value = wire.IntValue(i)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		v.Value = wire.FloatValue(f)
	case "!!str":
		v.Value = wire.StringValue(node.Value)
	case "!!timestamp":
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return err
		}
		v.Value = wire.TimeValue(t)
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		v.Value = wire.BlobValue(b)
	default:
		return fmt.Errorf("line %d: unsupported value tag %s", node.Line, node.ShortTag())
	}
	return nil
}

// Properties is a YAML mapping of property keys to values. Document order is kept.
type Properties []wire.Property

func (p *Properties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	out := make(Properties, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		vn := node.Content[i+1]
		if vn.ShortTag() == "!!null" {
			return fmt.Errorf("line %d: unsupported value tag !!null", vn.Line)
		}
		var v Value
		if err := vn.Decode(&v); err != nil {
			return err
		}
		out = append(out, wire.Property{Key: node.Content[i].Value, Value: v.Value})
	}
	*p = out
	return nil
}

// exportValue converts a wire value for YAML output
func exportValue(v wire.Value) any {
	switch v.Type {
	case wire.ValueTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case wire.ValueBlob:
		return base64.StdEncoding.EncodeToString(v.Blob)
	default:
		return v.Any()
	}
}
