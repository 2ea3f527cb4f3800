package document

import (
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MarshalYAML implements yaml.Marshaler, preserving object key order.
func (v *Value) MarshalYAML() (interface{}, error) {
	return v.YAMLNode(), nil
}

// YAMLNode converts v into a yaml.v3 node tree.
func (v *Value) YAMLNode() *yaml.Node {
	switch v.Kind() {
	case KindBool:
		return scalarNode("!!bool", strconv.FormatBool(v.boolVal))
	case KindInt:
		return scalarNode("!!int", strconv.FormatInt(v.intVal, 10))
	case KindFloat:
		return scalarNode("!!float", yamlFloat(v.floatVal, v.float32))
	case KindText:
		return scalarNode("!!str", v.textVal)
	case KindTime:
		return scalarNode("!!timestamp", formatTime(v.timeVal))
	case KindObject:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		node.Content = make([]*yaml.Node, 0, 2*len(v.fields))
		for _, f := range v.fields {
			node.Content = append(node.Content, scalarNode("!!str", f.Key), f.Value.YAMLNode())
		}
		return node
	case KindArray:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		node.Content = make([]*yaml.Node, 0, len(v.items))
		for _, item := range v.items {
			node.Content = append(node.Content, item.YAMLNode())
		}
		return node
	}
	return scalarNode("!!null", "null")
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlFloat(f float64, is32 bool) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return FormatFloat(f, is32)
}
