// Package loader reads pipeline graph documents and validates them into
// core.Graph values.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/core"
	"gopkg.in/yaml.v3"
)

// ValidationError reports a structurally invalid graph document.
type ValidationError struct {
	Path    string
	Problem string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid graph: " + e.Problem
	}
	return fmt.Sprintf("invalid graph %s: %s", e.Path, e.Problem)
}

// reserved node keys that never land in the config bag.
var reservedKeys = map[string]bool{"id": true, "type": true, "label": true, "data": true}

// LoadGraph reads and validates the graph at path. Files ending in .yaml
// or .yml are parsed as YAML, everything else as JSON.
func LoadGraph(path string) (*core.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse graph file %s: %w", path, err)
		}
	default:
		if doc, err = decodeJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse graph file %s: %w", path, err)
		}
	}

	g, err := FromDocument(doc)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Path = path
		}
		return nil, err
	}
	return g, nil
}

// ParseGraph parses a JSON graph document.
func ParseGraph(data []byte) (*core.Graph, error) {
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	return FromDocument(doc)
}

func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument converts a decoded document into a validated graph.
// Node settings may sit at the top level of a node or under "data"; the
// top-level value wins.
func FromDocument(doc map[string]any) (*core.Graph, error) {
	if doc == nil {
		return nil, &ValidationError{Problem: "document is empty"}
	}

	rawNodes, ok := doc["nodes"].([]any)
	if !ok {
		return nil, &ValidationError{Problem: "missing nodes array"}
	}

	nodes := make([]core.Node, 0, len(rawNodes))
	seen := make(map[string]bool, len(rawNodes))
	for i, raw := range rawNodes {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, &ValidationError{Problem: fmt.Sprintf("node %d is not an object", i)}
		}
		node, err := parseNode(obj)
		if err != nil {
			return nil, &ValidationError{Problem: fmt.Sprintf("node %d: %v", i, err)}
		}
		if seen[node.ID] {
			return nil, &ValidationError{Problem: fmt.Sprintf("duplicate node id %q", node.ID)}
		}
		seen[node.ID] = true
		nodes = append(nodes, node)
	}

	var conns []core.Connection
	if rawConns, present := doc["connections"]; present && rawConns != nil {
		list, ok := rawConns.([]any)
		if !ok {
			return nil, &ValidationError{Problem: "connections must be an array"}
		}
		taken := make(map[[2]string]string)
		for i, raw := range list {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, &ValidationError{Problem: fmt.Sprintf("connection %d is not an object", i)}
			}
			c := core.Connection{
				From:     scalar(obj["from"]),
				To:       scalar(obj["to"]),
				ToSocket: firstNonEmpty(scalar(obj["toSocketName"]), scalar(obj["toSocket"])),
			}
			if !seen[c.From] {
				return nil, &ValidationError{Problem: fmt.Sprintf("connection %d references unknown node %q", i, c.From)}
			}
			if !seen[c.To] {
				return nil, &ValidationError{Problem: fmt.Sprintf("connection %d references unknown node %q", i, c.To)}
			}
			key := [2]string{c.To, c.Socket()}
			if prev, dup := taken[key]; dup {
				return nil, &ValidationError{Problem: fmt.Sprintf(
					"socket %q of node %q has two inputs (%q and %q)", c.Socket(), c.To, prev, c.From)}
			}
			taken[key] = c.From
			conns = append(conns, c)
		}
	}

	g := core.NewGraph(nodes, conns)
	if meta, ok := doc["meta"].(map[string]any); ok {
		g.Meta.Description = scalar(meta["description"])
	}
	return g, nil
}

func parseNode(obj map[string]any) (core.Node, error) {
	data, _ := obj["data"].(map[string]any)

	node := core.Node{
		ID:     scalar(obj["id"]),
		Type:   firstNonEmpty(scalar(obj["type"]), scalar(data["type"])),
		Label:  firstNonEmpty(scalar(obj["label"]), scalar(data["label"])),
		Config: make(map[string]any, len(obj)+len(data)),
	}
	if node.ID == "" {
		return node, fmt.Errorf("missing id")
	}
	if node.Type == "" {
		return node, fmt.Errorf("node %q has no type", node.ID)
	}

	for k, v := range data {
		if !reservedKeys[k] {
			node.Config[k] = normalize(v)
		}
	}
	for k, v := range obj {
		if !reservedKeys[k] {
			node.Config[k] = normalize(v)
		}
	}
	return node, nil
}

// normalize turns json.Number into int64 or float64 so config decoding
// sees plain Go numbers.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// scalar renders ids and names that may arrive as strings or numbers.
func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
