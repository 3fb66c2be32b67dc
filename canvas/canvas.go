package canvas

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/csakilan/FoundryBackend/errors"
)

// Kind identifies the service category a node provisions.
type Kind int

const (
	// KindCompute indicates a virtual machine instance
	KindCompute Kind = iota
	// KindObjectStore indicates a blob storage bucket
	KindObjectStore
	// KindRelationalDB indicates a managed relational database instance
	KindRelationalDB
	// KindKeyValueTable indicates a managed key-value table
	KindKeyValueTable
)

// String returns a string representation of the node kind
func (k Kind) String() string {
	switch k {
	case KindCompute:
		return "compute"
	case KindObjectStore:
		return "objectStore"
	case KindRelationalDB:
		return "relationalDB"
	case KindKeyValueTable:
		return "keyValueTable"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire-format type string onto a Kind. Matching is
// case-insensitive and accepts both the provider spellings the canvas
// editor emits ("EC2", "S3", "RDS", "DynamoDB") and the neutral kind
// names. Unknown strings return errors.ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ec2", "compute":
		return KindCompute, nil
	case "s3", "objectstore", "bucket":
		return KindObjectStore, nil
	case "rds", "relationaldb", "relationaldatabase":
		return KindRelationalDB, nil
	case "dynamodb", "dynamo", "keyvaluetable":
		return KindKeyValueTable, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownKind, s),
			"canvas", "ParseKind", "map node type")
	}
}

// Node is one vertex of the infrastructure graph: a single service
// instance the user placed on the canvas. Data carries the kind-specific
// attributes exactly as the editor submitted them.
type Node struct {
	ID      string
	Kind    Kind
	RawType string
	Data    map[string]any
}

// Edge is a directed "needs access to" relationship. Source is the
// dependency, Target the consumer. Only edges targeting a compute node
// influence compilation.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Canvas is an immutable snapshot of the graph submitted for
// compilation. DeploymentID may be empty; the compiler substitutes its
// default and the deployer overwrites it with a generated identifier.
type Canvas struct {
	DeploymentID string
	Nodes        []Node
	Edges        []Edge

	byID map[string]*Node
}

// wireCanvas is the JSON shape the canvas editor submits. The kind
// field is accepted under both "kind" and the legacy "type" key.
type wireCanvas struct {
	BuildID string     `json:"buildId"`
	Nodes   []wireNode `json:"nodes"`
	Edges   []Edge     `json:"edges"`
}

type wireNode struct {
	ID   string         `json:"id"`
	Kind string         `json:"kind"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Parse decodes and validates a canvas submission. Node ids must be
// non-empty and unique; node kinds must parse. Edges are kept verbatim,
// dangling endpoints are tolerated here and ignored during resolution.
func Parse(raw []byte) (*Canvas, error) {
	var wire wireCanvas
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.WrapInvalid(err, "canvas", "Parse", "decode canvas document")
	}
	return fromWire(&wire)
}

func fromWire(wire *wireCanvas) (*Canvas, error) {
	c := &Canvas{
		DeploymentID: wire.BuildID,
		Nodes:        make([]Node, 0, len(wire.Nodes)),
		Edges:        wire.Edges,
		byID:         make(map[string]*Node, len(wire.Nodes)),
	}

	for i, wn := range wire.Nodes {
		if wn.ID == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("node at index %d has no id", i),
				"canvas", "Parse", "validate nodes")
		}
		rawType := wn.Kind
		if rawType == "" {
			rawType = wn.Type
		}
		kind, err := ParseKind(rawType)
		if err != nil {
			return nil, errors.Wrap(err, "canvas", "Parse", fmt.Sprintf("classify node %s", wn.ID))
		}
		if _, exists := c.byID[wn.ID]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrDuplicateNode, wn.ID),
				"canvas", "Parse", "validate nodes")
		}

		data := wn.Data
		if data == nil {
			data = map[string]any{}
		}
		c.Nodes = append(c.Nodes, Node{ID: wn.ID, Kind: kind, RawType: rawType, Data: data})
		c.byID[wn.ID] = &c.Nodes[len(c.Nodes)-1]
	}

	return c, nil
}

// New assembles a canvas from already-typed nodes and edges. It applies
// the same id validation as Parse and is the construction path for
// tests and programmatic callers.
func New(deploymentID string, nodes []Node, edges []Edge) (*Canvas, error) {
	c := &Canvas{
		DeploymentID: deploymentID,
		Nodes:        make([]Node, 0, len(nodes)),
		Edges:        edges,
		byID:         make(map[string]*Node, len(nodes)),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("node has no id"), "canvas", "New", "validate nodes")
		}
		if _, exists := c.byID[n.ID]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrDuplicateNode, n.ID),
				"canvas", "New", "validate nodes")
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		c.Nodes = append(c.Nodes, n)
		c.byID[n.ID] = &c.Nodes[len(c.Nodes)-1]
	}
	return c, nil
}

// Node returns the node with the given id, if present.
func (c *Canvas) Node(id string) (*Node, bool) {
	n, ok := c.byID[id]
	return n, ok
}

// OfKind returns the nodes of one kind in canvas declaration order.
func (c *Canvas) OfKind(k Kind) []*Node {
	var out []*Node
	for i := range c.Nodes {
		if c.Nodes[i].Kind == k {
			out = append(out, &c.Nodes[i])
		}
	}
	return out
}

// HasKind reports whether at least one node of the kind exists. The
// template assembler keys optional parameter declarations off this.
func (c *Canvas) HasKind(k Kind) bool {
	for i := range c.Nodes {
		if c.Nodes[i].Kind == k {
			return true
		}
	}
	return false
}

// StringAttr returns the string attribute under key. The second return
// is false when the key is absent or holds a non-string value.
func (n *Node) StringAttr(key string) (string, bool) {
	v, ok := n.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntAttr returns the numeric attribute under key truncated to int.
// JSON numbers decode as float64; programmatic construction may store
// int directly. Both are accepted.
func (n *Node) IntAttr(key string) (int, bool) {
	switch v := n.Data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// BoolAttr returns the boolean attribute under key.
func (n *Node) BoolAttr(key string) (bool, bool) {
	v, ok := n.Data[key].(bool)
	return v, ok
}

// MapAttr returns the nested object attribute under key.
func (n *Node) MapAttr(key string) (map[string]any, bool) {
	v, ok := n.Data[key].(map[string]any)
	return v, ok
}

// Require returns the string attribute under key, or a validation error
// naming the node and the missing field. Empty strings count as missing
// so a blank form field fails compilation rather than producing a
// degenerate resource name.
func (n *Node) Require(key string) (string, error) {
	s, ok := n.StringAttr(key)
	if !ok || s == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: node %s field %s", errors.ErrMissingAttribute, n.ID, key),
			"canvas", "Require", "read node attribute")
	}
	return s, nil
}
