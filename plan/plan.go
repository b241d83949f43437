// Package plan defines the structured UI plan produced by the planning stage
// and consumed by code generation and explanation.
//
// The pipeline treats a Plan as opaque: it is validated once after planning
// and then passed through unmodified, including back to the planner as the
// "previous plan" of the next request.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Plan describes a UI layout as a tree of catalog components.
type Plan struct {
	// Layout is a short description of the overall layout.
	Layout string `json:"layout"`

	// Reasoning explains why the planner chose these components.
	Reasoning string `json:"reasoning"`

	// Structure is the recursive component tree.
	Structure []Node `json:"structure"`
}

// Node is one component in the plan tree.
type Node struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props,omitempty"`
	Children  Children       `json:"children,omitzero"`
}

// Children holds the content of a node: nested nodes, plain text, or any other
// JSON value the planner produced. Values that are neither a node list nor a
// string are kept verbatim so they survive a round trip.
type Children struct {
	Nodes []Node
	Text  string

	raw json.RawMessage
}

// TextChildren returns text content for a node.
func TextChildren(text string) Children {
	return Children{Text: text}
}

// NodeChildren returns nested node content.
func NodeChildren(nodes ...Node) Children {
	if nodes == nil {
		nodes = []Node{}
	}
	return Children{Nodes: nodes}
}

// IsZero reports whether the node has no children at all.
func (c Children) IsZero() bool {
	return c.Nodes == nil && c.Text == "" && c.raw == nil
}

// IsText reports whether the children are a plain string.
func (c Children) IsText() bool {
	return c.Nodes == nil && c.raw == nil && c.Text != ""
}

// MarshalJSON implements json.Marshaler.
func (c Children) MarshalJSON() ([]byte, error) {
	switch {
	case c.raw != nil:
		return c.raw, nil
	case c.Nodes != nil:
		return json.Marshal(c.Nodes)
	case c.Text != "":
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Children) UnmarshalJSON(data []byte) error {
	*c = Children{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &c.Text)
	case '[':
		var nodes []Node
		if err := json.Unmarshal(trimmed, &nodes); err == nil {
			c.Nodes = nodes
			return nil
		}
	}

	// Mixed arrays, numbers and objects are carried through untouched.
	if !json.Valid(trimmed) {
		return fmt.Errorf("invalid children JSON")
	}
	c.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid plan")

// Validate checks the minimal shape the rest of the pipeline depends on.
func Validate(p *Plan) error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalid)
	}
	if p.Layout == "" && len(p.Structure) == 0 {
		return fmt.Errorf("%w: plan has neither layout nor structure", ErrInvalid)
	}
	for i := range p.Structure {
		if err := validateNode(&p.Structure[i], fmt.Sprintf("structure[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, path string) error {
	if n.Component == "" {
		return fmt.Errorf("%w: %s has no component name", ErrInvalid, path)
	}
	for i := range n.Children.Nodes {
		if err := validateNode(&n.Children.Nodes[i], fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes and validates a plan from JSON.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Components returns the distinct component names used in the plan, in
// first-seen order.
func (p *Plan) Components() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			if !seen[n.Component] {
				seen[n.Component] = true
				names = append(names, n.Component)
			}
			walk(n.Children.Nodes)
		}
	}
	walk(p.Structure)
	return names
}
