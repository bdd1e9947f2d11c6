// Package proposals decodes LLM-suggested graph edits into a closed set of
// operation types.
package proposals

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Action string

const (
	ActionAddNode     Action = "addNode"
	ActionAddEdge     Action = "addEdge"
	ActionRelabelEdge Action = "relabelEdge"
	ActionRemoveNode  Action = "removeNode"
	ActionRemoveEdge  Action = "removeEdge"
)

// Proposal is one of AddNode, AddEdge, RelabelEdge, RemoveNode or RemoveEdge.
type Proposal interface {
	Action() Action
}

type AddNode struct {
	Label           string `json:"label" validate:"required_without=Text"`
	Text            string `json:"text,omitempty"`
	NodeType        string `json:"nodeType,omitempty" validate:"omitempty,oneof=screenshot text attention improvement"`
	Platform        string `json:"platform,omitempty"`
	AfterNode       string `json:"afterNode,omitempty"`
	ConnectionLabel string `json:"connectionLabel,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type AddEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RelabelEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

// RemoveNode names the node by ID; Label is accepted when the author only knew
// the node's caption.
type RemoveNode struct {
	NodeID string `json:"nodeId" validate:"required_without=Label"`
	Label  string `json:"label,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RemoveEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

func (AddNode) Action() Action     { return ActionAddNode }
func (AddEdge) Action() Action     { return ActionAddEdge }
func (RelabelEdge) Action() Action { return ActionRelabelEdge }
func (RemoveNode) Action() Action  { return ActionRemoveNode }
func (RemoveEdge) Action() Action  { return ActionRemoveEdge }

// Skipped records a proposal that was not applied and why.
type Skipped struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

var validate = validator.New()

// Decode converts raw proposal objects into typed proposals. Entries with an
// unknown action, malformed fields or failing validation are reported in
// skipped; decoding never fails as a whole.
func Decode(raw []json.RawMessage) ([]Proposal, []Skipped) {
	list := make([]Proposal, 0, len(raw))
	skipped := make([]Skipped, 0)
	for i, item := range raw {
		proposal, action, err := DecodeOne(item)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Action: action, Reason: err.Error()})
			continue
		}
		list = append(list, proposal)
	}
	return list, skipped
}

// DecodeOne decodes and validates a single proposal. The action string is
// returned even on failure so callers can report what was skipped.
func DecodeOne(raw json.RawMessage) (Proposal, string, error) {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, "", fmt.Errorf("malformed proposal")
	}

	var proposal Proposal
	switch Action(head.Action) {
	case ActionAddNode:
		var p AddNode
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, head.Action, fmt.Errorf("malformed %s", head.Action)
		}
		proposal = p
	case ActionAddEdge:
		var p AddEdge
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, head.Action, fmt.Errorf("malformed %s", head.Action)
		}
		proposal = p
	case ActionRelabelEdge:
		var p RelabelEdge
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, head.Action, fmt.Errorf("malformed %s", head.Action)
		}
		proposal = p
	case ActionRemoveNode:
		var p RemoveNode
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, head.Action, fmt.Errorf("malformed %s", head.Action)
		}
		proposal = p
	case ActionRemoveEdge:
		var p RemoveEdge
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, head.Action, fmt.Errorf("malformed %s", head.Action)
		}
		proposal = p
	default:
		return nil, head.Action, fmt.Errorf("unknown action %q", head.Action)
	}

	if err := validate.Struct(proposal); err != nil {
		return nil, head.Action, fmt.Errorf("invalid %s: %s", head.Action, describeValidation(err))
	}
	return proposal, head.Action, nil
}

func describeValidation(err error) string {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s %s", lowerFirst(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}

// Encode writes proposals back out with their action tags, the same shape
// Decode accepts.
func Encode(list []Proposal) (json.RawMessage, error) {
	out := make([]map[string]any, 0, len(list))
	for _, proposal := range list {
		data, err := json.Marshal(proposal)
		if err != nil {
			return nil, fmt.Errorf("encode proposal: %w", err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("encode proposal: %w", err)
		}
		fields["action"] = proposal.Action()
		out = append(out, fields)
	}
	return json.Marshal(out)
}
