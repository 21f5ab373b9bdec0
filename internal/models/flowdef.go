package models

import (
	"encoding/json"
	"time"
)

// NodeKind is the explicit behavior tag stored on each flow node at authoring
// time. Node types are never re-derived from id strings.
type NodeKind string

const (
	NodeKindTrigger       NodeKind = "trigger"
	NodeKindSendMessage   NodeKind = "send_message"
	NodeKindQuickReply    NodeKind = "quick_reply"
	NodeKindCard          NodeKind = "card"
	NodeKindWaitUserInput NodeKind = "wait_user_input"
	NodeKindFAQSearch     NodeKind = "faq_search"
	NodeKindEnd           NodeKind = "end"
)

// TriggerType identifies how a flow is started.
type TriggerType string

const (
	TriggerKeyword  TriggerType = "keyword"
	TriggerPostback TriggerType = "postback"
	TriggerPattern  TriggerType = "message_pattern"
)

// LocalizedText is authored text that is either a plain string or a
// per-language map. The JSON forms `"hello"` and `{"ja": "...", "en": "..."}`
// both unmarshal into it; a plain string is stored under the base language.
type LocalizedText map[string]string

// BaseLang is the fallback language for localized text and labels.
const BaseLang = "ja"

// UnmarshalJSON accepts both the plain-string and per-language object forms.
func (t *LocalizedText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = LocalizedText{BaseLang: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = m
	return nil
}

// Resolve returns the text for lang, falling back to the base language and
// then to any available entry.
func (t LocalizedText) Resolve(lang string) string {
	if t == nil {
		return ""
	}
	if v, ok := t[lang]; ok && v != "" {
		return v
	}
	if v, ok := t[BaseLang]; ok && v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

// CardButton is one button of an authored card column.
type CardButton struct {
	Label LocalizedText `json:"label"`
	Text  string        `json:"text,omitempty"`
	Type  string        `json:"type,omitempty"` // postback (default) | uri
	URL   string        `json:"url,omitempty"`
}

// CardColumnConfig is one authored carousel column.
type CardColumnConfig struct {
	Title    LocalizedText `json:"title,omitempty"`
	Text     LocalizedText `json:"text"`
	ImageURL string        `json:"imageUrl,omitempty"`
	Buttons  []CardButton  `json:"buttons,omitempty"`
}

// NodeConfig carries the per-kind settings of a flow node. Only the fields
// relevant to the node's kind are authored; the rest stay zero.
type NodeConfig struct {
	// send_message
	Content           LocalizedText `json:"content,omitempty"`
	DelayAfterSeconds int           `json:"delayAfterSeconds,omitempty"`

	// quick_reply
	Message LocalizedText `json:"message,omitempty"`

	// card
	Title    LocalizedText      `json:"title,omitempty"`
	Text     LocalizedText      `json:"text,omitempty"`
	ImageURL string             `json:"imageUrl,omitempty"`
	Columns  []CardColumnConfig `json:"columns,omitempty"`

	// wait_user_input
	Prompt       LocalizedText `json:"prompt,omitempty"`
	VariableName string        `json:"variableName,omitempty"`
	NextNodeID   string        `json:"nextNodeId,omitempty"`

	// faq_search
	Service    string  `json:"service,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	MaxResults int     `json:"maxResults,omitempty"`
}

// FlowNode is one node of an authored flow graph.
type FlowNode struct {
	ID     string     `json:"id"`
	Kind   NodeKind   `json:"kind"`
	Config NodeConfig `json:"config"`
}

// FlowEdge is one directed edge of an authored flow graph. Label doubles as
// the quick-reply button text and as the branch key on resume; for faq_search
// nodes it is "found" or "notFound".
type FlowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Order  int    `json:"order,omitempty"`
}

// FlowDefinition is the immutable node/edge graph of one authored flow.
// The executor reads it and never mutates it.
type FlowDefinition struct {
	Nodes     []FlowNode        `json:"nodes"`
	Edges     []FlowEdge        `json:"edges"`
	Variables map[string]string `json:"variables,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (d *FlowDefinition) NodeByID(id string) *FlowNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// TriggerNode returns the flow's trigger node, or nil.
func (d *FlowDefinition) TriggerNode() *FlowNode {
	for i := range d.Nodes {
		if d.Nodes[i].Kind == NodeKindTrigger {
			return &d.Nodes[i]
		}
	}
	return nil
}

// OutgoingEdges returns the edges leaving nodeID sorted by Order (ascending,
// declaration order breaking ties).
func (d *FlowDefinition) OutgoingEdges(nodeID string) []FlowEdge {
	var out []FlowEdge
	for _, e := range d.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	// insertion sort keeps declaration order for equal Order values
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Order < out[j-1].Order; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ParentEdge returns the first edge pointing at nodeID, or nil.
func (d *FlowDefinition) ParentEdge(nodeID string) *FlowEdge {
	for i := range d.Edges {
		if d.Edges[i].Target == nodeID {
			return &d.Edges[i]
		}
	}
	return nil
}

// ChatFlow is one stored, externally-authored flow.
type ChatFlow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	TriggerType  TriggerType    `json:"triggerType"`
	TriggerValue string         `json:"triggerValue,omitempty"`
	Service      string         `json:"service,omitempty"`
	IsActive     bool           `json:"isActive"`
	Priority     int            `json:"priority"`
	Definition   FlowDefinition `json:"flowDefinition"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FlowExecutionStatus tracks the lifecycle of one recorded flow run.
type FlowExecutionStatus string

const (
	ExecutionRunning   FlowExecutionStatus = "running"
	ExecutionCompleted FlowExecutionStatus = "completed"
	ExecutionFailed    FlowExecutionStatus = "failed"
)

// FlowExecution is the audit record of one flow run, kept for operator review.
type FlowExecution struct {
	ID            string              `json:"id"`
	FlowID        string              `json:"flowId"`
	UserID        string              `json:"userId"`
	Status        FlowExecutionStatus `json:"status"`
	CurrentNodeID string              `json:"currentNodeId,omitempty"`
	ErrorMessage  string              `json:"errorMessage,omitempty"`
	StartedAt     time.Time           `json:"startedAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}
