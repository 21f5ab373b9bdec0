package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateTextMessage(t *testing.T) {
	m := NewTextMessage("こんにちは")
	if err := m.Validate(); err != nil {
		t.Errorf("valid text message failed validation: %v", err)
	}

	empty := NewTextMessage("")
	if err := empty.Validate(); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	long := NewTextMessage(strings.Repeat("a", MaxTextLength+1))
	if err := long.Validate(); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}
}

func TestValidateQuickReplyLimits(t *testing.T) {
	items := make([]QuickReplyItem, MaxQuickReplyItems+1)
	for i := range items {
		items[i] = MessageAction("はい", "はい")
	}
	m := NewQuickReplyMessage("question", items)
	if err := m.Validate(); !errors.Is(err, ErrTooManyQuickReplies) {
		t.Errorf("expected ErrTooManyQuickReplies, got %v", err)
	}

	m2 := NewQuickReplyMessage("question", []QuickReplyItem{MessageAction("", "text")})
	if err := m2.Validate(); !errors.Is(err, ErrEmptyActionLabel) {
		t.Errorf("expected ErrEmptyActionLabel, got %v", err)
	}
}

func TestValidateCarousel(t *testing.T) {
	cols := make([]CarouselColumn, MaxCarouselColumns+1)
	for i := range cols {
		cols[i] = CarouselColumn{Text: "c", Actions: []Action{{Type: ActionTypeMessage, Label: "ok", Text: "ok"}}}
	}
	m := Message{Type: MessageTypeTemplate, AltText: "alt", Template: &Template{Type: "carousel", Columns: cols}}
	if err := m.Validate(); !errors.Is(err, ErrTooManyColumns) {
		t.Errorf("expected ErrTooManyColumns, got %v", err)
	}

	m2 := Message{Type: MessageTypeTemplate}
	if err := m2.Validate(); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("expected ErrNoTemplate, got %v", err)
	}
}

func TestTruncateLabel(t *testing.T) {
	if got := TruncateLabel("short"); got != "short" {
		t.Errorf("expected label unchanged, got %q", got)
	}
	long := strings.Repeat("あ", MaxActionLabelLength+5)
	got := TruncateLabel(long)
	if runes := []rune(got); len(runes) != MaxActionLabelLength {
		t.Errorf("expected %d runes after truncation, got %d", MaxActionLabelLength, len(runes))
	}
}

func TestLocalizedTextUnmarshal(t *testing.T) {
	var plain LocalizedText
	if err := json.Unmarshal([]byte(`"おはよう"`), &plain); err != nil {
		t.Fatalf("plain string unmarshal error: %v", err)
	}
	if plain.Resolve("ja") != "おはよう" {
		t.Errorf("plain string should resolve under base language, got %q", plain.Resolve("ja"))
	}

	var obj LocalizedText
	if err := json.Unmarshal([]byte(`{"ja":"こんにちは","en":"hello"}`), &obj); err != nil {
		t.Fatalf("object unmarshal error: %v", err)
	}
	if obj.Resolve("en") != "hello" {
		t.Errorf("expected en text, got %q", obj.Resolve("en"))
	}
	// missing language falls back to ja
	if obj.Resolve("vi") != "こんにちは" {
		t.Errorf("expected ja fallback, got %q", obj.Resolve("vi"))
	}
}

func TestLocalizedTextResolveFallback(t *testing.T) {
	onlyEn := LocalizedText{"en": "hi"}
	if onlyEn.Resolve("ko") != "hi" {
		t.Errorf("expected any-entry fallback, got %q", onlyEn.Resolve("ko"))
	}
	var empty LocalizedText
	if empty.Resolve("ja") != "" {
		t.Errorf("nil localized text should resolve empty")
	}
}

func TestConversationStateValidate(t *testing.T) {
	cases := []struct {
		name  string
		state *ConversationState
		ok    bool
	}{
		{"diagnosis", NewDiagnosisConversation("ja", &DiagnosisState{CurrentQuestion: 1}), true},
		{"followup", NewFollowupConversation("en", &FollowupState{Step: StepAskApplied}), true},
		{"flow", NewFlowConversation("ja", &FlowProgress{FlowID: "f1", WaitingNodeID: "n2"}), true},
		{"ai_chat", NewAIChatConversation("ko"), true},
		{"diagnosis missing variant", &ConversationState{Mode: ModeDiagnosis}, false},
		{"conflicting variants", &ConversationState{
			Mode:      ModeFollowup,
			Followup:  &FollowupState{Step: StepAskCount},
			Diagnosis: &DiagnosisState{},
		}, false},
		{"ai_chat with leftover flow", &ConversationState{Mode: ModeAIChat, Flow: &FlowProgress{}}, false},
		{"ai_chat with finished followup", &ConversationState{
			Mode:     ModeAIChat,
			Followup: &FollowupState{Answers: FollowupAnswers{HasApplied: "yes", ApplicationCount: "4+"}},
		}, true},
		{"ai_chat with unfinished followup", &ConversationState{
			Mode:     ModeAIChat,
			Followup: &FollowupState{Step: StepAskCount},
		}, false},
		{"unknown mode", &ConversationState{Mode: "support"}, false},
	}
	for _, c := range cases {
		err := c.state.Validate()
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s: expected ErrInvalidState, got %v", c.name, err)
		}
	}
}

func TestOutgoingEdgesOrdered(t *testing.T) {
	def := FlowDefinition{
		Nodes: []FlowNode{
			{ID: "q", Kind: NodeKindQuickReply},
			{ID: "a", Kind: NodeKindSendMessage},
			{ID: "b", Kind: NodeKindSendMessage},
			{ID: "c", Kind: NodeKindSendMessage},
		},
		Edges: []FlowEdge{
			{ID: "e2", Source: "q", Target: "b", Label: "B", Order: 2},
			{ID: "e1", Source: "q", Target: "a", Label: "A", Order: 1},
			{ID: "e3", Source: "q", Target: "c", Label: "C", Order: 3},
		},
	}
	out := def.OutgoingEdges("q")
	if len(out) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(out))
	}
	if out[0].Label != "A" || out[1].Label != "B" || out[2].Label != "C" {
		t.Errorf("edges not sorted by order: %v %v %v", out[0].Label, out[1].Label, out[2].Label)
	}
	if def.OutgoingEdges("missing") != nil {
		t.Errorf("expected nil for unknown node")
	}
}

func TestFlowDefinitionLookups(t *testing.T) {
	def := FlowDefinition{
		Nodes: []FlowNode{
			{ID: "t", Kind: NodeKindTrigger},
			{ID: "m", Kind: NodeKindSendMessage},
		},
		Edges: []FlowEdge{{ID: "e1", Source: "t", Target: "m"}},
	}
	if n := def.TriggerNode(); n == nil || n.ID != "t" {
		t.Errorf("trigger node lookup failed: %v", n)
	}
	if n := def.NodeByID("m"); n == nil || n.Kind != NodeKindSendMessage {
		t.Errorf("node lookup failed: %v", n)
	}
	if def.NodeByID("nope") != nil {
		t.Errorf("expected nil for unknown node id")
	}
	if e := def.ParentEdge("m"); e == nil || e.ID != "e1" {
		t.Errorf("parent edge lookup failed: %v", e)
	}
}
