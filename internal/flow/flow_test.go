package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/yolo-japan/lineassist/internal/models"
)

type fakeStore struct {
	flow  *models.ChatFlow
	execs []models.FlowExecution
}

func (s *fakeStore) GetFlowByID(id string) (*models.ChatFlow, error) {
	if s.flow != nil && s.flow.ID == id {
		return s.flow, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveFlowExecution(exec models.FlowExecution) error {
	s.execs = append(s.execs, exec)
	return nil
}

type fakeFAQ struct {
	results []models.FAQResult
}

func (f *fakeFAQ) SearchFAQs(query, service string, limit int) ([]models.FAQResult, error) {
	return f.results, nil
}

func newContext(msg string) *Context {
	return &Context{UserID: "U1", Lang: "ja", UserMessage: msg, Variables: map[string]string{}}
}

func textNode(id, content, next string) (models.FlowNode, models.FlowEdge) {
	node := models.FlowNode{
		ID:     id,
		Kind:   models.NodeKindSendMessage,
		Config: models.NodeConfig{Content: models.LocalizedText{"ja": content}},
	}
	edge := models.FlowEdge{ID: "e-" + id, Source: id, Target: next}
	return node, edge
}

func TestExecuteLinearFlow(t *testing.T) {
	msgA, edgeA := textNode("a", "最初のメッセージ", "b")
	msgB, edgeB := textNode("b", "次のメッセージ", "end")
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			msgA, msgB,
			{ID: "end", Kind: models.NodeKindEnd},
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "a"},
			edgeA, edgeB,
		},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	result, err := exec.Execute("f1", newContext("start"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if result.ShouldWaitForInput {
		t.Errorf("linear flow should not suspend")
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].Text != "最初のメッセージ" {
		t.Errorf("unexpected first message: %q", result.Messages[0].Text)
	}
	if result.FinalNodeID != "end" {
		t.Errorf("expected final node end, got %q", result.FinalNodeID)
	}

	last := store.execs[len(store.execs)-1]
	if last.Status != models.ExecutionCompleted {
		t.Errorf("expected completed execution record, got %s", last.Status)
	}
}

func quickReplyFlow() models.FlowDefinition {
	yes, yesEdge := textNode("yes-msg", "応募ありがとうございます", "")
	no, noEdge := textNode("no-msg", "またどうぞ", "")
	return models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "q", Kind: models.NodeKindQuickReply, Config: models.NodeConfig{
				Message: models.LocalizedText{"ja": "応募しますか？"},
			}},
			yes, no,
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "q"},
			{ID: "e1", Source: "q", Target: "yes-msg", Label: "はい", Order: 1},
			{ID: "e2", Source: "q", Target: "no-msg", Label: "いいえ", Order: 2},
			yesEdge, noEdge,
		},
	}
}

func TestQuickReplySuspendAndResume(t *testing.T) {
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: quickReplyFlow()}}
	exec := NewExecutor(store, nil)

	// first turn suspends at the quick_reply node
	result, err := exec.Execute("f1", newContext("start"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !result.ShouldWaitForInput || result.WaitNodeID != "q" {
		t.Fatalf("expected suspension at q, got %+v", result)
	}
	if len(result.Messages) != 1 || result.Messages[0].QuickReply == nil {
		t.Fatalf("expected one quick reply message, got %+v", result.Messages)
	}
	if n := len(result.Messages[0].QuickReply.Items); n != 2 {
		t.Errorf("expected 2 buttons, got %d", n)
	}

	// resume with the second button's label takes the second branch
	result, err = exec.Execute("f1", newContext("いいえ"), "q")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if result.ShouldWaitForInput {
		t.Errorf("resume should complete, got suspension")
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "またどうぞ" {
		t.Errorf("expected no-branch message, got %+v", result.Messages)
	}
}

func TestQuickReplyFallbackToFirstEdge(t *testing.T) {
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: quickReplyFlow()}}
	exec := NewExecutor(store, nil)

	result, err := exec.Execute("f1", newContext("free text that matches nothing"), "q")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "応募ありがとうございます" {
		t.Errorf("expected first-edge fallback, got %+v", result.Messages)
	}
}

func TestWaitUserInputBindsVariable(t *testing.T) {
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "w", Kind: models.NodeKindWaitUserInput, Config: models.NodeConfig{
				Prompt:       models.LocalizedText{"ja": "お名前を教えてください"},
				VariableName: "name",
				NextNodeID:   "echo",
			}},
			{ID: "echo", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "{{variables.name}}さん、こんにちは"},
			}},
		},
		Edges: []models.FlowEdge{{ID: "e0", Source: "t", Target: "w"}},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	// first visit prompts and suspends
	result, err := exec.Execute("f1", newContext("start"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !result.ShouldWaitForInput || result.WaitNodeID != "w" {
		t.Fatalf("expected suspension at w, got %+v", result)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "お名前を教えてください" {
		t.Errorf("expected prompt message, got %+v", result.Messages)
	}

	// resume captures the reply into the bound variable
	ctx := newContext("田中")
	ctx.Variables = result.Variables
	result, err = exec.Execute("f1", ctx, "w")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "田中さん、こんにちは" {
		t.Errorf("expected interpolated message, got %+v", result.Messages)
	}
	if result.Variables["name"] != "田中" {
		t.Errorf("expected bound variable, got %q", result.Variables["name"])
	}
}

func TestCardSiblingsMergeIntoCarousel(t *testing.T) {
	cardConfig := func(text string) models.NodeConfig {
		return models.NodeConfig{
			Text: models.LocalizedText{"ja": text},
			Columns: []models.CardColumnConfig{{
				Text: models.LocalizedText{"ja": text},
				Buttons: []models.CardButton{{
					Label: models.LocalizedText{"ja": "回答を見る"},
					Text:  text + "の回答",
				}},
			}},
		}
	}
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "hub", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "よくある質問です"},
			}},
			{ID: "c1", Kind: models.NodeKindCard, Config: cardConfig("質問1")},
			{ID: "c2", Kind: models.NodeKindCard, Config: cardConfig("質問2")},
			{ID: "c3", Kind: models.NodeKindCard, Config: cardConfig("質問3")},
			{ID: "a1", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "回答1です"},
			}},
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "hub"},
			{ID: "e1", Source: "hub", Target: "c1", Order: 1},
			{ID: "e2", Source: "hub", Target: "c2", Order: 2},
			{ID: "e3", Source: "hub", Target: "c3", Order: 3},
			{ID: "e4", Source: "c1", Target: "a1"},
		},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	result, err := exec.Execute("f1", newContext("faq"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !result.ShouldWaitForInput || result.WaitNodeID != "c1" {
		t.Fatalf("expected suspension at first card, got %+v", result)
	}
	// one intro text plus exactly one merged carousel
	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	carousel := result.Messages[1]
	if carousel.Template == nil || carousel.Template.Type != "carousel" {
		t.Fatalf("expected carousel template, got %+v", carousel)
	}
	if len(carousel.Template.Columns) != 3 {
		t.Errorf("expected 3 merged columns, got %d", len(carousel.Template.Columns))
	}
	// postback data identifies the owning card
	data := carousel.Template.Columns[0].Actions[0].Data
	if !strings.Contains(data, "action=card_choice") || !strings.Contains(data, "cardId=c1") {
		t.Errorf("unexpected postback data: %q", data)
	}

	// postback resume resolves through the selected card's edge
	ctx := newContext("質問1の回答")
	ctx.SelectedCardID = "c1"
	result, err = exec.Execute("f1", ctx, "c1")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "回答1です" {
		t.Errorf("expected card answer, got %+v", result.Messages)
	}
}

func TestCarouselColumnCap(t *testing.T) {
	columns := make([]models.CardColumnConfig, 12)
	for i := range columns {
		columns[i] = models.CardColumnConfig{
			Text:    models.LocalizedText{"ja": "col"},
			Buttons: []models.CardButton{{Label: models.LocalizedText{"ja": "ok"}}},
		}
	}
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "c", Kind: models.NodeKindCard, Config: models.NodeConfig{Columns: columns}},
		},
		Edges: []models.FlowEdge{{ID: "e0", Source: "t", Target: "c"}},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	result, err := exec.Execute("f1", newContext("x"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if n := len(result.Messages[0].Template.Columns); n != models.MaxCarouselColumns {
		t.Errorf("expected %d columns, got %d", models.MaxCarouselColumns, n)
	}
}

func TestDelaySplitsMessages(t *testing.T) {
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "a", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content:           models.LocalizedText{"ja": "すぐ送る"},
				DelayAfterSeconds: 5,
			}},
			{ID: "b", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content:           models.LocalizedText{"ja": "あとで送る"},
				DelayAfterSeconds: 10,
			}},
			{ID: "c", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "これもあとで"},
			}},
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "a"},
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	result, err := exec.Execute("f1", newContext("x"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "すぐ送る" {
		t.Errorf("expected one immediate message, got %+v", result.Messages)
	}
	if len(result.DelayedMessages) != 2 {
		t.Errorf("expected 2 delayed messages, got %d", len(result.DelayedMessages))
	}
	// max-wins: the later 10s delay overrides the earlier 5s
	if result.DelaySeconds != 10 {
		t.Errorf("expected delay 10, got %d", result.DelaySeconds)
	}
}

func TestFAQSearchBranches(t *testing.T) {
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "s", Kind: models.NodeKindFAQSearch, Config: models.NodeConfig{Threshold: 0.5}},
			{ID: "hit", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "{{variables.faqTopAnswer}}"},
			}},
			{ID: "miss", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "見つかりませんでした"},
			}},
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "s"},
			{ID: "e1", Source: "s", Target: "hit", Label: "found"},
			{ID: "e2", Source: "s", Target: "miss", Label: "notFound"},
		},
	}

	faq := &fakeFAQ{results: []models.FAQResult{
		{ID: "f1", Question: "応募方法", Answer: "アプリから応募できます", Score: 0.9},
	}}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, faq)

	result, err := exec.Execute("f1", newContext("応募したい"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "アプリから応募できます" {
		t.Errorf("expected found branch with answer, got %+v", result.Messages)
	}

	// below-threshold hits take the notFound branch
	faq.results = []models.FAQResult{{ID: "f1", Answer: "low", Score: 0.2}}
	result, err = exec.Execute("f1", newContext("無関係な質問"), "")
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != "見つかりませんでした" {
		t.Errorf("expected notFound branch, got %+v", result.Messages)
	}
}

func TestStepCapAborts(t *testing.T) {
	// a → b → a cycle
	def := models.FlowDefinition{
		Nodes: []models.FlowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "a", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "ループ"},
			}},
			{ID: "b", Kind: models.NodeKindSendMessage, Config: models.NodeConfig{
				Content: models.LocalizedText{"ja": "ループ"},
			}},
		},
		Edges: []models.FlowEdge{
			{ID: "e0", Source: "t", Target: "a"},
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}
	store := &fakeStore{flow: &models.ChatFlow{ID: "f1", Definition: def}}
	exec := NewExecutor(store, nil)

	_, err := exec.Execute("f1", newContext("x"), "")
	if !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
	last := store.execs[len(store.execs)-1]
	if last.Status != models.ExecutionFailed {
		t.Errorf("expected failed execution record, got %s", last.Status)
	}
}

func TestExecuteUnknownFlow(t *testing.T) {
	exec := NewExecutor(&fakeStore{}, nil)
	_, err := exec.Execute("missing", newContext("x"), "")
	if !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestExpandVariables(t *testing.T) {
	ctx := &Context{
		Lang:        "en",
		Service:     "yolo_work",
		UserMessage: "hi",
		Variables:   map[string]string{"name": "Tan"},
	}
	got := expandVariables("Hello {{user.name}}, service {{service}}, lang {{lang}}: {{userMessage}}", ctx)
	want := "Hello Tan, service yolo_work, lang en: hi"
	if got != want {
		t.Errorf("expandVariables = %q, want %q", got, want)
	}

	// unknown placeholders stay verbatim
	got = expandVariables("{{variables.missing}}", ctx)
	if got != "{{variables.missing}}" {
		t.Errorf("expected unresolved placeholder kept, got %q", got)
	}
}

func TestFindTriggeredFlow(t *testing.T) {
	flows := []models.ChatFlow{
		{ID: "kw", TriggerType: models.TriggerKeyword, TriggerValue: "FAQ"},
		{ID: "pat", TriggerType: models.TriggerPattern, TriggerValue: "応募"},
	}
	if f := FindTriggeredFlow(flows, "FAQ"); f == nil || f.ID != "kw" {
		t.Errorf("keyword trigger failed: %+v", f)
	}
	if f := FindTriggeredFlow(flows, "応募について知りたい"); f == nil || f.ID != "pat" {
		t.Errorf("pattern trigger failed: %+v", f)
	}
	if f := FindTriggeredFlow(flows, "こんにちは"); f != nil {
		t.Errorf("expected no trigger, got %+v", f)
	}
}
