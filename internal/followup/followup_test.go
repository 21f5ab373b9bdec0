package followup

import (
	"strings"
	"testing"

	"github.com/yolo-japan/lineassist/internal/models"
)

func newState() *models.ConversationState {
	return models.NewFollowupConversation("ja", &models.FollowupState{Step: models.StepAskApplied})
}

func TestPromptOffersThreeChoices(t *testing.T) {
	msg := NewMachine().Prompt("en")
	if msg.QuickReply == nil || len(msg.QuickReply.Items) != 3 {
		t.Fatalf("unexpected prompt %+v", msg)
	}
	if msg.QuickReply.Items[0].Action.Text != AnswerYes {
		t.Errorf("unexpected first choice %q", msg.QuickReply.Items[0].Action.Text)
	}
	if msg.Text != "Did you apply for any jobs?" {
		t.Errorf("unexpected prompt text %q", msg.Text)
	}
}

func TestEntryPromptOffersYesNo(t *testing.T) {
	msg := NewMachine().EntryPrompt("ja")
	if msg.QuickReply == nil || len(msg.QuickReply.Items) != 2 {
		t.Fatalf("unexpected entry prompt %+v", msg)
	}
	if msg.QuickReply.Items[0].Action.Text != AnswerYes || msg.QuickReply.Items[1].Action.Text != AnswerNo {
		t.Errorf("unexpected entry choices %+v", msg.QuickReply.Items)
	}
	if !strings.Contains(msg.Text, "応募はできましたか") {
		t.Errorf("unexpected entry text %q", msg.Text)
	}
}

func TestAppliedYesLeadsToCount(t *testing.T) {
	m := NewMachine()
	state := newState()

	msgs, done, err := m.Advance("user-1", state, AnswerYes)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if done {
		t.Fatal("followup finished early")
	}
	if state.Followup.Step != models.StepAskCount {
		t.Errorf("expected ask_count step, got %q", state.Followup.Step)
	}
	if state.Followup.Answers.HasApplied != "yes" {
		t.Errorf("unexpected hasApplied %q", state.Followup.Answers.HasApplied)
	}
	if len(msgs) != 1 || len(msgs[0].QuickReply.Items) != 3 {
		t.Fatalf("expected count question, got %+v", msgs)
	}
}

func TestCountFourPlusFinishesImmediately(t *testing.T) {
	m := NewMachine()
	state := newState()
	state.Followup.Step = models.StepAskCount

	msgs, done, err := m.Advance("user-1", state, AnswerCount4Plus)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !done {
		t.Fatal("expected followup to finish")
	}
	if state.Mode != models.ModeAIChat || state.Followup == nil || state.Followup.Step != "" {
		t.Errorf("expected handoff to AI chat with a closed followup record, got %+v", state)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected encouragement plus closing, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "4件") {
		t.Errorf("unexpected encouragement %q", msgs[0].Text)
	}
}

func TestCompletionKeepsAnswers(t *testing.T) {
	m := NewMachine()
	state := newState()

	if _, _, err := m.Advance("user-1", state, AnswerYes); err != nil {
		t.Fatalf("Advance(yes) failed: %v", err)
	}
	_, done, err := m.Advance("user-1", state, AnswerCount4Plus)
	if err != nil {
		t.Fatalf("Advance(4+) failed: %v", err)
	}
	if !done {
		t.Fatal("expected followup to finish")
	}

	fu := state.Followup
	if fu == nil {
		t.Fatal("accumulated answers dropped on completion")
	}
	if fu.Answers.HasApplied != "yes" || fu.Answers.ApplicationCount != "4+" {
		t.Errorf("answers not retained: %+v", fu.Answers)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("completed state must stay valid: %v", err)
	}
}

func TestCountLowOffersSiteLink(t *testing.T) {
	m := NewMachine()
	state := newState()
	state.Followup.Step = models.StepAskCount

	msgs, done, err := m.Advance("user-1", state, AnswerCount1)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if done {
		t.Fatal("should wait for one more message")
	}
	if state.Followup.Step != models.StepComplete {
		t.Errorf("expected complete step, got %q", state.Followup.Step)
	}
	items := msgs[0].QuickReply.Items
	if len(items) != 2 {
		t.Fatalf("expected link and done buttons, got %+v", items)
	}
	uri := items[0].Action.URI
	if !strings.HasPrefix(uri, "https://liff.line.me/") || !strings.Contains(uri, "utm_medium%3Dfollowup") {
		t.Errorf("unexpected site link %q", uri)
	}

	// Any next message closes the conversation.
	msgs, done, err = m.Advance("user-1", state, AnswerDone)
	if err != nil {
		t.Fatalf("closing Advance failed: %v", err)
	}
	if !done || state.Mode != models.ModeAIChat {
		t.Errorf("expected AI chat handoff, done=%v state=%+v", done, state)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "応援") {
		t.Errorf("unexpected closing message %+v", msgs)
	}
}

func TestTroubleBranch(t *testing.T) {
	m := NewMachine()
	state := newState()

	if _, _, err := m.Advance("user-1", state, AnswerNo); err != nil {
		t.Fatalf("Advance(no) failed: %v", err)
	}
	if state.Followup.Step != models.StepAskTrouble {
		t.Fatalf("expected trouble step, got %q", state.Followup.Step)
	}

	msgs, done, err := m.Advance("user-1", state, AnswerLanguage)
	if err != nil {
		t.Fatalf("Advance(language) failed: %v", err)
	}
	if done {
		t.Fatal("should wait for one more message")
	}
	if state.Followup.Answers.Trouble != "language" {
		t.Errorf("unexpected trouble %q", state.Followup.Answers.Trouble)
	}
	if !strings.Contains(msgs[0].Text, "日本語") {
		t.Errorf("unexpected advice %q", msgs[0].Text)
	}
}

func TestFreeTextRepeatsQuestion(t *testing.T) {
	m := NewMachine()
	state := newState()

	msgs, done, err := m.Advance("user-1", state, "thanks")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if done {
		t.Fatal("free text must not finish the followup")
	}
	if state.Followup.Step != models.StepAskApplied {
		t.Errorf("step moved unexpectedly to %q", state.Followup.Step)
	}
	if len(msgs) != 1 || msgs[0].QuickReply == nil {
		t.Fatalf("expected the question again, got %+v", msgs)
	}
}

func TestAdvanceRejectsWrongMode(t *testing.T) {
	state := models.NewAIChatConversation("ja")
	if _, _, err := NewMachine().Advance("user-1", state, AnswerYes); err == nil {
		t.Fatal("expected error for non followup state")
	}
}
