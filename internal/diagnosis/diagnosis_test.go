package diagnosis

import (
	"strings"
	"testing"

	"github.com/yolo-japan/lineassist/internal/models"
)

type fakeStore struct {
	prev   *models.DiagnosisAnswers
	saved  []models.DiagnosisAnswers
	counts int
}

func (f *fakeStore) GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error) {
	return f.prev, nil
}

func (f *fakeStore) SaveDiagnosisResult(userID string, answers models.DiagnosisAnswers) error {
	f.saved = append(f.saved, answers)
	return nil
}

func (f *fakeStore) IncrementDiagnosisCount(userID string) error {
	f.counts++
	return nil
}

func quickReplyTexts(t *testing.T, msg models.Message) []string {
	t.Helper()
	if msg.QuickReply == nil {
		t.Fatalf("message has no quick reply: %+v", msg)
	}
	var texts []string
	for _, item := range msg.QuickReply.Items {
		texts = append(texts, item.Action.Text)
	}
	return texts
}

func TestStartFreshBeginsAtQuestionOne(t *testing.T) {
	m := NewMachine(&fakeStore{})

	state, msgs, err := m.Start("user-1", "ja", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state.Mode != models.ModeDiagnosis || state.Diagnosis == nil {
		t.Fatalf("expected diagnosis state, got %+v", state)
	}
	if state.Diagnosis.CurrentQuestion != 1 {
		t.Errorf("expected question 1, got %d", state.Diagnosis.CurrentQuestion)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected intro and question, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Text, "【残り7問】") {
		t.Errorf("expected progress prefix in %q", msgs[1].Text)
	}
	got := quickReplyTexts(t, msgs[1])
	if len(got) != 2 || got[0] != "yes" || got[1] != "no" {
		t.Errorf("unexpected question 1 choices: %v", got)
	}
}

func TestStartSkipsPreviouslyAnswered(t *testing.T) {
	store := &fakeStore{prev: &models.DiagnosisAnswers{LivingInJapan: "yes", Gender: "female"}}
	m := NewMachine(store)

	state, msgs, err := m.Start("user-1", "en", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state.Diagnosis.CurrentQuestion != 3 {
		t.Errorf("expected to skip to question 3, got %d", state.Diagnosis.CurrentQuestion)
	}
	if state.Diagnosis.Answers.Gender != "female" {
		t.Errorf("expected gender carried over, got %q", state.Diagnosis.Answers.Gender)
	}
	if !strings.Contains(msgs[1].Text, "【5 left】") {
		t.Errorf("expected adjusted progress in %q", msgs[1].Text)
	}
}

func TestStartAppliesPreset(t *testing.T) {
	m := NewMachine(&fakeStore{prev: &models.DiagnosisAnswers{LivingInJapan: "yes", Gender: "male"}})

	state, _, err := m.Start("user-1", "ja", &Preset{Prefecture: "osaka", Urgency: "soon"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	diag := state.Diagnosis
	if diag.CurrentQuestion != 5 {
		t.Errorf("expected question 5, got %d", diag.CurrentQuestion)
	}
	if diag.Answers.Urgency != "within_2weeks" {
		t.Errorf("unexpected urgency %q", diag.Answers.Urgency)
	}
	if diag.Answers.Region != "kansai" {
		t.Errorf("expected region derived from prefecture, got %q", diag.Answers.Region)
	}
}

func TestAdvanceFullRun(t *testing.T) {
	store := &fakeStore{}
	m := NewMachine(store)

	state, _, err := m.Start("user-1", "ja", nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	answers := []string{"yes", "male", "immediate", "tokyo", "n3", "food", AnswerNone}
	var done bool
	var msgs []models.Message
	for _, a := range answers {
		msgs, done, err = m.Advance("user-1", state, a)
		if err != nil {
			t.Fatalf("Advance(%q) failed: %v", a, err)
		}
		if done {
			t.Fatalf("diagnosis finished early at %q", a)
		}
	}

	msgs, done, err = m.Advance("user-1", state, "fulltime")
	if err != nil {
		t.Fatalf("final Advance failed: %v", err)
	}
	if !done {
		t.Fatal("expected diagnosis to finish")
	}
	if len(msgs) != 1 || msgs[0].Type != models.MessageTypeFlex {
		t.Fatalf("expected one flex result message, got %+v", msgs)
	}

	if state.Mode != models.ModeFollowup || state.Followup == nil {
		t.Fatalf("expected handoff to followup, got %+v", state)
	}
	if state.Followup.Step != models.StepAskApplied {
		t.Errorf("unexpected followup step %q", state.Followup.Step)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one saved result, got %d", len(store.saved))
	}
	got := store.saved[0]
	if got.Prefecture != "tokyo" || got.Region != "kanto" {
		t.Errorf("unexpected location %q/%q", got.Prefecture, got.Region)
	}
	if got.JapaneseLevel != "n3" || got.Industry != "food" || got.WorkStyle != "fulltime" {
		t.Errorf("unexpected answers %+v", got)
	}
	if store.counts != 1 {
		t.Errorf("expected one diagnosis count bump, got %d", store.counts)
	}
}

func TestAdvanceIsDeterministic(t *testing.T) {
	m := NewMachine(&fakeStore{})

	run := func() (*models.ConversationState, []models.Message) {
		state, _, err := m.Start("user-1", "ja", nil)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		msgs, _, err := m.Advance("user-1", state, "yes")
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		return state, msgs
	}

	firstState, firstMsgs := run()
	secondState, secondMsgs := run()

	if firstState.Diagnosis.CurrentQuestion != secondState.Diagnosis.CurrentQuestion {
		t.Errorf("replayed turn landed on different questions: %d vs %d",
			firstState.Diagnosis.CurrentQuestion, secondState.Diagnosis.CurrentQuestion)
	}
	if firstState.Diagnosis.Answers != secondState.Diagnosis.Answers {
		t.Errorf("replayed turn produced different answers: %+v vs %+v",
			firstState.Diagnosis.Answers, secondState.Diagnosis.Answers)
	}
	if len(firstMsgs) != len(secondMsgs) {
		t.Fatalf("replayed turn produced %d messages vs %d", len(firstMsgs), len(secondMsgs))
	}
	for i := range firstMsgs {
		if firstMsgs[i].Text != secondMsgs[i].Text {
			t.Errorf("message %d differs: %q vs %q", i, firstMsgs[i].Text, secondMsgs[i].Text)
		}
	}
}

func TestLocationDrillDown(t *testing.T) {
	m := NewMachine(&fakeStore{})
	state, _, _ := m.Start("user-1", "ja", nil)

	for _, a := range []string{"yes", "female", "not_urgent"} {
		if _, _, err := m.Advance("user-1", state, a); err != nil {
			t.Fatalf("Advance(%q) failed: %v", a, err)
		}
	}

	msgs, _, err := m.Advance("user-1", state, AnswerOtherRegion)
	if err != nil {
		t.Fatalf("Advance(other_region) failed: %v", err)
	}
	if state.Diagnosis.SubStep != models.StepSelectRegion {
		t.Fatalf("expected region step, got %q", state.Diagnosis.SubStep)
	}
	regions := quickReplyTexts(t, msgs[0])
	if len(regions) != len(Regions) || regions[0] != "hokkaido" {
		t.Errorf("unexpected region choices: %v", regions)
	}

	msgs, _, err = m.Advance("user-1", state, "kyushu")
	if err != nil {
		t.Fatalf("Advance(kyushu) failed: %v", err)
	}
	prefs := quickReplyTexts(t, msgs[0])
	if prefs[0] != "fukuoka" {
		t.Errorf("unexpected prefecture choices: %v", prefs)
	}

	if _, _, err = m.Advance("user-1", state, "okinawa"); err != nil {
		t.Fatalf("Advance(okinawa) failed: %v", err)
	}
	diag := state.Diagnosis
	if diag.CurrentQuestion != 5 {
		t.Errorf("expected question 5, got %d", diag.CurrentQuestion)
	}
	if diag.Answers.Prefecture != "okinawa" || diag.Answers.Region != "kyushu" {
		t.Errorf("unexpected location %q/%q", diag.Answers.Prefecture, diag.Answers.Region)
	}
}

func TestIndustrySelectionCapsAtThree(t *testing.T) {
	m := NewMachine(&fakeStore{})
	state, _, _ := m.Start("user-1", "ja", nil)

	for _, a := range []string{"yes", "male", "immediate", "osaka", "n4"} {
		if _, _, err := m.Advance("user-1", state, a); err != nil {
			t.Fatalf("Advance(%q) failed: %v", a, err)
		}
	}

	msgs, _, err := m.Advance("user-1", state, "food")
	if err != nil {
		t.Fatalf("Advance(food) failed: %v", err)
	}
	// Picked industries disappear from the follow-up choices.
	for _, v := range quickReplyTexts(t, msgs[0]) {
		if v == "food" {
			t.Error("food offered again after being picked")
		}
	}

	if _, _, err = m.Advance("user-1", state, "hotel_ryokan"); err != nil {
		t.Fatalf("Advance(hotel_ryokan) failed: %v", err)
	}
	if _, _, err = m.Advance("user-1", state, "retail_service"); err != nil {
		t.Fatalf("Advance(retail_service) failed: %v", err)
	}

	diag := state.Diagnosis
	if diag.CurrentQuestion != 7 {
		t.Errorf("expected third pick to move to question 7, got %d", diag.CurrentQuestion)
	}
	if diag.Answers.Industry != "food,hotel_ryokan,retail_service" {
		t.Errorf("unexpected industry csv %q", diag.Answers.Industry)
	}
}

func TestBuildSearchURL(t *testing.T) {
	answers := models.DiagnosisAnswers{
		Prefecture:    "tokyo",
		JapaneseLevel: "no_japanese",
		WorkStyle:     "both",
		Industry:      "food,hotel_ryokan",
	}
	u := BuildSearchURL(answers, "ja")

	if !strings.Contains(u, "/ja/recruit/job?") {
		t.Errorf("unexpected path in %q", u)
	}
	for _, want := range []string{
		"area%5B%5D=tokyo",
		"japaneseLevel%5B%5D=n6",
		"workStyle%5B%5D=fulltime",
		"workStyle%5B%5D=parttime",
		"industries%5B%5D=2",
		"industries%5B%5D=16",
		"order=salary",
		"utm_campaign=line_chatbot_diagnosis_ja",
		"utm_source=line",
		"utm_medium=chatbot",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("missing %q in %q", want, u)
		}
	}
}

func TestBuildSearchURLChineseUsesTraditionalPath(t *testing.T) {
	u := BuildSearchURL(models.DiagnosisAnswers{JapaneseLevel: "n2"}, "zh")
	if !strings.Contains(u, "/zh-TW/recruit/job") {
		t.Errorf("expected zh-TW path in %q", u)
	}
}

func TestBuildURLsByLevelWindow(t *testing.T) {
	cases := []struct {
		level string
		want  []string
	}{
		{"n3", []string{"n4", "n3", "n2"}},
		{"n1", []string{"n3", "n2", "n1"}},
		{"no_japanese", []string{"n6", "n5", "n4"}},
		{"n5", []string{"n6", "n5", "n4"}},
	}
	for _, c := range cases {
		items := BuildURLsByLevel(models.DiagnosisAnswers{JapaneseLevel: c.level}, "ja")
		if len(items) != 3 {
			t.Fatalf("%s: expected 3 links, got %d", c.level, len(items))
		}
		for i, param := range c.want {
			if !strings.Contains(items[i].URL, "japaneseLevel%5B%5D="+param) {
				t.Errorf("%s: link %d should target %s: %q", c.level, i, param, items[i].URL)
			}
			if items[i].Description == "" {
				t.Errorf("%s: link %d has no description", c.level, i)
			}
		}
	}

	if items := BuildURLsByLevel(models.DiagnosisAnswers{}, "ja"); items != nil {
		t.Errorf("expected no links without a level, got %v", items)
	}
}

func TestBuildURLsByLevelDescriptions(t *testing.T) {
	items := BuildURLsByLevel(models.DiagnosisAnswers{JapaneseLevel: "n1"}, "ja")
	if !strings.Contains(items[2].Description, "あなたの条件に合う") {
		t.Errorf("expected matching blurb on own level, got %q", items[2].Description)
	}
	if !strings.Contains(items[1].Description, "こちらもチェック") {
		t.Errorf("expected one-down blurb, got %q", items[1].Description)
	}
	if !strings.Contains(items[0].Description, "幅広い選択肢") {
		t.Errorf("expected two-down blurb, got %q", items[0].Description)
	}
}

func TestRegionOf(t *testing.T) {
	if got := RegionOf("okinawa"); got != "kyushu" {
		t.Errorf("okinawa: got %q", got)
	}
	if got := RegionOf("nowhere"); got != "kanto" {
		t.Errorf("expected kanto fallback, got %q", got)
	}
}
