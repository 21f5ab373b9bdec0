package diagnosis

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yolo-japan/lineassist/internal/models"
)

const (
	finalQuestion = 7
	maxIndustries = 3
)

// AnswerNone ends the industry question without picking another industry.
const AnswerNone = "none"

// AnswerOtherRegion switches the location question to the region drill down.
const AnswerOtherRegion = "other_region"

// Store is the persistence surface the machine needs.
type Store interface {
	GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error)
	SaveDiagnosisResult(userID string, answers models.DiagnosisAnswers) error
	IncrementDiagnosisCount(userID string) error
}

// Preset carries answers collected before the diagnosis started, for example
// from a flow that already asked about location or urgency. Preset questions
// are skipped.
type Preset struct {
	Prefecture string
	Region     string
	Urgency    string
}

// Machine drives the seven question diagnosis. It owns question rendering and
// answer transitions; callers persist the conversation state between turns.
type Machine struct {
	store Store
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// Start begins a diagnosis for the user. Questions answered in a previous run
// (residency, gender) are copied from the stored result and skipped, as are
// any preset answers. Returns the fresh conversation state and the messages
// opening the session.
func (m *Machine) Start(userID, lang string, preset *Preset) (*models.ConversationState, []models.Message, error) {
	answers := models.DiagnosisAnswers{}
	question := 1

	prev, err := m.store.GetLatestDiagnosisResult(userID)
	if err != nil {
		slog.Warn("Machine.Start could not load previous diagnosis", "user_id", userID, "error", err)
		prev = nil
	}
	if prev != nil {
		if prev.LivingInJapan != "" {
			answers.LivingInJapan = prev.LivingInJapan
			question = 2
		}
		if prev.Gender != "" {
			answers.Gender = prev.Gender
			if question <= 2 {
				question = 3
			}
		}
	}
	if preset != nil {
		if preset.Urgency != "" {
			answers.Urgency = presetUrgency(preset.Urgency)
			if question <= 3 {
				question = 4
			}
		}
		if preset.Prefecture != "" {
			answers.Prefecture = preset.Prefecture
			answers.Region = preset.Region
			if answers.Region == "" {
				answers.Region = RegionOf(preset.Prefecture)
			}
			if question <= 4 {
				question = 5
			}
		}
	}

	diag := &models.DiagnosisState{CurrentQuestion: question, Answers: answers}
	if question == 4 {
		diag.SubStep = models.StepSelectMajor
	}
	state := models.NewDiagnosisConversation(lang, diag)

	slog.Info("Machine.Start", "user_id", userID, "lang", lang, "first_question", question)

	qm, err := m.questionMessage(state, lang)
	if err != nil {
		return nil, nil, err
	}
	intro := models.NewTextMessage(introText.Resolve(lang))
	return state, []models.Message{intro, qm}, nil
}

// Advance applies the user's answer to the current question and returns the
// next messages. done is true once the diagnosis finished; the state is then
// already switched to the followup conversation and the returned messages hold
// the result links.
func (m *Machine) Advance(userID string, state *models.ConversationState, answer string) (msgs []models.Message, done bool, err error) {
	if state == nil || state.Mode != models.ModeDiagnosis || state.Diagnosis == nil {
		return nil, false, models.ErrInvalidState
	}
	diag := state.Diagnosis
	lang := state.Lang
	answer = strings.TrimSpace(answer)

	slog.Debug("Machine.Advance", "user_id", userID, "question", diag.CurrentQuestion, "sub_step", diag.SubStep, "answer", answer)

	switch {
	case diag.CurrentQuestion == 1:
		diag.Answers.LivingInJapan = answer
		diag.CurrentQuestion = 2
		if prev, perr := m.store.GetLatestDiagnosisResult(userID); perr == nil && prev != nil && prev.Gender != "" {
			diag.Answers.Gender = prev.Gender
			diag.CurrentQuestion = 3
		}

	case diag.CurrentQuestion == 2:
		diag.Answers.Gender = answer
		diag.CurrentQuestion = 3

	case diag.CurrentQuestion == 3:
		diag.Answers.Urgency = answer
		diag.CurrentQuestion = 4
		diag.SubStep = models.StepSelectMajor

	case diag.CurrentQuestion == 4 && diag.SubStep == models.StepSelectMajor:
		if answer == AnswerOtherRegion {
			diag.SubStep = models.StepSelectRegion
		} else {
			diag.Answers.Prefecture = answer
			diag.Answers.Region = RegionOf(answer)
			diag.CurrentQuestion = 5
			diag.SubStep = ""
		}

	case diag.CurrentQuestion == 4 && diag.SubStep == models.StepSelectRegion:
		diag.SelectedRegion = answer
		diag.SubStep = models.StepSelectPrefecture

	case diag.CurrentQuestion == 4 && diag.SubStep == models.StepSelectPrefecture:
		diag.Answers.Prefecture = answer
		diag.Answers.Region = diag.SelectedRegion
		diag.CurrentQuestion = 5
		diag.SubStep = ""
		diag.SelectedRegion = ""

	case diag.CurrentQuestion == 5:
		diag.Answers.JapaneseLevel = answer
		diag.CurrentQuestion = 6
		diag.SelectedIndustries = nil

	case diag.CurrentQuestion == 6:
		if answer == AnswerNone {
			diag.CurrentQuestion = 7
		} else {
			diag.SelectedIndustries = append(diag.SelectedIndustries, answer)
			if len(diag.SelectedIndustries) >= maxIndustries {
				diag.CurrentQuestion = 7
			}
		}
		if diag.CurrentQuestion == 7 && len(diag.SelectedIndustries) > 0 {
			diag.Answers.Industry = strings.Join(diag.SelectedIndustries, ",")
		}

	case diag.CurrentQuestion == finalQuestion:
		diag.Answers.WorkStyle = answer
		return m.finish(userID, state)

	default:
		return nil, false, fmt.Errorf("diagnosis at unexpected question %d: %w", diag.CurrentQuestion, models.ErrInvalidState)
	}

	qm, err := m.questionMessage(state, lang)
	if err != nil {
		return nil, false, err
	}
	return []models.Message{qm}, false, nil
}

// finish persists the answers, builds the ranked result links and hands the
// conversation over to the followup questions.
func (m *Machine) finish(userID string, state *models.ConversationState) ([]models.Message, bool, error) {
	diag := state.Diagnosis
	lang := state.Lang
	if len(diag.SelectedIndustries) > 0 {
		diag.Answers.Industry = strings.Join(diag.SelectedIndustries, ",")
	}

	if err := m.store.SaveDiagnosisResult(userID, diag.Answers); err != nil {
		slog.Error("Machine.finish failed to save diagnosis result", "user_id", userID, "error", err)
	}
	if err := m.store.IncrementDiagnosisCount(userID); err != nil {
		slog.Warn("Machine.finish failed to bump diagnosis count", "user_id", userID, "error", err)
	}

	links := BuildURLsByLevel(diag.Answers, lang)
	slog.Info("Machine.finish", "user_id", userID, "lang", lang,
		"japanese_level", diag.Answers.JapaneseLevel, "prefecture", diag.Answers.Prefecture, "links", len(links))

	state.Mode = models.ModeFollowup
	state.Diagnosis = nil
	state.Followup = &models.FollowupState{Step: models.StepAskApplied}

	result := resultMessage(resultTitle.Resolve(lang), links)
	return []models.Message{result}, true, nil
}

// questionMessage renders the quick reply for the state's current question.
func (m *Machine) questionMessage(state *models.ConversationState, lang string) (models.Message, error) {
	diag := state.Diagnosis
	q := diag.CurrentQuestion

	if q == 4 {
		switch diag.SubStep {
		case models.StepSelectRegion:
			return regionQuestion(lang), nil
		case models.StepSelectPrefecture:
			return prefectureQuestion(diag.SelectedRegion, lang), nil
		}
	}
	if q == 6 {
		return industryQuestion(diag, lang), nil
	}

	text, items, ok := mainQuestion(q, lang)
	if !ok {
		return models.Message{}, fmt.Errorf("no question %d: %w", q, models.ErrInvalidState)
	}
	return models.NewQuickReplyMessage(progressPrefix(q, lang)+"\n"+text, items), nil
}

func presetUrgency(v string) string {
	switch v {
	case "immediate":
		return "immediate"
	case "soon":
		return "within_2weeks"
	default:
		return "not_urgent"
	}
}
