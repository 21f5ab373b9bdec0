package models

import (
	"errors"
	"time"
)

// Mode identifies which handler currently owns a user's conversation.
type Mode string

const (
	// ModeDiagnosis is the 7-question job diagnosis questionnaire.
	ModeDiagnosis Mode = "diagnosis"
	// ModeFollowup is the post-diagnosis satisfaction dialogue.
	ModeFollowup Mode = "followup"
	// ModeFlow is an author-defined flow waiting for user input.
	ModeFlow Mode = "flow"
	// ModeAIChat is the open-ended assistant mode (default).
	ModeAIChat Mode = "ai_chat"
)

// LocationStep is the sub-state of the diagnosis location question.
type LocationStep string

const (
	// StepSelectMajor offers the six major prefectures plus "other region".
	StepSelectMajor LocationStep = "select_major"
	// StepSelectRegion asks for one of the eight regions.
	StepSelectRegion LocationStep = "select_region"
	// StepSelectPrefecture asks for a prefecture within the chosen region.
	StepSelectPrefecture LocationStep = "select_prefecture"
)

// FollowupStep is the current state of the followup dialogue.
type FollowupStep string

const (
	StepAskApplied FollowupStep = "ask_applied"
	StepAskCount   FollowupStep = "ask_count"
	StepAskTrouble FollowupStep = "ask_trouble"
	StepComplete   FollowupStep = "complete"
)

// DiagnosisAnswers holds the accumulated scalar answers of one diagnosis run.
// Columns are written to the results store only on completion.
type DiagnosisAnswers struct {
	LivingInJapan string `json:"living_in_japan,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
	Region        string `json:"region,omitempty"`
	Prefecture    string `json:"prefecture,omitempty"`
	JapaneseLevel string `json:"japanese_level,omitempty"`
	Industry      string `json:"industry,omitempty"` // comma-separated keys
	WorkStyle     string `json:"work_style,omitempty"`
}

// DiagnosisState is the in-progress questionnaire state.
type DiagnosisState struct {
	CurrentQuestion    int              `json:"currentQuestion"`
	Answers            DiagnosisAnswers `json:"answers"`
	SelectedIndustries []string         `json:"selectedIndustries,omitempty"`
	SubStep            LocationStep     `json:"subStep,omitempty"`
	SelectedRegion     string           `json:"selectedRegion,omitempty"`
}

// FollowupAnswers holds the accumulated followup dialogue answers. They are
// kept after completion for analytics.
type FollowupAnswers struct {
	HasApplied       string `json:"hasApplied,omitempty"`       // yes | no | not_yet
	ApplicationCount string `json:"applicationCount,omitempty"` // 1 | 2-3 | 4+
	Trouble          string `json:"trouble,omitempty"`          // no_match | language | how_to | not_yet
}

// FollowupState is the in-progress followup dialogue state.
type FollowupState struct {
	Step    FollowupStep    `json:"step"`
	Answers FollowupAnswers `json:"answers"`
}

// FlowProgress is the resume point of a suspended author-defined flow.
type FlowProgress struct {
	FlowID        string            `json:"flowId"`
	WaitingNodeID string            `json:"waitingNodeId"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// ErrInvalidState signals a state record whose variants do not match its mode.
var ErrInvalidState = errors.New("conversation state variant does not match mode")

// ConversationState is the single persisted record per user: a tagged union
// keyed by Mode. Exactly the variant matching Mode is populated; handlers
// switch on Mode rather than probing optional fields. The one exception is a
// completed followup record, which stays on the state in ai_chat mode so the
// collected answers remain available for analytics.
type ConversationState struct {
	Mode      Mode            `json:"mode"`
	Lang      string          `json:"lang,omitempty"`
	Diagnosis *DiagnosisState `json:"diagnosis,omitempty"`
	Followup  *FollowupState  `json:"followup,omitempty"`
	Flow      *FlowProgress   `json:"flow,omitempty"`
	UpdatedAt time.Time       `json:"-"`
}

// NewDiagnosisConversation builds a fresh state record owned by the diagnosis
// questionnaire.
func NewDiagnosisConversation(lang string, d *DiagnosisState) *ConversationState {
	return &ConversationState{Mode: ModeDiagnosis, Lang: lang, Diagnosis: d}
}

// NewFollowupConversation builds a state record owned by the followup dialogue.
func NewFollowupConversation(lang string, f *FollowupState) *ConversationState {
	return &ConversationState{Mode: ModeFollowup, Lang: lang, Followup: f}
}

// NewFlowConversation builds a state record owned by a suspended flow.
func NewFlowConversation(lang string, p *FlowProgress) *ConversationState {
	return &ConversationState{Mode: ModeFlow, Lang: lang, Flow: p}
}

// NewAIChatConversation builds the default open-chat state record.
func NewAIChatConversation(lang string) *ConversationState {
	return &ConversationState{Mode: ModeAIChat, Lang: lang}
}

// Validate checks that exactly the variant matching Mode is populated.
// Persisted records that fail validation are treated as "no state" by callers.
func (s *ConversationState) Validate() error {
	switch s.Mode {
	case ModeDiagnosis:
		if s.Diagnosis == nil || s.Followup != nil || s.Flow != nil {
			return ErrInvalidState
		}
	case ModeFollowup:
		if s.Followup == nil || s.Diagnosis != nil || s.Flow != nil {
			return ErrInvalidState
		}
	case ModeFlow:
		if s.Flow == nil || s.Diagnosis != nil || s.Followup != nil {
			return ErrInvalidState
		}
	case ModeAIChat:
		if s.Diagnosis != nil || s.Flow != nil {
			return ErrInvalidState
		}
		// A finished followup rides along with its step cleared.
		if s.Followup != nil && s.Followup.Step != "" {
			return ErrInvalidState
		}
	default:
		return ErrInvalidState
	}
	return nil
}

// UserStatus is the per-user profile and usage counter row.
type UserStatus struct {
	UserID         string    `json:"user_id"`
	Lang           string    `json:"lang"`
	AIChatCount    int       `json:"ai_chat_count"`
	DiagnosisCount int       `json:"diagnosis_count"`
	TotalUsage     int       `json:"total_usage_count"`
	FirstUsed      time.Time `json:"first_used"`
	LastUsed       time.Time `json:"last_used"`
}

// ChatTurn is one entry of the stored open-chat history.
type ChatTurn struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// FAQResult is one ranked FAQ answer snippet.
type FAQResult struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Service  string  `json:"service,omitempty"`
	Score    float64 `json:"score"`
}
