// Package bot routes one webhook turn to whichever conversation handler owns
// it.
//
// Each inbound event resolves in a fixed order: language selection, rich menu
// buttons, then the mode stored in the user's conversation state (diagnosis,
// followup, flow). Users without state get flow trigger matching followed by
// intent based routing, with the AI assistant as the final fallback. Handlers
// return nothing; every outcome is delivered through the Messenger and errors
// never cross the turn boundary.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/yolo-japan/lineassist/internal/diagnosis"
	"github.com/yolo-japan/lineassist/internal/flow"
	"github.com/yolo-japan/lineassist/internal/followup"
	"github.com/yolo-japan/lineassist/internal/genai"
	"github.com/yolo-japan/lineassist/internal/intent"
	"github.com/yolo-japan/lineassist/internal/models"
	"github.com/yolo-japan/lineassist/internal/store"
)

// Rich menu button payloads sent as message text by the LINE rich menu.
const (
	ButtonAIMode           = "AI_MODE"
	ButtonSiteMode         = "SITE_MODE"
	ButtonSiteModeAutochat = "SITE_MODE_AUTOCHAT"
	ButtonViewFeatures     = "VIEW_FEATURES"
	ButtonContact          = "CONTACT"
	ButtonLangChange       = "LANG_CHANGE"
)

var menuButtons = map[string]bool{
	ButtonAIMode:           true,
	ButtonSiteMode:         true,
	ButtonSiteModeAutochat: true,
	ButtonViewFeatures:     true,
	ButtonContact:          true,
	ButtonLangChange:       true,
}

// DefaultLang is assumed for users who never picked a language.
const DefaultLang = "ja"

// defaultHistoryLimit bounds how many stored chat turns feed the assistant.
const defaultHistoryLimit = 10

// ErrNoStore is returned by New when no store is configured.
var ErrNoStore = errors.New("bot requires a store")

// ErrNoMessenger is returned by New when no messenger is configured.
var ErrNoMessenger = errors.New("bot requires a messenger")

// Messenger is the outbound transport consumed by the bot.
type Messenger interface {
	ReplyMessage(ctx context.Context, replyToken string, messages []models.Message) error
	PushMessage(ctx context.Context, userID string, messages []models.Message) error
	ShowLoadingAnimation(ctx context.Context, userID string, seconds int)
	LinkRichMenu(ctx context.Context, userID, richMenuID string) error
	ScheduleDelayedPush(userID string, messages []models.Message, delaySec int)
}

// Assistant generates the open-chat replies.
type Assistant interface {
	ReplyWithHistory(ctx context.Context, lang string, history []models.ChatTurn) (string, error)
}

// RichMenus holds the rich menu ids linked on follow and language change.
// Empty ids disable the corresponding switch.
type RichMenus struct {
	Init   string
	ByLang map[string]string
}

// Opts configures a Bot.
type Opts struct {
	Store        store.Store
	Messenger    Messenger
	Assistant    Assistant
	RichMenus    RichMenus
	HistoryLimit int
}

// Option configures optional Bot settings.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithMessenger sets the outbound transport.
func WithMessenger(m Messenger) Option {
	return func(o *Opts) { o.Messenger = m }
}

// WithAssistant sets the open-chat reply generator.
func WithAssistant(a Assistant) Option {
	return func(o *Opts) { o.Assistant = a }
}

// WithRichMenus sets the rich menu ids.
func WithRichMenus(m RichMenus) Option {
	return func(o *Opts) { o.RichMenus = m }
}

// WithHistoryLimit bounds the chat history slice sent to the assistant.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) { o.HistoryLimit = n }
}

// Bot is the per-turn conversation router.
type Bot struct {
	store        store.Store
	messenger    Messenger
	assistant    Assistant
	diagnosis    *diagnosis.Machine
	followup     *followup.Machine
	executor     *flow.Executor
	richMenus    RichMenus
	historyLimit int
}

// New creates a Bot. Store and Messenger are required; without an Assistant
// the open-chat fallback answers with a static error message.
func New(opts ...Option) (*Bot, error) {
	o := Opts{HistoryLimit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Store == nil {
		return nil, ErrNoStore
	}
	if o.Messenger == nil {
		return nil, ErrNoMessenger
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = defaultHistoryLimit
	}
	return &Bot{
		store:        o.Store,
		messenger:    o.Messenger,
		assistant:    o.Assistant,
		diagnosis:    diagnosis.NewMachine(o.Store),
		followup:     followup.NewMachine(),
		executor:     flow.NewExecutor(o.Store, o.Store),
		richMenus:    o.RichMenus,
		historyLimit: o.HistoryLimit,
	}, nil
}

// HandleFollow greets a new friend: the event is recorded, the initial rich
// menu is linked and the language picker is pushed.
func (b *Bot) HandleFollow(ctx context.Context, userID string) {
	slog.Info("bot.HandleFollow", "user_id", userID)
	if err := b.store.RecordFollowEvent(userID); err != nil {
		slog.Warn("bot.HandleFollow record failed", "user_id", userID, "error", err)
	}
	if b.richMenus.Init != "" {
		if err := b.messenger.LinkRichMenu(ctx, userID, b.richMenus.Init); err != nil {
			slog.Warn("bot.HandleFollow rich menu link failed", "user_id", userID, "error", err)
		}
	}
	b.push(ctx, userID, []models.Message{welcomeMessage()})
}

// HandleMessageText processes one inbound text message turn.
func (b *Bot) HandleMessageText(ctx context.Context, userID, replyToken, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	slog.Debug("bot.HandleMessageText", "user_id", userID, "length", len(text))

	state := b.loadState(userID)

	if lang, ok := languageByFlag[text]; ok {
		b.handleLanguageSelection(ctx, userID, replyToken, lang, state)
		return
	}

	if menuButtons[text] {
		b.handleMenuButton(ctx, userID, replyToken, text, state)
		return
	}

	if state != nil {
		switch state.Mode {
		case models.ModeDiagnosis:
			b.advanceDiagnosis(ctx, userID, replyToken, state, text)
			return
		case models.ModeFollowup:
			b.advanceFollowup(ctx, userID, replyToken, state, text)
			return
		case models.ModeFlow:
			b.resumeFlow(ctx, userID, replyToken, state, text, "")
			return
		}
	}

	b.handleOpenChat(ctx, userID, replyToken, text)
}

// HandlePostback processes one inbound postback turn. The data payload is a
// query string keyed by action.
func (b *Bot) HandlePostback(ctx context.Context, userID, replyToken, data string) {
	values, err := url.ParseQuery(data)
	if err != nil {
		slog.Warn("bot.HandlePostback unparseable data", "user_id", userID, "data", data, "error", err)
		return
	}

	switch action := values.Get("action"); action {
	case "card_choice":
		state := b.loadState(userID)
		if state == nil || state.Mode != models.ModeFlow {
			slog.Warn("bot.HandlePostback card choice without waiting flow", "user_id", userID)
			return
		}
		b.resumeFlow(ctx, userID, replyToken, state, values.Get("text"), values.Get("cardId"))
	case "start_diagnosis":
		// Funnel handoff: campaign flows start the diagnosis with answers
		// already collected, skipping the matching questions.
		preset := &diagnosis.Preset{
			Prefecture: values.Get("prefecture"),
			Region:     values.Get("region"),
			Urgency:    values.Get("urgency"),
		}
		if *preset == (diagnosis.Preset{}) {
			preset = nil
		}
		b.startDiagnosis(ctx, userID, replyToken, b.userLang(userID), preset)
	default:
		slog.Warn("bot.HandlePostback unhandled action", "user_id", userID, "action", action)
	}
}

// handleLanguageSelection saves the chosen language, switches the rich menu
// and confirms in the new language. A running diagnosis is reset since its
// questions were rendered in the old language.
func (b *Bot) handleLanguageSelection(ctx context.Context, userID, replyToken, lang string, state *models.ConversationState) {
	slog.Info("bot language selected", "user_id", userID, "lang", lang)
	if state != nil && state.Mode == models.ModeDiagnosis {
		if err := b.store.ClearConversationState(userID); err != nil {
			slog.Warn("bot language selection state reset failed", "user_id", userID, "error", err)
		}
	}
	if err := b.store.SaveUserLang(userID, lang); err != nil {
		slog.Error("bot language save failed", "user_id", userID, "error", err)
	}
	if id := b.richMenus.ByLang[lang]; id != "" {
		if err := b.messenger.LinkRichMenu(ctx, userID, id); err != nil {
			slog.Warn("bot rich menu switch failed", "user_id", userID, "lang", lang, "error", err)
		}
	}
	b.reply(ctx, replyToken, []models.Message{models.NewTextMessage(languageConfirmation(lang))})
}

// handleMenuButton dispatches a rich menu button press. Pressing any button
// mid-diagnosis abandons the diagnosis.
func (b *Bot) handleMenuButton(ctx context.Context, userID, replyToken, button string, state *models.ConversationState) {
	slog.Info("bot menu button", "user_id", userID, "button", button)
	if state != nil && state.Mode == models.ModeDiagnosis {
		if err := b.store.ClearConversationState(userID); err != nil {
			slog.Warn("bot menu button state reset failed", "user_id", userID, "error", err)
		}
	}
	lang := b.userLang(userID)

	switch button {
	case ButtonAIMode:
		b.startDiagnosis(ctx, userID, replyToken, lang, nil)
	case ButtonSiteMode:
		b.reply(ctx, replyToken, []models.Message{siteLinkMessage(lang, diagnosis.BuildSiteURL(lang))})
	case ButtonSiteModeAutochat:
		b.reply(ctx, replyToken, []models.Message{siteLinkMessage(lang, diagnosis.BuildAutochatURL(lang))})
	case ButtonViewFeatures:
		b.reply(ctx, replyToken, []models.Message{featureLinkMessage(lang)})
	case ButtonContact:
		b.reply(ctx, replyToken, []models.Message{contactMessage(lang)})
	case ButtonLangChange:
		b.reply(ctx, replyToken, []models.Message{languagePickerMessage()})
	}
}

func (b *Bot) startDiagnosis(ctx context.Context, userID, replyToken, lang string, preset *diagnosis.Preset) {
	b.messenger.ShowLoadingAnimation(ctx, userID, 3)
	state, msgs, err := b.diagnosis.Start(userID, lang, preset)
	if err != nil {
		slog.Error("bot diagnosis start failed", "user_id", userID, "error", err)
		return
	}
	if err := b.store.SaveConversationState(userID, state); err != nil {
		slog.Error("bot diagnosis state save failed", "user_id", userID, "error", err)
		return
	}
	b.reply(ctx, replyToken, msgs)
}

func (b *Bot) advanceDiagnosis(ctx context.Context, userID, replyToken string, state *models.ConversationState, text string) {
	msgs, done, err := b.diagnosis.Advance(userID, state, text)
	if err != nil {
		slog.Error("bot diagnosis advance failed", "user_id", userID, "error", err)
		return
	}
	if done {
		// The machine already moved the state to the followup; open it in the
		// same turn so the user is never left without a question.
		msgs = append(msgs, b.followup.EntryPrompt(state.Lang))
	}
	if err := b.store.SaveConversationState(userID, state); err != nil {
		slog.Error("bot diagnosis state save failed", "user_id", userID, "error", err)
		return
	}
	b.reply(ctx, replyToken, msgs)
}

func (b *Bot) advanceFollowup(ctx context.Context, userID, replyToken string, state *models.ConversationState, text string) {
	msgs, _, err := b.followup.Advance(userID, state, text)
	if err != nil {
		slog.Error("bot followup advance failed", "user_id", userID, "error", err)
		return
	}
	if err := b.store.SaveConversationState(userID, state); err != nil {
		slog.Error("bot followup state save failed", "user_id", userID, "error", err)
		return
	}
	b.reply(ctx, replyToken, msgs)
}

// handleOpenChat serves users without an owning state machine: flow triggers
// first, then intent shortcuts, then the assistant.
func (b *Bot) handleOpenChat(ctx context.Context, userID, replyToken, text string) {
	lang := b.userLang(userID)

	flows, err := b.store.GetActiveFlows()
	if err != nil {
		slog.Warn("bot active flow load failed", "user_id", userID, "error", err)
	} else if f := flow.FindTriggeredFlow(flows, text); f != nil {
		slog.Info("bot flow triggered", "user_id", userID, "flow_id", f.ID)
		b.runFlow(ctx, userID, replyToken, lang, f.ID, text, nil, "", "")
		return
	}

	detection := intent.Detect(text, lang)
	switch detection.Action {
	case intent.ActionGreet:
		b.reply(ctx, replyToken, greetingMessages(lang))
	case intent.ActionShowContact:
		b.reply(ctx, replyToken, []models.Message{contactMessage(lang)})
	case intent.ActionStartDiagnosis:
		b.reply(ctx, replyToken, []models.Message{jobSearchMethodMessage(lang)})
	default:
		b.assistantReply(ctx, userID, replyToken, text, lang)
	}
}

// assistantReply answers through the AI assistant with the stored chat
// history. A failed generation falls back to a static apology; history is only
// persisted on success.
func (b *Bot) assistantReply(ctx context.Context, userID, replyToken, text, lang string) {
	if err := b.store.IncrementAIChatCount(userID); err != nil {
		slog.Warn("bot chat counter failed", "user_id", userID, "error", err)
	}
	b.messenger.ShowLoadingAnimation(ctx, userID, 5)

	history, err := b.store.GetConversationHistory(userID, b.historyLimit)
	if err != nil {
		slog.Warn("bot chat history load failed", "user_id", userID, "error", err)
		history = nil
	}
	userTurn := models.ChatTurn{Role: "user", Content: text}
	history = append(history, userTurn)

	if b.assistant == nil {
		b.reply(ctx, replyToken, []models.Message{models.NewTextMessage(genai.FallbackMessage(lang))})
		return
	}
	answer, err := b.assistant.ReplyWithHistory(ctx, lang, history)
	if err != nil {
		slog.Error("bot assistant reply failed", "user_id", userID, "error", err)
		b.reply(ctx, replyToken, []models.Message{models.NewTextMessage(genai.FallbackMessage(lang))})
		return
	}
	if err := b.store.AppendConversationHistory(userID, userTurn, models.ChatTurn{Role: "assistant", Content: answer}); err != nil {
		slog.Warn("bot chat history save failed", "user_id", userID, "error", err)
	}
	b.reply(ctx, replyToken, []models.Message{models.NewTextMessage(answer)})
}

// resumeFlow continues a suspended flow with the user's reply.
func (b *Bot) resumeFlow(ctx context.Context, userID, replyToken string, state *models.ConversationState, text, selectedCardID string) {
	progress := state.Flow
	b.runFlow(ctx, userID, replyToken, state.Lang, progress.FlowID, text, progress.Variables, selectedCardID, progress.WaitingNodeID)
}

// runFlow executes one flow turn and persists the outcome: a suspension keeps
// the flow as the owning mode, completion or a graph error releases the user
// back to open chat.
func (b *Bot) runFlow(ctx context.Context, userID, replyToken, lang, flowID, text string, variables map[string]string, selectedCardID, resumeNodeID string) {
	fctx := &flow.Context{
		UserID:         userID,
		Lang:           lang,
		UserMessage:    text,
		SelectedCardID: selectedCardID,
		Variables:      variables,
	}
	result, err := b.executor.Execute(flowID, fctx, resumeNodeID)
	if err != nil {
		slog.Error("bot flow execution failed", "user_id", userID, "flow_id", flowID, "error", err)
		if cerr := b.store.ClearConversationState(userID); cerr != nil {
			slog.Warn("bot flow state clear failed", "user_id", userID, "error", cerr)
		}
		return
	}

	if result.ShouldWaitForInput {
		next := models.NewFlowConversation(lang, &models.FlowProgress{
			FlowID:        flowID,
			WaitingNodeID: result.WaitNodeID,
			Variables:     result.Variables,
		})
		if err := b.store.SaveConversationState(userID, next); err != nil {
			slog.Error("bot flow state save failed", "user_id", userID, "error", err)
			return
		}
	} else if err := b.store.ClearConversationState(userID); err != nil {
		slog.Warn("bot flow state clear failed", "user_id", userID, "error", err)
	}

	b.reply(ctx, replyToken, result.Messages)
	if len(result.DelayedMessages) > 0 {
		b.messenger.ScheduleDelayedPush(userID, result.DelayedMessages, result.DelaySeconds)
	}
}

// loadState fetches the user's conversation state. Records that fail
// validation are treated as absent and removed so the user falls back to open
// chat instead of getting stuck.
func (b *Bot) loadState(userID string) *models.ConversationState {
	state, err := b.store.GetConversationState(userID)
	if err != nil {
		slog.Warn("bot state load failed", "user_id", userID, "error", err)
		return nil
	}
	if state == nil {
		return nil
	}
	if err := state.Validate(); err != nil {
		slog.Warn("bot discarding corrupt state", "user_id", userID, "mode", state.Mode, "error", err)
		if cerr := b.store.ClearConversationState(userID); cerr != nil {
			slog.Warn("bot corrupt state clear failed", "user_id", userID, "error", cerr)
		}
		return nil
	}
	if state.Lang == "" {
		state.Lang = b.userLang(userID)
	}
	return state
}

func (b *Bot) userLang(userID string) string {
	lang, err := b.store.GetUserLang(userID)
	if err != nil {
		slog.Warn("bot language load failed", "user_id", userID, "error", err)
	}
	if lang == "" {
		return DefaultLang
	}
	return lang
}

// reply sends messages, swallowing transport errors: the user's next message
// re-triggers naturally.
func (b *Bot) reply(ctx context.Context, replyToken string, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := b.messenger.ReplyMessage(ctx, replyToken, msgs); err != nil {
		slog.Error("bot reply failed", "error", err)
	}
}

func (b *Bot) push(ctx context.Context, userID string, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := b.messenger.PushMessage(ctx, userID, msgs); err != nil {
		slog.Error("bot push failed", "user_id", userID, "error", err)
	}
}
