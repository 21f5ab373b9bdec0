// Package models defines the core data structures for lineassist.
//
// It includes LINE message payload shapes, conversation state records, and flow
// definitions shared across modules.
package models

import "errors"

// MessageType identifies the outbound LINE message payload shape.
type MessageType string

const (
	// MessageTypeText is a plain text message, optionally with quick replies.
	MessageTypeText MessageType = "text"
	// MessageTypeTemplate is a buttons or carousel template message.
	MessageTypeTemplate MessageType = "template"
	// MessageTypeFlex is a flex message (raw JSON contents).
	MessageTypeFlex MessageType = "flex"
)

// Validation constants for outbound payloads (LINE Messaging API limits).
const (
	// MaxTextLength is the maximum text message length accepted by LINE.
	MaxTextLength = 5000
	// MaxQuickReplyItems is the maximum number of quick reply buttons per message.
	MaxQuickReplyItems = 13
	// MaxActionLabelLength is the maximum label length for any action button.
	MaxActionLabelLength = 20
	// MaxCarouselColumns is the maximum number of columns in a carousel template.
	MaxCarouselColumns = 10
	// MaxCarouselActions is the maximum number of actions per carousel column.
	MaxCarouselActions = 3
	// MaxMessagesPerReply is the maximum number of messages in one reply call.
	MaxMessagesPerReply = 5
)

// Error variables for payload validation.
var (
	ErrEmptyText           = errors.New("text message requires text")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
	ErrTooManyQuickReplies = errors.New("too many quick reply items")
	ErrEmptyActionLabel    = errors.New("action label cannot be empty")
	ErrTooManyColumns      = errors.New("carousel exceeds maximum columns")
	ErrNoTemplate          = errors.New("template message requires a template")
)

// ActionType identifies what a button does when tapped.
type ActionType string

const (
	// ActionTypeMessage sends the action text back as a user message.
	ActionTypeMessage ActionType = "message"
	// ActionTypePostback delivers the action data as a postback event.
	ActionTypePostback ActionType = "postback"
	// ActionTypeURI opens a URL.
	ActionTypeURI ActionType = "uri"
)

// Action is a tappable button on a quick reply or template message.
type Action struct {
	Type        ActionType `json:"type"`
	Label       string     `json:"label"`
	Text        string     `json:"text,omitempty"`
	Data        string     `json:"data,omitempty"`
	DisplayText string     `json:"displayText,omitempty"`
	URI         string     `json:"uri,omitempty"`
}

// QuickReplyItem wraps an action for the quickReply items array.
type QuickReplyItem struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// QuickReply is the quick-reply button strip attached to a message.
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// CarouselColumn is one card of a carousel template.
type CarouselColumn struct {
	Title             string   `json:"title,omitempty"`
	Text              string   `json:"text"`
	ThumbnailImageURL string   `json:"thumbnailImageUrl,omitempty"`
	Actions           []Action `json:"actions"`
}

// Template is the payload of a template message (buttons or carousel).
type Template struct {
	Type              string           `json:"type"`
	Title             string           `json:"title,omitempty"`
	Text              string           `json:"text,omitempty"`
	ThumbnailImageURL string           `json:"thumbnailImageUrl,omitempty"`
	Actions           []Action         `json:"actions,omitempty"`
	Columns           []CarouselColumn `json:"columns,omitempty"`
}

// Message is an outbound LINE message payload. The shape mirrors the LINE
// Messaging API JSON so it can be marshaled and sent as-is, and embedded in
// flow node configs.
type Message struct {
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	AltText    string      `json:"altText,omitempty"`
	Template   *Template   `json:"template,omitempty"`
	Contents   any         `json:"contents,omitempty"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

// NewTextMessage builds a plain text message.
func NewTextMessage(text string) Message {
	return Message{Type: MessageTypeText, Text: text}
}

// NewQuickReplyMessage builds a text message with quick reply buttons.
func NewQuickReplyMessage(text string, items []QuickReplyItem) Message {
	return Message{
		Type:       MessageTypeText,
		Text:       text,
		QuickReply: &QuickReply{Items: items},
	}
}

// MessageAction builds a quick reply item whose tap sends text.
func MessageAction(label, text string) QuickReplyItem {
	return QuickReplyItem{
		Type:   "action",
		Action: Action{Type: ActionTypeMessage, Label: label, Text: text},
	}
}

// PostbackAction builds a quick reply item whose tap delivers postback data.
func PostbackAction(label, data string) QuickReplyItem {
	return QuickReplyItem{
		Type:   "action",
		Action: Action{Type: ActionTypePostback, Label: label, Data: data},
	}
}

// URIAction builds a quick reply item whose tap opens a URL.
func URIAction(label, uri string) QuickReplyItem {
	return QuickReplyItem{
		Type:   "action",
		Action: Action{Type: ActionTypeURI, Label: label, URI: uri},
	}
}

// Validate performs basic payload validation against LINE API limits.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if m.Text == "" {
			return ErrEmptyText
		}
		if len(m.Text) > MaxTextLength {
			return ErrTextTooLong
		}
	case MessageTypeTemplate:
		if m.Template == nil {
			return ErrNoTemplate
		}
		if len(m.Template.Columns) > MaxCarouselColumns {
			return ErrTooManyColumns
		}
		for _, col := range m.Template.Columns {
			for _, a := range col.Actions {
				if a.Label == "" {
					return ErrEmptyActionLabel
				}
			}
		}
	}
	if m.QuickReply != nil {
		if len(m.QuickReply.Items) > MaxQuickReplyItems {
			return ErrTooManyQuickReplies
		}
		for _, item := range m.QuickReply.Items {
			if item.Action.Label == "" {
				return ErrEmptyActionLabel
			}
		}
	}
	return nil
}

// TruncateLabel trims an action label to the LINE API limit.
func TruncateLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= MaxActionLabelLength {
		return label
	}
	return string(runes[:MaxActionLabelLength])
}
