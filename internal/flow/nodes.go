package flow

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/yolo-japan/lineassist/internal/models"
)

// Errors returned by node handlers.
var (
	ErrEmptyContent    = errors.New("message content is required")
	ErrNoEdges         = errors.New("node requires at least one outgoing edge")
	ErrNoVariableName  = errors.New("wait_user_input requires a variable name")
	ErrNoSearcher      = errors.New("faq_search requires a search collaborator")
	ErrNoBranchForFAQ  = errors.New("faq_search requires found/notFound edges")
	ErrEmptyCardConfig = errors.New("card requires columns or outgoing edges")
)

// Limits applied when a send_message node schedules a delayed push.
const maxDelaySeconds = 30

var (
	userVarPattern      = regexp.MustCompile(`\{\{user\.(\w+)\}\}`)
	variablesVarPattern = regexp.MustCompile(`\{\{variables\.(\w+)\}\}`)
	servicePattern      = regexp.MustCompile(`\{\{service\}\}`)
	langPattern         = regexp.MustCompile(`\{\{lang\}\}`)
	userMessagePattern  = regexp.MustCompile(`\{\{userMessage\}\}`)
)

// expandVariables replaces {{user.X}}, {{variables.X}}, {{service}}, {{lang}},
// and {{userMessage}} placeholders. Unknown variable names stay verbatim so
// authoring mistakes are visible in the sent message.
func expandVariables(template string, ctx *Context) string {
	replaceVar := func(match string, pattern *regexp.Regexp) string {
		key := pattern.FindStringSubmatch(match)[1]
		if v, ok := ctx.Variables[key]; ok && v != "" {
			return v
		}
		return match
	}
	result := userVarPattern.ReplaceAllStringFunc(template, func(m string) string {
		return replaceVar(m, userVarPattern)
	})
	result = variablesVarPattern.ReplaceAllStringFunc(result, func(m string) string {
		return replaceVar(m, variablesVarPattern)
	})
	result = servicePattern.ReplaceAllString(result, ctx.Service)
	lang := ctx.Lang
	if lang == "" {
		lang = models.BaseLang
	}
	result = langPattern.ReplaceAllString(result, lang)
	result = userMessagePattern.ReplaceAllString(result, ctx.UserMessage)
	return result
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// triggerHandler is the start marker: it only forwards to its single edge.
type triggerHandler struct{}

func (triggerHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return Outcome{}, nil
	}
	return Outcome{NextNodeID: edges[0].Target}, nil
}

// endHandler is terminal.
type endHandler struct{}

func (endHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	return Outcome{}, nil
}

// sendMessageHandler renders config.content for the user's language with
// variable interpolation, then advances to its single outgoing edge.
type sendMessageHandler struct{}

func (sendMessageHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	content := node.Config.Content.Resolve(ctx.Lang)
	if content == "" {
		return Outcome{}, ErrEmptyContent
	}
	text := expandVariables(content, ctx)

	outcome := Outcome{Messages: []models.Message{models.NewTextMessage(text)}}
	if edges := def.OutgoingEdges(node.ID); len(edges) > 0 {
		outcome.NextNodeID = edges[0].Target
	}
	if d := node.Config.DelayAfterSeconds; d > 0 {
		if d > maxDelaySeconds {
			d = maxDelaySeconds
		}
		outcome.DelayAfterSeconds = d
	}
	return outcome, nil
}

// quickReplyHandler renders config.message with one button per outgoing edge,
// then suspends. The edge label doubles as button text and branch key.
type quickReplyHandler struct{}

func (quickReplyHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return Outcome{}, fmt.Errorf("quick_reply %s: %w", node.ID, ErrNoEdges)
	}

	text := expandVariables(node.Config.Message.Resolve(ctx.Lang), ctx)
	items := make([]models.QuickReplyItem, 0, len(edges))
	for _, edge := range edges {
		label := edge.Label
		if label == "" {
			label = edge.Target
		}
		items = append(items, models.MessageAction(models.TruncateLabel(label), label))
	}

	return Outcome{
		Messages: []models.Message{models.NewQuickReplyMessage(text, items)},
		Wait:     true,
	}, nil
}

// waitUserInputHandler emits the optional prompt and suspends. The user's
// reply is captured into the bound variable by the executor on resume.
type waitUserInputHandler struct{}

func (waitUserInputHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	if node.Config.VariableName == "" {
		return Outcome{}, fmt.Errorf("wait_user_input %s: %w", node.ID, ErrNoVariableName)
	}
	outcome := Outcome{Wait: true}
	if prompt := node.Config.Prompt.Resolve(ctx.Lang); prompt != "" {
		outcome.Messages = []models.Message{models.NewTextMessage(expandVariables(prompt, ctx))}
	}
	return outcome, nil
}

// faqSearchHandler queries the FAQ collaborator and branches to the found or
// notFound labeled edge. The top hit is exposed to later nodes as variables.
type faqSearchHandler struct {
	faq FAQSearcher
}

func (h faqSearchHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	if h.faq == nil {
		return Outcome{}, ErrNoSearcher
	}
	threshold := node.Config.Threshold
	if threshold == 0 {
		threshold = 0.7
	}
	maxResults := node.Config.MaxResults
	if maxResults == 0 {
		maxResults = 3
	}
	service := node.Config.Service
	if service == "" {
		service = ctx.Service
	}

	results, err := h.faq.SearchFAQs(ctx.UserMessage, service, maxResults)
	if err != nil {
		return Outcome{}, fmt.Errorf("faq search: %w", err)
	}
	var hits []models.FAQResult
	for _, r := range results {
		if r.Score >= threshold {
			hits = append(hits, r)
		}
	}

	var foundEdge, notFoundEdge string
	for _, edge := range def.OutgoingEdges(node.ID) {
		switch edge.Label {
		case "found":
			foundEdge = edge.Target
		case "notFound":
			notFoundEdge = edge.Target
		}
	}
	if foundEdge == "" && notFoundEdge == "" {
		return Outcome{}, fmt.Errorf("faq_search %s: %w", node.ID, ErrNoBranchForFAQ)
	}

	outcome := Outcome{Variables: map[string]string{
		"faqCount": fmt.Sprintf("%d", len(hits)),
	}}
	if len(hits) == 0 {
		outcome.NextNodeID = notFoundEdge
		return outcome, nil
	}
	outcome.Variables["faqTopQuestion"] = hits[0].Question
	outcome.Variables["faqTopAnswer"] = hits[0].Answer
	outcome.NextNodeID = foundEdge
	return outcome, nil
}

// cardHandler renders a card or carousel template and suspends. Sibling card
// nodes sharing the same parent are merged into one carousel message so the
// user sees a single horizontal strip instead of a message per card.
type cardHandler struct{}

func (cardHandler) Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error) {
	siblings := cardSiblings(def, node)

	if len(siblings) == 1 && len(node.Config.Columns) == 0 {
		msg, err := buildSingleCard(def, node, ctx)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Messages: []models.Message{msg}, Wait: true}, nil
	}

	msg, err := buildCarousel(def, siblings, ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Messages: []models.Message{msg}, Wait: true}, nil
}

// cardSiblings returns the card nodes sharing this node's parent edge source,
// in edge order, always including the node itself.
func cardSiblings(def *models.FlowDefinition, node *models.FlowNode) []*models.FlowNode {
	parent := def.ParentEdge(node.ID)
	if parent == nil {
		return []*models.FlowNode{node}
	}
	var siblings []*models.FlowNode
	for _, edge := range def.OutgoingEdges(parent.Source) {
		if n := def.NodeByID(edge.Target); n != nil && n.Kind == models.NodeKindCard {
			siblings = append(siblings, n)
		}
	}
	if len(siblings) == 0 {
		return []*models.FlowNode{node}
	}
	return siblings
}

// buildSingleCard builds a buttons template whose actions come from the
// node's outgoing edges.
func buildSingleCard(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (models.Message, error) {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return models.Message{}, fmt.Errorf("card %s: %w", node.ID, ErrEmptyCardConfig)
	}

	text := expandVariables(node.Config.Text.Resolve(ctx.Lang), ctx)
	title := expandVariables(node.Config.Title.Resolve(ctx.Lang), ctx)

	// LINE limits: 4 actions on a buttons template, 40-rune title, text 60
	// runes with title or image, 160 without.
	if len(edges) > 4 {
		edges = edges[:4]
	}
	actions := make([]models.Action, 0, len(edges))
	for _, edge := range edges {
		label := edge.Label
		if label == "" {
			label = edge.Target
		}
		actions = append(actions, models.Action{
			Type:  models.ActionTypeMessage,
			Label: models.TruncateLabel(label),
			Text:  label,
		})
	}

	title = truncateRunes(title, 40)
	maxText := 160
	if title != "" || node.Config.ImageURL != "" {
		maxText = 60
	}
	text = truncateRunes(text, maxText)

	tmpl := &models.Template{Type: "buttons", Text: text, Actions: actions}
	if title != "" {
		tmpl.Title = title
	}
	if node.Config.ImageURL != "" {
		tmpl.ThumbnailImageURL = node.Config.ImageURL
	}
	alt := title
	if alt == "" {
		alt = text
	}
	return models.Message{Type: models.MessageTypeTemplate, AltText: alt, Template: tmpl}, nil
}

// buildCarousel merges the columns of all sibling cards into one carousel
// template, capped at the LINE column limit. A sibling with no authored
// columns contributes one column built from its own title/text and edges.
func buildCarousel(def *models.FlowDefinition, siblings []*models.FlowNode, ctx *Context) (models.Message, error) {
	type ownedColumn struct {
		cardID string
		config models.CardColumnConfig
	}
	var owned []ownedColumn
	for _, card := range siblings {
		if len(card.Config.Columns) > 0 {
			for _, col := range card.Config.Columns {
				owned = append(owned, ownedColumn{cardID: card.ID, config: col})
			}
			continue
		}
		// single-column fallback from the card's own config
		fallback := models.CardColumnConfig{
			Title: card.Config.Title,
			Text:  card.Config.Text,
		}
		for _, edge := range def.OutgoingEdges(card.ID) {
			label := edge.Label
			if label == "" {
				label = edge.Target
			}
			fallback.Buttons = append(fallback.Buttons, models.CardButton{
				Label: models.LocalizedText{models.BaseLang: label},
				Text:  label,
			})
		}
		owned = append(owned, ownedColumn{cardID: card.ID, config: fallback})
	}

	// drop empty columns, cap at the LINE limit
	var kept []ownedColumn
	for _, oc := range owned {
		if strings.TrimSpace(oc.config.Text.Resolve(ctx.Lang)) == "" {
			continue
		}
		kept = append(kept, oc)
		if len(kept) == models.MaxCarouselColumns {
			break
		}
	}
	if len(kept) == 0 {
		return models.Message{}, ErrEmptyCardConfig
	}

	// all columns must carry the same number of actions
	maxButtons := 0
	for _, oc := range kept {
		if n := len(oc.config.Buttons); n > maxButtons {
			maxButtons = n
		}
	}
	if maxButtons == 0 {
		return models.Message{}, ErrEmptyCardConfig
	}
	if maxButtons > models.MaxCarouselActions {
		maxButtons = models.MaxCarouselActions
	}

	columns := make([]models.CarouselColumn, 0, len(kept))
	for _, oc := range kept {
		text := expandVariables(oc.config.Text.Resolve(ctx.Lang), ctx)
		title := expandVariables(oc.config.Title.Resolve(ctx.Lang), ctx)

		buttons := oc.config.Buttons
		if len(buttons) > maxButtons {
			buttons = buttons[:maxButtons]
		}
		actions := make([]models.Action, 0, maxButtons)
		for _, btn := range buttons {
			actions = append(actions, cardButtonAction(btn, oc.cardID, text, ctx.Lang))
		}
		// pad short columns by repeating the last action
		for len(actions) > 0 && len(actions) < maxButtons {
			actions = append(actions, actions[len(actions)-1])
		}

		col := models.CarouselColumn{Text: text, Actions: actions}
		if title != "" {
			col.Title = truncateRunes(title, 40)
		}
		if oc.config.ImageURL != "" {
			col.ThumbnailImageURL = oc.config.ImageURL
		}
		columns = append(columns, col)
	}

	// title presence must be uniform across columns
	hasTitle := false
	for _, col := range columns {
		if col.Title != "" {
			hasTitle = true
			break
		}
	}
	for i := range columns {
		if hasTitle && columns[i].Title == "" {
			columns[i].Title = " "
		}
		maxText := 120
		if columns[i].Title != "" || columns[i].ThumbnailImageURL != "" {
			maxText = 60
		}
		columns[i].Text = truncateRunes(columns[i].Text, maxText)
	}

	alt := columns[0].Title
	if alt == "" || alt == " " {
		alt = columns[0].Text
	}
	return models.Message{
		Type:     models.MessageTypeTemplate,
		AltText:  alt,
		Template: &models.Template{Type: "carousel", Columns: columns},
	}, nil
}

// cardButtonAction builds a carousel button. URI buttons open their URL;
// everything else is a postback carrying the owning card id so the resume
// turn can resolve the branch without parsing free text.
func cardButtonAction(btn models.CardButton, cardID, columnText, lang string) models.Action {
	label := btn.Label.Resolve(lang)
	if label == "" {
		label = btn.Text
	}
	if label == "" {
		label = models.TruncateLabel(columnText)
	}
	if label == "" {
		label = "選択"
	}
	label = models.TruncateLabel(label)

	if btn.Type == "uri" && btn.URL != "" {
		return models.Action{Type: models.ActionTypeURI, Label: label, URI: btn.URL}
	}

	displayText := btn.Text
	if displayText == "" {
		displayText = label
	}
	return models.Action{
		Type:        models.ActionTypePostback,
		Label:       label,
		Data:        fmt.Sprintf("action=card_choice&cardId=%s&text=%s", cardID, url.QueryEscape(displayText)),
		DisplayText: displayText,
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
