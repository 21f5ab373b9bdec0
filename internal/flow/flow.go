// Package flow implements the resumable flow graph executor.
//
// A flow is an externally authored node/edge graph (models.FlowDefinition).
// Execution happens one webhook turn at a time: the executor walks nodes until
// a node suspends (waiting for user input) or the graph ends, and the caller
// persists the returned resume point. On the next turn the caller resumes from
// the waiting node with the user's reply.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yolo-japan/lineassist/internal/models"
)

// MaxSteps caps node traversal per turn. Author-created graphs can contain
// cycles; exceeding the cap aborts the turn.
const MaxSteps = 20

// Errors returned by the executor.
var (
	ErrFlowNotFound    = errors.New("flow not found")
	ErrNoTriggerNode   = errors.New("flow has no trigger node")
	ErrNodeNotFound    = errors.New("node not found in flow")
	ErrMaxSteps        = errors.New("maximum steps reached (possible cycle)")
	ErrUnsupportedKind = errors.New("unsupported node kind")
)

// Context is the per-run execution context. It is rebuilt every turn from the
// incoming event plus persisted state and is never stored as-is.
type Context struct {
	UserID      string
	Lang        string
	Service     string
	UserMessage string
	// SelectedCardID is set when the turn was triggered by a card postback;
	// it pins branch resolution to that card's edges.
	SelectedCardID string
	Variables      map[string]string
	History        []models.ChatTurn
}

// Outcome is what a single node execution produces.
type Outcome struct {
	Messages          []models.Message
	NextNodeID        string
	Wait              bool
	Variables         map[string]string
	DelayAfterSeconds int
}

// Result is what one executor turn produces.
type Result struct {
	Handled            bool
	Messages           []models.Message
	DelayedMessages    []models.Message
	DelaySeconds       int
	ShouldWaitForInput bool
	WaitNodeID         string
	Variables          map[string]string
	FinalNodeID        string
}

// Handler executes one node kind.
type Handler interface {
	Execute(def *models.FlowDefinition, node *models.FlowNode, ctx *Context) (Outcome, error)
}

// FAQSearcher is the FAQ collaborator consumed by faq_search nodes.
type FAQSearcher interface {
	SearchFAQs(query, service string, limit int) ([]models.FAQResult, error)
}

// Store is the persistence surface the executor needs.
type Store interface {
	GetFlowByID(id string) (*models.ChatFlow, error)
	SaveFlowExecution(exec models.FlowExecution) error
}

// Executor walks flow graphs.
type Executor struct {
	store    Store
	handlers map[models.NodeKind]Handler
}

// NewExecutor creates an executor with the standard node handler set.
func NewExecutor(store Store, faq FAQSearcher) *Executor {
	return &Executor{
		store: store,
		handlers: map[models.NodeKind]Handler{
			models.NodeKindTrigger:       triggerHandler{},
			models.NodeKindSendMessage:   sendMessageHandler{},
			models.NodeKindQuickReply:    quickReplyHandler{},
			models.NodeKindCard:          cardHandler{},
			models.NodeKindWaitUserInput: waitUserInputHandler{},
			models.NodeKindFAQSearch:     faqSearchHandler{faq: faq},
			models.NodeKindEnd:           endHandler{},
		},
	}
}

// Execute runs one turn of a flow. resumeFromNodeID is empty for a fresh run
// (start at the trigger node) and set to the previously suspended node id on
// resume.
func (e *Executor) Execute(flowID string, ctx *Context, resumeFromNodeID string) (*Result, error) {
	slog.Debug("flow.Execute invoked", "flowID", flowID, "userID", ctx.UserID, "resumeFrom", resumeFromNodeID)

	chatFlow, err := e.store.GetFlowByID(flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	if chatFlow == nil {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	def := &chatFlow.Definition

	exec := models.FlowExecution{
		ID:        uuid.New().String(),
		FlowID:    flowID,
		UserID:    ctx.UserID,
		Status:    models.ExecutionRunning,
		StartedAt: time.Now(),
	}
	e.recordExecution(exec)

	// Seed variables: flow defaults first, caller-provided state on top.
	variables := make(map[string]string, len(def.Variables)+len(ctx.Variables))
	for k, v := range def.Variables {
		variables[k] = v
	}
	for k, v := range ctx.Variables {
		variables[k] = v
	}
	ctx.Variables = variables

	startNodeID, err := e.resolveStart(def, ctx, resumeFromNodeID)
	if err != nil {
		exec.Status = models.ExecutionFailed
		exec.ErrorMessage = err.Error()
		e.recordExecution(exec)
		return nil, err
	}
	if startNodeID == "" {
		// Resume consumed the turn without advancing (wait_user_input with no
		// next node): the flow is done.
		exec.Status = models.ExecutionCompleted
		e.recordExecution(exec)
		return &Result{Handled: true, Variables: ctx.Variables}, nil
	}

	result := &Result{Handled: true}
	currentNodeID := startNodeID
	delaying := false

	for step := 0; step < MaxSteps; step++ {
		node := def.NodeByID(currentNodeID)
		if node == nil {
			err := fmt.Errorf("%w: %s", ErrNodeNotFound, currentNodeID)
			exec.Status = models.ExecutionFailed
			exec.CurrentNodeID = currentNodeID
			exec.ErrorMessage = err.Error()
			e.recordExecution(exec)
			return nil, err
		}
		slog.Debug("flow.Execute node", "flowID", flowID, "nodeID", node.ID, "kind", node.Kind)

		handler, ok := e.handlers[node.Kind]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrUnsupportedKind, node.Kind)
			exec.Status = models.ExecutionFailed
			exec.CurrentNodeID = node.ID
			exec.ErrorMessage = err.Error()
			e.recordExecution(exec)
			return nil, err
		}

		outcome, err := handler.Execute(def, node, ctx)
		if err != nil {
			exec.Status = models.ExecutionFailed
			exec.CurrentNodeID = node.ID
			exec.ErrorMessage = err.Error()
			e.recordExecution(exec)
			return nil, fmt.Errorf("node %s (%s): %w", node.ID, node.Kind, err)
		}

		for k, v := range outcome.Variables {
			ctx.Variables[k] = v
		}

		// Messages after a delay node go to the delayed bucket.
		if delaying {
			result.DelayedMessages = append(result.DelayedMessages, outcome.Messages...)
		} else {
			result.Messages = append(result.Messages, outcome.Messages...)
		}
		if outcome.DelayAfterSeconds > 0 {
			delaying = true
			// max-wins: a later delay overrides a smaller earlier one
			if outcome.DelayAfterSeconds > result.DelaySeconds {
				result.DelaySeconds = outcome.DelayAfterSeconds
			}
		}

		if outcome.Wait {
			exec.Status = models.ExecutionRunning
			exec.CurrentNodeID = node.ID
			e.recordExecution(exec)
			result.ShouldWaitForInput = true
			result.WaitNodeID = node.ID
			result.Variables = ctx.Variables
			slog.Debug("flow.Execute suspended", "flowID", flowID, "waitNodeID", node.ID)
			return result, nil
		}

		if node.Kind == models.NodeKindEnd || outcome.NextNodeID == "" {
			exec.Status = models.ExecutionCompleted
			exec.CurrentNodeID = node.ID
			e.recordExecution(exec)
			result.Variables = ctx.Variables
			result.FinalNodeID = node.ID
			slog.Debug("flow.Execute completed", "flowID", flowID, "finalNodeID", node.ID)
			return result, nil
		}
		currentNodeID = outcome.NextNodeID
	}

	exec.Status = models.ExecutionFailed
	exec.ErrorMessage = ErrMaxSteps.Error()
	e.recordExecution(exec)
	slog.Error("flow.Execute aborted at step cap", "flowID", flowID, "userID", ctx.UserID)
	return nil, ErrMaxSteps
}

// resolveStart determines the first node to execute. For a fresh run this is
// the trigger node; on resume, the waiting node's kind decides how the user's
// reply selects the next node.
func (e *Executor) resolveStart(def *models.FlowDefinition, ctx *Context, resumeFromNodeID string) (string, error) {
	if resumeFromNodeID == "" {
		trigger := def.TriggerNode()
		if trigger == nil {
			return "", ErrNoTriggerNode
		}
		return trigger.ID, nil
	}

	node := def.NodeByID(resumeFromNodeID)
	if node == nil {
		return "", fmt.Errorf("%w: resume node %s", ErrNodeNotFound, resumeFromNodeID)
	}

	switch node.Kind {
	case models.NodeKindQuickReply:
		next := resolveQuickReplyChoice(def, node, ctx.UserMessage)
		if next == "" {
			return "", fmt.Errorf("%w: quick_reply %s has no outgoing edges", ErrNodeNotFound, node.ID)
		}
		return next, nil
	case models.NodeKindCard:
		next := resolveCardChoice(def, node, ctx.UserMessage, ctx.SelectedCardID)
		if next == "" {
			return "", fmt.Errorf("%w: card %s has no outgoing edges", ErrNodeNotFound, node.ID)
		}
		return next, nil
	case models.NodeKindWaitUserInput:
		// Capture the raw reply into the bound variable, then advance.
		if name := node.Config.VariableName; name != "" {
			ctx.Variables[name] = ctx.UserMessage
		}
		if node.Config.NextNodeID != "" {
			return node.Config.NextNodeID, nil
		}
		if edges := def.OutgoingEdges(node.ID); len(edges) > 0 {
			return edges[0].Target, nil
		}
		return "", nil
	default:
		return resumeFromNodeID, nil
	}
}

// resolveQuickReplyChoice picks the outgoing edge whose label matches the
// user's reply exactly. No match falls back to the first edge; a user typing
// free text instead of tapping a button silently takes the first branch,
// which authors should keep in mind when ordering edges.
func resolveQuickReplyChoice(def *models.FlowDefinition, node *models.FlowNode, userMessage string) string {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return ""
	}
	for _, edge := range edges {
		if edge.Label == userMessage {
			return edge.Target
		}
	}
	slog.Warn("quick_reply choice did not match any edge, using first",
		"nodeID", node.ID, "message", userMessage)
	return edges[0].Target
}

// resolveCardChoice picks the next node after a card suspension. A postback
// carries the owning card id, which resolves directly; a free-text reply is
// matched against edge labels of the card and its carousel siblings.
func resolveCardChoice(def *models.FlowDefinition, node *models.FlowNode, userMessage, selectedCardID string) string {
	if selectedCardID != "" {
		if edges := def.OutgoingEdges(selectedCardID); len(edges) > 0 {
			return edges[0].Target
		}
	}

	ownEdges := def.OutgoingEdges(node.ID)
	for _, edge := range ownEdges {
		if edge.Label == userMessage {
			return edge.Target
		}
	}
	for _, sibling := range cardSiblings(def, node) {
		if sibling.ID == node.ID {
			continue
		}
		for _, edge := range def.OutgoingEdges(sibling.ID) {
			if edge.Label == userMessage {
				return edge.Target
			}
		}
	}

	if len(ownEdges) == 0 {
		return ""
	}
	slog.Warn("card choice did not match any edge, using first",
		"nodeID", node.ID, "message", userMessage)
	return ownEdges[0].Target
}

func (e *Executor) recordExecution(exec models.FlowExecution) {
	if err := e.store.SaveFlowExecution(exec); err != nil {
		// audit only, never fails the turn
		slog.Error("flow execution record failed", "error", err, "executionID", exec.ID)
	}
}

// FindTriggeredFlow returns the first active flow whose trigger matches the
// message, or nil. Flows are assumed pre-sorted by priority.
func FindTriggeredFlow(flows []models.ChatFlow, message string) *models.ChatFlow {
	for i := range flows {
		if flowTriggerMatches(&flows[i], message) {
			return &flows[i]
		}
	}
	return nil
}

func flowTriggerMatches(f *models.ChatFlow, message string) bool {
	if f.TriggerValue == "" {
		return false
	}
	switch f.TriggerType {
	case models.TriggerKeyword:
		return message == f.TriggerValue
	case models.TriggerPattern:
		return containsFold(message, f.TriggerValue)
	case models.TriggerPostback:
		return message == f.TriggerValue
	}
	return false
}
