// Package store provides storage backends for lineassist.
//
// It includes an in-memory store for tests and SQLite/Postgres backed stores
// for production use.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yolo-japan/lineassist/internal/models"
)

// Store is the persistence interface consumed by the conversation handlers
// and the flow executor.
type Store interface {
	// Flow definitions (authored externally, read here).
	GetActiveFlows() ([]models.ChatFlow, error)
	GetFlowByID(id string) (*models.ChatFlow, error)

	// Conversation state: one record per user, replaced wholesale each turn.
	GetConversationState(userID string) (*models.ConversationState, error)
	SaveConversationState(userID string, state *models.ConversationState) error
	ClearConversationState(userID string) error
	DeleteStaleConversationStates(olderThan time.Duration) (int, error)

	// Flow execution audit records.
	SaveFlowExecution(exec models.FlowExecution) error

	// Diagnosis results and per-user counters.
	SaveDiagnosisResult(userID string, answers models.DiagnosisAnswers) error
	GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error)
	IncrementDiagnosisCount(userID string) error
	IncrementAIChatCount(userID string) error

	// User profile.
	GetUserLang(userID string) (string, error)
	SaveUserLang(userID, lang string) error
	RecordFollowEvent(userID string) error

	// Open-chat history for the assistant mode.
	AppendConversationHistory(userID string, turns ...models.ChatTurn) error
	GetConversationHistory(userID string, limit int) ([]models.ChatTurn, error)

	// FAQ keyword search.
	SearchFAQs(query, service string, limit int) ([]models.FAQResult, error)

	Close() error
}

// faqRecord is a stored FAQ entry with its search keywords.
type faqRecord struct {
	ID       string
	Question string
	Answer   string
	Service  string
	Keywords string // comma-separated
}

// scoreFAQ returns the match score of one FAQ entry for a query: the fraction
// of the entry's keywords found in the query, with a direct question substring
// match counting as a full hit.
func scoreFAQ(query string, rec faqRecord) float64 {
	q := strings.ToLower(query)
	if rec.Question != "" && strings.Contains(q, strings.ToLower(rec.Question)) {
		return 1.0
	}
	keywords := strings.Split(rec.Keywords, ",")
	var total, hits int
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		total++
		if strings.Contains(q, kw) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// rankFAQs scores and sorts FAQ records for a query, dropping zero scores.
func rankFAQs(query string, recs []faqRecord, limit int) []models.FAQResult {
	var results []models.FAQResult
	for _, rec := range recs {
		score := scoreFAQ(query, rec)
		if score <= 0 {
			continue
		}
		results = append(results, models.FAQResult{
			ID:       rec.ID,
			Question: rec.Question,
			Answer:   rec.Answer,
			Service:  rec.Service,
			Score:    score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// InMemoryStore is a Store kept entirely in memory, used in tests and as a
// fallback when no database is configured.
type InMemoryStore struct {
	mu         sync.Mutex
	flows      []models.ChatFlow
	states     map[string]*models.ConversationState
	executions []models.FlowExecution
	results    map[string][]models.DiagnosisAnswers
	status     map[string]*models.UserStatus
	history    map[string][]models.ChatTurn
	faqs       []faqRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:  make(map[string]*models.ConversationState),
		results: make(map[string][]models.DiagnosisAnswers),
		status:  make(map[string]*models.UserStatus),
		history: make(map[string][]models.ChatTurn),
	}
}

// AddFlow registers a flow definition (test seeding).
func (s *InMemoryStore) AddFlow(f models.ChatFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, f)
}

// AddFAQ registers an FAQ entry (test seeding).
func (s *InMemoryStore) AddFAQ(id, question, answer, service, keywords string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs = append(s.faqs, faqRecord{ID: id, Question: question, Answer: answer, Service: service, Keywords: keywords})
}

func (s *InMemoryStore) GetActiveFlows() ([]models.ChatFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []models.ChatFlow
	for _, f := range s.flows {
		if f.IsActive {
			active = append(active, f)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })
	return active, nil
}

func (s *InMemoryStore) GetFlowByID(id string) (*models.ChatFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flows {
		if s.flows[i].ID == id {
			f := s.flows[i]
			return &f, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetConversationState(userID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) SaveConversationState(userID string, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	copied.UpdatedAt = time.Now()
	s.states[userID] = &copied
	return nil
}

func (s *InMemoryStore) ClearConversationState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *InMemoryStore) DeleteStaleConversationStates(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var deleted int
	for userID, state := range s.states {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.states, userID)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) SaveFlowExecution(exec models.FlowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.executions {
		if s.executions[i].ID == exec.ID {
			s.executions[i] = exec
			return nil
		}
	}
	s.executions = append(s.executions, exec)
	return nil
}

// FlowExecutions returns recorded executions (test inspection).
func (s *InMemoryStore) FlowExecutions() []models.FlowExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FlowExecution, len(s.executions))
	copy(out, s.executions)
	return out
}

func (s *InMemoryStore) SaveDiagnosisResult(userID string, answers models.DiagnosisAnswers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[userID] = append(s.results[userID], answers)
	return nil
}

func (s *InMemoryStore) GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.results[userID]
	if len(results) == 0 {
		return nil, nil
	}
	latest := results[len(results)-1]
	return &latest, nil
}

func (s *InMemoryStore) statusFor(userID string) *models.UserStatus {
	st, ok := s.status[userID]
	if !ok {
		now := time.Now()
		st = &models.UserStatus{UserID: userID, FirstUsed: now, LastUsed: now}
		s.status[userID] = st
	}
	return st
}

func (s *InMemoryStore) IncrementDiagnosisCount(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statusFor(userID)
	st.DiagnosisCount++
	st.TotalUsage++
	st.LastUsed = time.Now()
	return nil
}

func (s *InMemoryStore) IncrementAIChatCount(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statusFor(userID)
	st.AIChatCount++
	st.TotalUsage++
	st.LastUsed = time.Now()
	return nil
}

func (s *InMemoryStore) GetUserLang(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[userID]; ok {
		return st.Lang, nil
	}
	return "", nil
}

func (s *InMemoryStore) SaveUserLang(userID, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFor(userID).Lang = lang
	return nil
}

func (s *InMemoryStore) RecordFollowEvent(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFor(userID).LastUsed = time.Now()
	return nil
}

func (s *InMemoryStore) AppendConversationHistory(userID string, turns ...models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = append(s.history[userID], turns...)
	return nil
}

func (s *InMemoryStore) GetConversationHistory(userID string, limit int) ([]models.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.history[userID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) SearchFAQs(query, service string, limit int) ([]models.FAQResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []faqRecord
	for _, rec := range s.faqs {
		if service != "" && rec.Service != service {
			continue
		}
		candidates = append(candidates, rec)
	}
	return rankFAQs(query, candidates, limit), nil
}

func (s *InMemoryStore) Close() error { return nil }
