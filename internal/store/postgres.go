// Package store provides storage backends for lineassist.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/yolo-japan/lineassist/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetActiveFlows() ([]models.ChatFlow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, trigger_type, trigger_value, service,
		       is_active, priority, flow_definition, version, created_at, updated_at
		FROM chat_flows WHERE is_active = TRUE ORDER BY priority DESC, created_at`)
	if err != nil {
		slog.Error("PostgresStore GetActiveFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query active flows: %w", err)
	}
	defer rows.Close()

	var flows []models.ChatFlow
	for rows.Next() {
		f, err := scanChatFlow(rows)
		if err != nil {
			slog.Error("PostgresStore GetActiveFlows scan failed", "error", err)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetActiveFlows rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("PostgresStore GetActiveFlows succeeded", "count", len(flows))
	return flows, nil
}

func (s *PostgresStore) GetFlowByID(id string) (*models.ChatFlow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, trigger_type, trigger_value, service,
		       is_active, priority, flow_definition, version, created_at, updated_at
		FROM chat_flows WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore GetFlowByID query failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to query flow %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		slog.Debug("PostgresStore GetFlowByID not found", "flowID", id)
		return nil, rows.Err()
	}
	f, err := scanChatFlow(rows)
	if err != nil {
		slog.Error("PostgresStore GetFlowByID scan failed", "error", err, "flowID", id)
		return nil, err
	}
	return &f, nil
}

// SaveFlow stores or updates a flow definition (used by loaders and tests).
func (s *PostgresStore) SaveFlow(f models.ChatFlow) error {
	definitionJSON, err := json.Marshal(f.Definition)
	if err != nil {
		slog.Error("PostgresStore SaveFlow marshal failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to encode flow definition: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO chat_flows
			(id, name, description, trigger_type, trigger_value, service, is_active, priority, flow_definition, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type, trigger_value = EXCLUDED.trigger_value,
			service = EXCLUDED.service, is_active = EXCLUDED.is_active,
			priority = EXCLUDED.priority, flow_definition = EXCLUDED.flow_definition,
			version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`,
		f.ID, f.Name, nilIfEmpty(f.Description), string(f.TriggerType), nilIfEmpty(f.TriggerValue),
		nilIfEmpty(f.Service), f.IsActive, f.Priority, string(definitionJSON), f.Version, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to save flow %s: %w", f.ID, err)
	}
	slog.Debug("PostgresStore SaveFlow succeeded", "flowID", f.ID, "name", f.Name)
	return nil
}

func (s *PostgresStore) GetConversationState(userID string) (*models.ConversationState, error) {
	var stateJSON string
	var state models.ConversationState
	err := s.db.QueryRow(`SELECT state_data, updated_at FROM conversation_states WHERE user_id = $1`, userID).
		Scan(&stateJSON, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation state: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		// Corrupt state is treated as absent so the user falls back to the default mode.
		slog.Error("PostgresStore GetConversationState decode failed", "error", err, "userID", userID)
		return nil, nil
	}
	slog.Debug("PostgresStore GetConversationState found", "userID", userID, "mode", state.Mode)
	return &state, nil
}

func (s *PostgresStore) SaveConversationState(userID string, state *models.ConversationState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState marshal failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversation_states (user_id, mode, state_data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			mode = EXCLUDED.mode, state_data = EXCLUDED.state_data, updated_at = NOW()`,
		userID, string(state.Mode), string(stateJSON))
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "userID", userID, "mode", state.Mode)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "userID", userID, "mode", state.Mode)
	return nil
}

func (s *PostgresStore) ClearConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore ClearConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	slog.Debug("PostgresStore ClearConversationState succeeded", "userID", userID)
	return nil
}

// DeleteStaleConversationStates removes state records untouched for longer
// than olderThan. Abandoned dialogues then restart from open chat.
func (s *PostgresStore) DeleteStaleConversationStates(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec(`DELETE FROM conversation_states WHERE updated_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore DeleteStaleConversationStates failed", "error", err)
		return 0, fmt.Errorf("failed to delete stale conversation states: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted conversation states: %w", err)
	}
	slog.Debug("PostgresStore DeleteStaleConversationStates succeeded", "deleted", deleted)
	return int(deleted), nil
}

func (s *PostgresStore) SaveFlowExecution(exec models.FlowExecution) error {
	_, err := s.db.Exec(`
		INSERT INTO flow_executions
			(id, flow_id, user_id, status, current_node_id, error_message, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, current_node_id = EXCLUDED.current_node_id,
			error_message = EXCLUDED.error_message, updated_at = NOW()`,
		exec.ID, exec.FlowID, exec.UserID, string(exec.Status),
		nilIfEmpty(exec.CurrentNodeID), nilIfEmpty(exec.ErrorMessage), exec.StartedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowExecution failed", "error", err, "executionID", exec.ID)
		return fmt.Errorf("failed to save flow execution: %w", err)
	}
	slog.Debug("PostgresStore SaveFlowExecution succeeded", "executionID", exec.ID, "status", exec.Status)
	return nil
}

func (s *PostgresStore) SaveDiagnosisResult(userID string, a models.DiagnosisAnswers) error {
	_, err := s.db.Exec(`
		INSERT INTO diagnosis_results
			(user_id, living_in_japan, gender, urgency, region, prefecture, japanese_level, industry, work_style)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, nilIfEmpty(a.LivingInJapan), nilIfEmpty(a.Gender), nilIfEmpty(a.Urgency),
		nilIfEmpty(a.Region), nilIfEmpty(a.Prefecture), nilIfEmpty(a.JapaneseLevel),
		nilIfEmpty(a.Industry), nilIfEmpty(a.WorkStyle))
	if err != nil {
		slog.Error("PostgresStore SaveDiagnosisResult failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert diagnosis result for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SaveDiagnosisResult succeeded", "userID", userID)
	return nil
}

func (s *PostgresStore) GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error) {
	row := s.db.QueryRow(`
		SELECT living_in_japan, gender, urgency, region, prefecture, japanese_level, industry, work_style
		FROM diagnosis_results WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, userID)
	a, err := scanDiagnosisAnswers(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetLatestDiagnosisResult not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLatestDiagnosisResult failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query diagnosis result: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) touchUserStatus(userID string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_status (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET last_used = NOW()`, userID)
	return err
}

func (s *PostgresStore) IncrementDiagnosisCount(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("PostgresStore IncrementDiagnosisCount touch failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert user status: %w", err)
	}
	_, err := s.db.Exec(`
		UPDATE user_status
		SET diagnosis_count = diagnosis_count + 1, total_usage_count = total_usage_count + 1
		WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore IncrementDiagnosisCount failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to increment diagnosis count: %w", err)
	}
	slog.Debug("PostgresStore IncrementDiagnosisCount succeeded", "userID", userID)
	return nil
}

func (s *PostgresStore) IncrementAIChatCount(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("PostgresStore IncrementAIChatCount touch failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert user status: %w", err)
	}
	_, err := s.db.Exec(`
		UPDATE user_status
		SET ai_chat_count = ai_chat_count + 1, total_usage_count = total_usage_count + 1
		WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore IncrementAIChatCount failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to increment ai chat count: %w", err)
	}
	slog.Debug("PostgresStore IncrementAIChatCount succeeded", "userID", userID)
	return nil
}

func (s *PostgresStore) GetUserLang(userID string) (string, error) {
	var lang string
	err := s.db.QueryRow(`SELECT lang FROM user_status WHERE user_id = $1`, userID).Scan(&lang)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserLang failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to query user lang: %w", err)
	}
	return lang, nil
}

func (s *PostgresStore) SaveUserLang(userID, lang string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_status (user_id, lang) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET lang = EXCLUDED.lang, last_used = NOW()`,
		userID, lang)
	if err != nil {
		slog.Error("PostgresStore SaveUserLang failed", "error", err, "userID", userID, "lang", lang)
		return fmt.Errorf("failed to save user lang: %w", err)
	}
	slog.Debug("PostgresStore SaveUserLang succeeded", "userID", userID, "lang", lang)
	return nil
}

func (s *PostgresStore) RecordFollowEvent(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("PostgresStore RecordFollowEvent failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to record follow event: %w", err)
	}
	slog.Debug("PostgresStore RecordFollowEvent succeeded", "userID", userID)
	return nil
}

func (s *PostgresStore) AppendConversationHistory(userID string, turns ...models.ChatTurn) error {
	for _, turn := range turns {
		_, err := s.db.Exec(`INSERT INTO conversation_history (user_id, role, content) VALUES ($1, $2, $3)`,
			userID, turn.Role, turn.Content)
		if err != nil {
			slog.Error("PostgresStore AppendConversationHistory failed", "error", err, "userID", userID, "role", turn.Role)
			return fmt.Errorf("failed to insert history turn: %w", err)
		}
	}
	slog.Debug("PostgresStore AppendConversationHistory succeeded", "userID", userID, "turns", len(turns))
	return nil
}

func (s *PostgresStore) GetConversationHistory(userID string, limit int) ([]models.ChatTurn, error) {
	rows, err := s.db.Query(`
		SELECT role, content FROM (
			SELECT id, role, content FROM conversation_history
			WHERE user_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id`, userID, limit)
	if err != nil {
		slog.Error("PostgresStore GetConversationHistory query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			slog.Error("PostgresStore GetConversationHistory scan failed", "error", err, "userID", userID)
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetConversationHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	slog.Debug("PostgresStore GetConversationHistory succeeded", "userID", userID, "count", len(turns))
	return turns, nil
}

// SaveFAQ stores or updates one FAQ entry (used by loaders and tests).
func (s *PostgresStore) SaveFAQ(id, question, answer, service, keywords string) error {
	_, err := s.db.Exec(`
		INSERT INTO faqs (id, question, answer, service, keywords)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question, answer = EXCLUDED.answer,
			service = EXCLUDED.service, keywords = EXCLUDED.keywords`,
		id, question, answer, nilIfEmpty(service), nilIfEmpty(keywords))
	if err != nil {
		slog.Error("PostgresStore SaveFAQ failed", "error", err, "faqID", id)
		return fmt.Errorf("failed to save faq %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SearchFAQs(query, service string, limit int) ([]models.FAQResult, error) {
	var rows *sql.Rows
	var err error
	if service != "" {
		rows, err = s.db.Query(`SELECT id, question, answer, service, keywords FROM faqs WHERE service = $1`, service)
	} else {
		rows, err = s.db.Query(`SELECT id, question, answer, service, keywords FROM faqs`)
	}
	if err != nil {
		slog.Error("PostgresStore SearchFAQs query failed", "error", err, "service", service)
		return nil, fmt.Errorf("failed to query faqs: %w", err)
	}
	defer rows.Close()

	var candidates []faqRecord
	for rows.Next() {
		rec, err := scanFAQ(rows)
		if err != nil {
			slog.Error("PostgresStore SearchFAQs scan failed", "error", err)
			return nil, err
		}
		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore SearchFAQs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate faq rows: %w", err)
	}

	results := rankFAQs(query, candidates, limit)
	slog.Debug("PostgresStore SearchFAQs succeeded", "candidates", len(candidates), "matches", len(results))
	return results, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
