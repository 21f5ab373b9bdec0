// Package store provides storage backends for lineassist.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/yolo-japan/lineassist/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetActiveFlows() ([]models.ChatFlow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, trigger_type, trigger_value, service,
		       is_active, priority, flow_definition, version, created_at, updated_at
		FROM chat_flows WHERE is_active = 1 ORDER BY priority DESC, created_at`)
	if err != nil {
		slog.Error("SQLiteStore GetActiveFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query active flows: %w", err)
	}
	defer rows.Close()

	var flows []models.ChatFlow
	for rows.Next() {
		f, err := scanChatFlow(rows)
		if err != nil {
			slog.Error("SQLiteStore GetActiveFlows scan failed", "error", err)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetActiveFlows rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("SQLiteStore GetActiveFlows succeeded", "count", len(flows))
	return flows, nil
}

func (s *SQLiteStore) GetFlowByID(id string) (*models.ChatFlow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, trigger_type, trigger_value, service,
		       is_active, priority, flow_definition, version, created_at, updated_at
		FROM chat_flows WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore GetFlowByID query failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to query flow %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		slog.Debug("SQLiteStore GetFlowByID not found", "flowID", id)
		return nil, rows.Err()
	}
	f, err := scanChatFlow(rows)
	if err != nil {
		slog.Error("SQLiteStore GetFlowByID scan failed", "error", err, "flowID", id)
		return nil, err
	}
	return &f, nil
}

// SaveFlow stores or updates a flow definition (used by loaders and tests).
func (s *SQLiteStore) SaveFlow(f models.ChatFlow) error {
	definitionJSON, err := json.Marshal(f.Definition)
	if err != nil {
		slog.Error("SQLiteStore SaveFlow marshal failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to encode flow definition: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO chat_flows
			(id, name, description, trigger_type, trigger_value, service, is_active, priority, flow_definition, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, nilIfEmpty(f.Description), string(f.TriggerType), nilIfEmpty(f.TriggerValue),
		nilIfEmpty(f.Service), f.IsActive, f.Priority, string(definitionJSON), f.Version, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to save flow %s: %w", f.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlow succeeded", "flowID", f.ID, "name", f.Name)
	return nil
}

// GetConversationState retrieves the conversation state for a user.
// A missing or undecodable record is reported as no state.
func (s *SQLiteStore) GetConversationState(userID string) (*models.ConversationState, error) {
	var stateJSON string
	var state models.ConversationState
	err := s.db.QueryRow(`SELECT state_data, updated_at FROM conversation_states WHERE user_id = ?`, userID).
		Scan(&stateJSON, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation state: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		// Corrupt state is treated as absent so the user falls back to the default mode.
		slog.Error("SQLiteStore GetConversationState decode failed", "error", err, "userID", userID)
		return nil, nil
	}
	slog.Debug("SQLiteStore GetConversationState found", "userID", userID, "mode", state.Mode)
	return &state, nil
}

func (s *SQLiteStore) SaveConversationState(userID string, state *models.ConversationState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState marshal failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO conversation_states (user_id, mode, state_data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		userID, string(state.Mode), string(stateJSON))
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "userID", userID, "mode", state.Mode)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "userID", userID, "mode", state.Mode)
	return nil
}

func (s *SQLiteStore) ClearConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore ClearConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	slog.Debug("SQLiteStore ClearConversationState succeeded", "userID", userID)
	return nil
}

// DeleteStaleConversationStates removes state records untouched for longer
// than olderThan. Abandoned dialogues then restart from open chat.
func (s *SQLiteStore) DeleteStaleConversationStates(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.Exec(`DELETE FROM conversation_states WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore DeleteStaleConversationStates failed", "error", err)
		return 0, fmt.Errorf("failed to delete stale conversation states: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted conversation states: %w", err)
	}
	slog.Debug("SQLiteStore DeleteStaleConversationStates succeeded", "deleted", deleted)
	return int(deleted), nil
}

func (s *SQLiteStore) SaveFlowExecution(exec models.FlowExecution) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO flow_executions
			(id, flow_id, user_id, status, current_node_id, error_message, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		exec.ID, exec.FlowID, exec.UserID, string(exec.Status),
		nilIfEmpty(exec.CurrentNodeID), nilIfEmpty(exec.ErrorMessage), exec.StartedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowExecution failed", "error", err, "executionID", exec.ID)
		return fmt.Errorf("failed to save flow execution: %w", err)
	}
	slog.Debug("SQLiteStore SaveFlowExecution succeeded", "executionID", exec.ID, "status", exec.Status)
	return nil
}

func (s *SQLiteStore) SaveDiagnosisResult(userID string, a models.DiagnosisAnswers) error {
	_, err := s.db.Exec(`
		INSERT INTO diagnosis_results
			(user_id, living_in_japan, gender, urgency, region, prefecture, japanese_level, industry, work_style)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, nilIfEmpty(a.LivingInJapan), nilIfEmpty(a.Gender), nilIfEmpty(a.Urgency),
		nilIfEmpty(a.Region), nilIfEmpty(a.Prefecture), nilIfEmpty(a.JapaneseLevel),
		nilIfEmpty(a.Industry), nilIfEmpty(a.WorkStyle))
	if err != nil {
		slog.Error("SQLiteStore SaveDiagnosisResult failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert diagnosis result for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SaveDiagnosisResult succeeded", "userID", userID)
	return nil
}

func (s *SQLiteStore) GetLatestDiagnosisResult(userID string) (*models.DiagnosisAnswers, error) {
	row := s.db.QueryRow(`
		SELECT living_in_japan, gender, urgency, region, prefecture, japanese_level, industry, work_style
		FROM diagnosis_results WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
	a, err := scanDiagnosisAnswers(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetLatestDiagnosisResult not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLatestDiagnosisResult failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query diagnosis result: %w", err)
	}
	return a, nil
}

// touchUserStatus ensures the user_status row exists and bumps last_used.
func (s *SQLiteStore) touchUserStatus(userID string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_status (user_id) VALUES (?)
		ON CONFLICT(user_id) DO UPDATE SET last_used = CURRENT_TIMESTAMP`, userID)
	return err
}

func (s *SQLiteStore) IncrementDiagnosisCount(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("SQLiteStore IncrementDiagnosisCount touch failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert user status: %w", err)
	}
	_, err := s.db.Exec(`
		UPDATE user_status
		SET diagnosis_count = diagnosis_count + 1, total_usage_count = total_usage_count + 1
		WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore IncrementDiagnosisCount failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to increment diagnosis count: %w", err)
	}
	slog.Debug("SQLiteStore IncrementDiagnosisCount succeeded", "userID", userID)
	return nil
}

func (s *SQLiteStore) IncrementAIChatCount(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("SQLiteStore IncrementAIChatCount touch failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert user status: %w", err)
	}
	_, err := s.db.Exec(`
		UPDATE user_status
		SET ai_chat_count = ai_chat_count + 1, total_usage_count = total_usage_count + 1
		WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore IncrementAIChatCount failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to increment ai chat count: %w", err)
	}
	slog.Debug("SQLiteStore IncrementAIChatCount succeeded", "userID", userID)
	return nil
}

func (s *SQLiteStore) GetUserLang(userID string) (string, error) {
	var lang string
	err := s.db.QueryRow(`SELECT lang FROM user_status WHERE user_id = ?`, userID).Scan(&lang)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserLang failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to query user lang: %w", err)
	}
	return lang, nil
}

func (s *SQLiteStore) SaveUserLang(userID, lang string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_status (user_id, lang) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET lang = excluded.lang, last_used = CURRENT_TIMESTAMP`,
		userID, lang)
	if err != nil {
		slog.Error("SQLiteStore SaveUserLang failed", "error", err, "userID", userID, "lang", lang)
		return fmt.Errorf("failed to save user lang: %w", err)
	}
	slog.Debug("SQLiteStore SaveUserLang succeeded", "userID", userID, "lang", lang)
	return nil
}

func (s *SQLiteStore) RecordFollowEvent(userID string) error {
	if err := s.touchUserStatus(userID); err != nil {
		slog.Error("SQLiteStore RecordFollowEvent failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to record follow event: %w", err)
	}
	slog.Debug("SQLiteStore RecordFollowEvent succeeded", "userID", userID)
	return nil
}

func (s *SQLiteStore) AppendConversationHistory(userID string, turns ...models.ChatTurn) error {
	for _, turn := range turns {
		_, err := s.db.Exec(`INSERT INTO conversation_history (user_id, role, content) VALUES (?, ?, ?)`,
			userID, turn.Role, turn.Content)
		if err != nil {
			slog.Error("SQLiteStore AppendConversationHistory failed", "error", err, "userID", userID, "role", turn.Role)
			return fmt.Errorf("failed to insert history turn: %w", err)
		}
	}
	slog.Debug("SQLiteStore AppendConversationHistory succeeded", "userID", userID, "turns", len(turns))
	return nil
}

func (s *SQLiteStore) GetConversationHistory(userID string, limit int) ([]models.ChatTurn, error) {
	rows, err := s.db.Query(`
		SELECT role, content FROM (
			SELECT id, role, content FROM conversation_history
			WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore GetConversationHistory query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			slog.Error("SQLiteStore GetConversationHistory scan failed", "error", err, "userID", userID)
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetConversationHistory rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	slog.Debug("SQLiteStore GetConversationHistory succeeded", "userID", userID, "count", len(turns))
	return turns, nil
}

// SaveFAQ stores or updates one FAQ entry (used by loaders and tests).
func (s *SQLiteStore) SaveFAQ(id, question, answer, service, keywords string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO faqs (id, question, answer, service, keywords)
		VALUES (?, ?, ?, ?, ?)`,
		id, question, answer, nilIfEmpty(service), nilIfEmpty(keywords))
	if err != nil {
		slog.Error("SQLiteStore SaveFAQ failed", "error", err, "faqID", id)
		return fmt.Errorf("failed to save faq %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SearchFAQs(query, service string, limit int) ([]models.FAQResult, error) {
	var rows *sql.Rows
	var err error
	if service != "" {
		rows, err = s.db.Query(`SELECT id, question, answer, service, keywords FROM faqs WHERE service = ?`, service)
	} else {
		rows, err = s.db.Query(`SELECT id, question, answer, service, keywords FROM faqs`)
	}
	if err != nil {
		slog.Error("SQLiteStore SearchFAQs query failed", "error", err, "service", service)
		return nil, fmt.Errorf("failed to query faqs: %w", err)
	}
	defer rows.Close()

	var candidates []faqRecord
	for rows.Next() {
		rec, err := scanFAQ(rows)
		if err != nil {
			slog.Error("SQLiteStore SearchFAQs scan failed", "error", err)
			return nil, err
		}
		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore SearchFAQs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate faq rows: %w", err)
	}

	results := rankFAQs(query, candidates, limit)
	slog.Debug("SQLiteStore SearchFAQs succeeded", "candidates", len(candidates), "matches", len(results))
	return results, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
