package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yolo-japan/lineassist/internal/models"
)

// Opts holds configuration options for the database-backed stores.
type Opts struct {
	DSN string // database connection string (file path for SQLite)
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which driver a DSN targets: "postgres" for
// connection URLs or key=value strings, "sqlite3" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanChatFlow scans a ChatFlow from sql.Rows, decoding the definition JSON.
func scanChatFlow(rows *sql.Rows) (models.ChatFlow, error) {
	var f models.ChatFlow
	var description, triggerValue, service sql.NullString
	var definitionJSON string
	err := rows.Scan(
		&f.ID, &f.Name, &description, &f.TriggerType, &triggerValue, &service,
		&f.IsActive, &f.Priority, &definitionJSON, &f.Version, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return f, fmt.Errorf("scan flow failed: %w", err)
	}
	f.Description = description.String
	f.TriggerValue = triggerValue.String
	f.Service = service.String
	if err := json.Unmarshal([]byte(definitionJSON), &f.Definition); err != nil {
		return f, fmt.Errorf("decode flow definition for %s: %w", f.ID, err)
	}
	return f, nil
}

// scanFAQ scans a faqRecord from sql.Rows.
func scanFAQ(rows *sql.Rows) (faqRecord, error) {
	var rec faqRecord
	var service, keywords sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &service, &keywords); err != nil {
		return rec, fmt.Errorf("scan faq failed: %w", err)
	}
	rec.Service = service.String
	rec.Keywords = keywords.String
	return rec, nil
}

// scanDiagnosisAnswers scans a DiagnosisAnswers row.
func scanDiagnosisAnswers(row *sql.Row) (*models.DiagnosisAnswers, error) {
	var a models.DiagnosisAnswers
	var living, gender, urgency, region, prefecture, level, industry, workStyle sql.NullString
	err := row.Scan(&living, &gender, &urgency, &region, &prefecture, &level, &industry, &workStyle)
	if err != nil {
		return nil, err
	}
	a.LivingInJapan = living.String
	a.Gender = gender.String
	a.Urgency = urgency.String
	a.Region = region.String
	a.Prefecture = prefecture.String
	a.JapaneseLevel = level.String
	a.Industry = industry.String
	a.WorkStyle = workStyle.String
	return &a, nil
}
