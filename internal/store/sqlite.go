package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gmailsorter/internal/model"
	"gmailsorter/internal/util"

	_ "modernc.org/sqlite"
)

var (
	// ErrDuplicateRule is returned when a label already has a rule for the sender.
	ErrDuplicateRule = errors.New("sender already mapped to this label")
	// ErrRuleNotFound is returned when removing a rule that does not exist.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrInvalidRule is returned for rules without a usable label id or sender.
	ErrInvalidRule = errors.New("invalid rule")
)

// SQLiteStore persists the rule table and run history in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Rule order is the autoincrement id. Label order is the smallest id among a
// label's rules, so a label whose rules were all removed re-enters at the end.
func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sender_rules (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	label_id     TEXT NOT NULL,
	sender_email TEXT NOT NULL,
	sender_key   TEXT NOT NULL,
	sender_name  TEXT NOT NULL DEFAULT '',
	UNIQUE(label_id, sender_key)
);

CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	scanned     INTEGER NOT NULL DEFAULT 0,
	matched     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS processed (
	run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	message_id    TEXT NOT NULL,
	subject       TEXT NOT NULL DEFAULT '',
	label_applied TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, message_id)
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadRuleTable returns a snapshot of the rule table in stored order.
func (s *SQLiteStore) ReadRuleTable(ctx context.Context) (model.RuleTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.label_id, r.sender_email, r.sender_name
		FROM sender_rules r
		JOIN (SELECT label_id, MIN(id) AS first_id FROM sender_rules GROUP BY label_id) o
			ON o.label_id = r.label_id
		ORDER BY o.first_id, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var table model.RuleTable
	for rows.Next() {
		var labelID string
		var rule model.SenderRule
		if err := rows.Scan(&labelID, &rule.SenderEmail, &rule.SenderName); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if n := len(table); n > 0 && table[n-1].LabelID == labelID {
			table[n-1].Rules = append(table[n-1].Rules, rule)
			continue
		}
		table = append(table, model.LabelRules{LabelID: labelID, Rules: []model.SenderRule{rule}})
	}
	return table, rows.Err()
}

// WriteRuleTable replaces the stored table with the given one, preserving its order.
func (s *SQLiteStore) WriteRuleTable(ctx context.Context, table model.RuleTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sender_rules"); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sender_rules (label_id, sender_email, sender_key, sender_name)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range table {
		for _, r := range e.Rules {
			rule, err := cleanRule(e.LabelID, r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, e.LabelID, rule.SenderEmail, util.AddressKey(rule.SenderEmail), rule.SenderName); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%s for label %s: %w", rule.SenderEmail, e.LabelID, ErrDuplicateRule)
				}
				return err
			}
		}
	}
	return tx.Commit()
}

// AddRule appends a rule to the end of labelID's list.
func (s *SQLiteStore) AddRule(ctx context.Context, labelID string, rule model.SenderRule) error {
	rule, err := cleanRule(labelID, rule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sender_rules (label_id, sender_email, sender_key, sender_name)
		VALUES (?, ?, ?, ?)
	`, labelID, rule.SenderEmail, util.AddressKey(rule.SenderEmail), rule.SenderName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", rule.SenderEmail, ErrDuplicateRule)
		}
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// RemoveRule deletes labelID's rule for senderEmail, compared case-insensitively.
func (s *SQLiteStore) RemoveRule(ctx context.Context, labelID, senderEmail string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sender_rules WHERE label_id = ? AND sender_key = ?",
		labelID, util.AddressKey(senderEmail))
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s for label %s: %w", senderEmail, labelID, ErrRuleNotFound)
	}
	return nil
}

// RecordRun stores a run report and its processed records.
func (s *SQLiteStore) RecordRun(ctx context.Context, r model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, scanned, matched, failed, dry_run, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Scanned, r.Matched, r.Failed, r.DryRun, errText)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO processed (run_id, position, message_id, subject, label_applied)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range r.Records {
		if _, err := stmt.ExecContext(ctx, runID, i, rec.MessageID, rec.Subject, rec.LabelApplied); err != nil {
			return fmt.Errorf("insert processed record: %w", err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first, with their records.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, scanned, matched, failed, dry_run, error
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Scanned, &r.Matched, &r.Failed, &r.DryRun, &r.Error); err != nil {
			rows.Close()
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		recs, err := s.processedForRun(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Records = recs
	}
	return runs, nil
}

func (s *SQLiteStore) processedForRun(ctx context.Context, runID int64) ([]model.ProcessedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message_id, subject, label_applied FROM processed WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.ProcessedRecord
	for rows.Next() {
		var rec model.ProcessedRecord
		if err := rows.Scan(&rec.MessageID, &rec.Subject, &rec.LabelApplied); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func cleanRule(labelID string, r model.SenderRule) (model.SenderRule, error) {
	if strings.TrimSpace(labelID) == "" {
		return r, fmt.Errorf("empty label id: %w", ErrInvalidRule)
	}
	r.SenderEmail = util.NormalizeAddress(r.SenderEmail)
	r.SenderName = strings.TrimSpace(r.SenderName)
	if !util.ValidAddress(r.SenderEmail) {
		return r, fmt.Errorf("sender %q: %w", r.SenderEmail, ErrInvalidRule)
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
