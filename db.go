package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS emails (
		id           TEXT PRIMARY KEY,
		sender       TEXT NOT NULL DEFAULT '',
		subject      TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL DEFAULT '',
		date         TEXT NOT NULL DEFAULT '',
		sentiment    TEXT NOT NULL DEFAULT '',
		urgency      TEXT NOT NULL DEFAULT '',
		requirements TEXT NOT NULL DEFAULT '',
		ai_response  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'Pending',
		processed_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);

	CREATE TABLE IF NOT EXISTS email_stats (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		total_received INTEGER NOT NULL DEFAULT 0,
		resolved       INTEGER NOT NULL DEFAULT 0,
		pending        INTEGER NOT NULL DEFAULT 0,
		by_sentiment   TEXT NOT NULL DEFAULT '{}',
		by_urgency     TEXT NOT NULL DEFAULT '{}',
		last_updated   TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

func LoadAllEmails(db *sql.DB) ([]Email, error) {
	rows, err := db.Query(
		`SELECT id, sender, subject, body, date, sentiment, urgency, requirements, ai_response, status, processed_at
		 FROM emails`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		var e Email
		err := rows.Scan(
			&e.ID, &e.Sender, &e.Subject, &e.Body, &e.Date, &e.Sentiment,
			&e.Urgency, &e.Requirements, &e.AIResponse, &e.Status, &e.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func GetEmailByID(db *sql.DB, id string) (Email, error) {
	var e Email
	err := db.QueryRow(
		`SELECT id, sender, subject, body, date, sentiment, urgency, requirements, ai_response, status, processed_at
		 FROM emails WHERE id = ?`,
		id,
	).Scan(
		&e.ID, &e.Sender, &e.Subject, &e.Body, &e.Date, &e.Sentiment,
		&e.Urgency, &e.Requirements, &e.AIResponse, &e.Status, &e.ProcessedAt,
	)
	return e, err
}

func UpsertEmail(db *sql.DB, e Email) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO emails
		 (id, sender, subject, body, date, sentiment, urgency, requirements, ai_response, status, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Sender, e.Subject, e.Body, e.Date, e.Sentiment,
		e.Urgency, e.Requirements, e.AIResponse, e.Status, e.ProcessedAt,
	)
	return err
}

// emailColumns is the set of columns UpdateEmailFields accepts. Keys come
// from handler code, never from request payloads directly.
var emailColumns = map[string]bool{
	"sentiment":    true,
	"urgency":      true,
	"requirements": true,
	"ai_response":  true,
	"status":       true,
	"processed_at": true,
}

func UpdateEmailFields(db *sql.DB, id string, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	var clauses []string
	var args []any
	for col, val := range updates {
		if !emailColumns[col] {
			return fmt.Errorf("unknown email column %q", col)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, val)
	}
	args = append(args, id)
	_, err := db.Exec(
		"UPDATE emails SET "+strings.Join(clauses, ", ")+" WHERE id = ?",
		args...,
	)
	return err
}

func LoadLatestStats(db *sql.DB) (EmailStats, error) {
	var (
		stats       = NewEmailStats()
		bySentiment string
		byUrgency   string
	)
	err := db.QueryRow(
		`SELECT total_received, resolved, pending, by_sentiment, by_urgency, last_updated
		 FROM email_stats ORDER BY id DESC LIMIT 1`,
	).Scan(&stats.TotalReceived, &stats.Resolved, &stats.Pending, &bySentiment, &byUrgency, &stats.LastUpdated)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal([]byte(bySentiment), &stats.BySentiment); err != nil {
		return stats, fmt.Errorf("decode by_sentiment: %w", err)
	}
	if err := json.Unmarshal([]byte(byUrgency), &stats.ByUrgency); err != nil {
		return stats, fmt.Errorf("decode by_urgency: %w", err)
	}
	if stats.BySentiment == nil {
		stats.BySentiment = make(map[string]int)
	}
	if stats.ByUrgency == nil {
		stats.ByUrgency = make(map[string]int)
	}
	return stats, nil
}

func AppendStats(db *sql.DB, stats EmailStats) error {
	bySentiment, err := json.Marshal(stats.BySentiment)
	if err != nil {
		return fmt.Errorf("encode by_sentiment: %w", err)
	}
	byUrgency, err := json.Marshal(stats.ByUrgency)
	if err != nil {
		return fmt.Errorf("encode by_urgency: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO email_stats (total_received, resolved, pending, by_sentiment, by_urgency, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stats.TotalReceived, stats.Resolved, stats.Pending,
		string(bySentiment), string(byUrgency), stats.LastUpdated,
	)
	return err
}

func LoadStatsHistory(db *sql.DB, limit int) ([]StatsHistoryEntry, error) {
	rows, err := db.Query(
		`SELECT total_received, resolved, pending, by_sentiment, by_urgency, last_updated
		 FROM email_stats ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StatsHistoryEntry
	for rows.Next() {
		var (
			entry       StatsHistoryEntry
			bySentiment string
			byUrgency   string
		)
		if err := rows.Scan(&entry.Total, &entry.Resolved, &entry.Pending, &bySentiment, &byUrgency, &entry.Time); err != nil {
			return nil, err
		}
		entry.BySentiment = make(map[string]int)
		entry.ByUrgency = make(map[string]int)
		// Rows written by older builds may hold malformed JSON; keep the
		// counters and serve empty maps for those.
		_ = json.Unmarshal([]byte(bySentiment), &entry.BySentiment)
		_ = json.Unmarshal([]byte(byUrgency), &entry.ByUrgency)
		history = append(history, entry)
	}
	return history, rows.Err()
}
