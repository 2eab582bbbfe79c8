// Package store archives site-wide reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site_url TEXT NOT NULL,
	generated_at DATETIME NOT NULL,
	wcag_level TEXT NOT NULL,
	commit_hash TEXT,
	total_pages INTEGER NOT NULL,
	pages_with_violations INTEGER NOT NULL,
	total_violations INTEGER NOT NULL,
	compliance REAL NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reports_site ON reports(site_url, id);

CREATE TABLE IF NOT EXISTS report_rules (
	report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	rule_id TEXT NOT NULL,
	impact TEXT NOT NULL,
	occurrences INTEGER NOT NULL,
	affected_pages INTEGER NOT NULL,
	PRIMARY KEY (report_id, rule_id)
);`

// SQLiteStore implements domain.ReportStore.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging report database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating report tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save stores the report and its per-rule breakdown in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, report *domain.SiteWideReport) (int64, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encoding report: %w", err)
	}

	var id int64
	err = s.withTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (site_url, generated_at, wcag_level, commit_hash, total_pages,
				pages_with_violations, total_violations, compliance, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.SiteURL,
			report.Timestamp.UTC(),
			string(report.WCAGLevel),
			report.CommitHash,
			report.Summary.TotalPages,
			report.Summary.PagesWithViolations,
			report.Summary.TotalViolations,
			report.Summary.CompliancePercentage,
			string(body),
		)
		if err != nil {
			return fmt.Errorf("inserting report: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO report_rules (report_id, rule_id, impact, occurrences, affected_pages)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing rule insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range report.WCAGComplianceMatrix {
			if _, err := stmt.ExecContext(ctx, id, e.RuleID, string(e.Impact), e.TotalOccurrences, e.AffectedPages); err != nil {
				return fmt.Errorf("inserting rule %s: %w", e.RuleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Latest returns the newest report for siteURL, or nil when none exists.
func (s *SQLiteStore) Latest(ctx context.Context, siteURL string) (*domain.SiteWideReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM reports WHERE site_url = ? ORDER BY id DESC LIMIT 1`, siteURL).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest report: %w", err)
	}

	var report domain.SiteWideReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("decoding stored report: %w", err)
	}
	return &report, nil
}

// List returns history entries for siteURL (all sites when empty), newest first.
func (s *SQLiteStore) List(ctx context.Context, siteURL string, limit int) ([]domain.ReportEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_url, generated_at, COALESCE(commit_hash, ''), total_pages, total_violations, compliance
		FROM reports
		WHERE ? = '' OR site_url = ?
		ORDER BY id DESC
		LIMIT ?`, siteURL, siteURL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var entries []domain.ReportEntry
	for rows.Next() {
		var (
			e  domain.ReportEntry
			at time.Time
		)
		if err := rows.Scan(&e.SiteURL, &at, &e.CommitHash, &e.TotalPages, &e.TotalViolations, &e.CompliancePercentage); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		e.Timestamp = at.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RuleTrend returns the occurrence count of ruleID in each stored report for
// siteURL, oldest first.
func (s *SQLiteStore) RuleTrend(ctx context.Context, siteURL, ruleID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(rr.occurrences, 0)
		FROM reports r
		LEFT JOIN report_rules rr ON rr.report_id = r.id AND rr.rule_id = ?
		WHERE r.site_url = ?
		ORDER BY r.id`, ruleID, siteURL)
	if err != nil {
		return nil, fmt.Errorf("querying rule trend: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		counts = append(counts, n)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) withTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}
