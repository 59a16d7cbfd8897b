package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
	_ "github.com/lib/pq"
)

const postgresInitTimeout = 10 * time.Second

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresSubmitter inserts records straight into the backend database.
// The connection is opened lazily on the first submit; if opening it or
// creating the table fails, the next submit tries again.
type PostgresSubmitter struct {
	dsn    string
	table  string
	openDB sqlOpenFunc

	mu sync.Mutex
	db *sql.DB
}

// NewPostgresSubmitter creates a submitter writing to table (DefaultTable when empty).
func NewPostgresSubmitter(dsn, table string) (*PostgresSubmitter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSubmitter{
		dsn:    dsn,
		table:  table,
		openDB: sql.Open,
	}, nil
}

// Submit inserts one record. The database assigns its own id.
func (p *PostgresSubmitter) Submit(ctx context.Context, payload models.RecordPayload) error {
	db, err := p.ensureReady()
	if err != nil {
		return err
	}
	args, err := insertArgs(payload)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, insertQuery(p.table), args...)
	return err
}

// Close releases the connection pool
func (p *PostgresSubmitter) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *PostgresSubmitter) ensureReady() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}

	db, err := p.openDB("postgres", p.dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresInitTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, createTableQuery(p.table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare %s: %w", p.table, err)
	}
	p.db = db
	return db, nil
}

func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			form_id TEXT NOT NULL,
			form_title TEXT,
			answers JSONB NOT NULL DEFAULT '{}'::jsonb,
			photos JSONB NOT NULL DEFAULT '{}'::jsonb,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, quoteIdentifier(table))
}

func insertQuery(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (form_id, form_title, answers, photos, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, quoteIdentifier(table))
}

func insertArgs(payload models.RecordPayload) ([]any, error) {
	answers := payload.Answers
	if answers == nil {
		answers = map[string]any{}
	}
	photos := payload.Photos
	if photos == nil {
		photos = map[string][]models.Photo{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photos: %w", err)
	}
	return []any{
		payload.FormID,
		payload.FormTitle,
		string(answersJSON),
		string(photosJSON),
		string(payload.Status),
		payload.CreatedAt,
	}, nil
}
