package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteFileName = "issuedesk.db"

	sqliteSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`
)

type documentRow struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

// SQLiteStore keeps all collections in a single SQLite table with JSON bodies
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (and initializes if needed) the database file in dataDir
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenSQLite(filepath.Join(dataDir, sqliteFileName))
}

// OpenSQLite opens the database at dsn, which may also be ":memory:"
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite3 serializes writers; one connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	var rows []documentRow
	var err error
	if filter.Field == "" {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, body FROM documents WHERE collection = ?`, collection)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, body FROM documents WHERE collection = ? AND json_extract(body, ?) = ?`,
			collection, "$."+filter.Field, filter.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	if err := s.db.GetContext(ctx, &row,
		`SELECT id, body FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return row.document()
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, collection, id, string(body)); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row documentRow
	if err := tx.GetContext(ctx, &row,
		`SELECT id, body FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	doc, err := row.document()
	if err != nil {
		return err
	}

	body, err := json.Marshal(merge(doc.Fields, fields))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, string(body), collection, id); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (r documentRow) document() (Document, error) {
	fields := Fields{}
	if err := json.Unmarshal([]byte(r.Body), &fields); err != nil {
		return Document{}, fmt.Errorf("failed to unmarshal document %s: %w", r.ID, err)
	}
	return Document{ID: r.ID, Fields: fields}, nil
}
