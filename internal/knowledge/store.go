// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// Index is the SQLite passage database shared by every collection.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the passage database at path and creates the
// schema if it does not exist.
func OpenIndex(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			source TEXT NOT NULL,
			page INTEGER NOT NULL,
			content TEXT NOT NULL,
			UNIQUE(collection, source, page)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_collection ON passages(collection)`,
	}
	for _, stmt := range statements {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return initFTS(idx.db)
}

// Open returns a Retriever bound to collection. It satisfies Opener.
func (idx *Index) Open(collection string) (Retriever, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &sqliteCollection{idx: idx, name: collection}, nil
}

// sqliteCollection is a Retriever scoped to one collection of an Index.
type sqliteCollection struct {
	idx  *Index
	name string
}

func (c *sqliteCollection) Collection() string { return c.name }

func (c *sqliteCollection) EmbedText(ctx context.Context, text, source string, page int) error {
	_, err := c.idx.db.ExecContext(ctx,
		`INSERT INTO passages (collection, source, page, content) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, source, page) DO UPDATE SET content = excluded.content`,
		c.name, source, page, text,
	)
	if err != nil {
		return fmt.Errorf("embedding %s page %d: %w", source, page, err)
	}
	return nil
}

func (c *sqliteCollection) RetrieveDocs(ctx context.Context, query string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	passages, err := searchPassages(ctx, c.idx.db, c.name, queryTerms(query), n)
	if err != nil {
		return "", fmt.Errorf("retrieving from %s: %w", c.name, err)
	}
	return aggregate(passages), nil
}

func (c *sqliteCollection) EmbeddedDocuments(ctx context.Context) ([]types.EmbeddedDocument, error) {
	rows, err := c.idx.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM passages WHERE collection = ? GROUP BY source ORDER BY source`,
		c.name)
	if err != nil {
		return nil, fmt.Errorf("listing documents in %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []types.EmbeddedDocument
	for rows.Next() {
		d := types.EmbeddedDocument{Collection: c.name}
		if err := rows.Scan(&d.Source, &d.Pages); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Passages returns every passage of collection ordered by source and page.
func (idx *Index) Passages(ctx context.Context, collection string) ([]types.Passage, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT source, page, content FROM passages WHERE collection = ? ORDER BY source, page`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("reading passages of %s: %w", collection, err)
	}
	defer rows.Close()
	return scanPassages(rows, collection)
}

func scanPassages(rows *sql.Rows, collection string) ([]types.Passage, error) {
	var out []types.Passage
	for rows.Next() {
		p := types.Passage{Collection: collection}
		if err := rows.Scan(&p.Source, &p.Page, &p.Content); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
