// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build sqlite_fts5

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// initFTS creates the FTS5 index over passages with sync triggers.
func initFTS(db *sql.DB) error {
	var exists int
	if err := db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='passages_fts'`,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if exists > 0 {
		return nil
	}

	statements := []string{
		`CREATE VIRTUAL TABLE passages_fts USING fts5(content, content=passages, content_rowid=rowid,
			tokenize = 'unicode61 remove_diacritics 2')`,
		`CREATE TRIGGER passages_ai AFTER INSERT ON passages BEGIN
			INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER passages_ad AFTER DELETE ON passages BEGIN
			INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER passages_au AFTER UPDATE ON passages BEGIN
			INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// searchPassages ranks passages of collection with FTS5 bm25, matching any
// of terms. Without terms the first n passages are returned.
func searchPassages(ctx context.Context, db *sql.DB, collection string, terms []string, n int) ([]types.Passage, error) {
	if len(terms) == 0 {
		rows, err := db.QueryContext(ctx,
			`SELECT source, page, content FROM passages WHERE collection = ? ORDER BY source, page LIMIT ?`,
			collection, n)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanPassages(rows, collection)
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	rows, err := db.QueryContext(ctx,
		`SELECT p.source, p.page, p.content
		 FROM passages_fts
		 JOIN passages p ON p.rowid = passages_fts.rowid
		 WHERE passages_fts MATCH ? AND p.collection = ?
		 ORDER BY passages_fts.rank
		 LIMIT ?`,
		strings.Join(quoted, " OR "), collection, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPassages(rows, collection)
}
