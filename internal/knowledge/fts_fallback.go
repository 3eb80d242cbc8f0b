// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build !sqlite_fts5

package knowledge

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pdiddy/aiwrite/pkg/types"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; searchPassages scores with LIKE on passages.content.
	return nil
}

// searchPassages ranks passages of collection by the number of distinct
// terms they contain. Without terms the first n passages are returned.
func searchPassages(ctx context.Context, db *sql.DB, collection string, terms []string, n int) ([]types.Passage, error) {
	var (
		query string
		args  []any
	)
	if len(terms) == 0 {
		query = `SELECT source, page, content FROM passages WHERE collection = ? ORDER BY source, page LIMIT ?`
		args = []any{collection, n}
	} else {
		score := make([]string, len(terms))
		for i, t := range terms {
			score[i] = `(lower(content) LIKE ?)`
			args = append(args, "%"+t+"%")
		}
		query = `SELECT source, page, content FROM (
			SELECT source, page, content, ` + strings.Join(score, " + ") + ` AS score
			FROM passages WHERE collection = ?
		) WHERE score > 0 ORDER BY score DESC, source, page LIMIT ?`
		args = append(args, collection, n)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPassages(rows, collection)
}
