// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/pdiddy/aiwrite/pkg/types"
)

const (
	idxPassages = "aiwrite_passages"

	// inventoryLimit bounds the passages scanned when listing documents.
	inventoryLimit = 10000
)

// passageRecord is the document stored in the Meilisearch passages index.
type passageRecord struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	Content    string `json:"content"`
}

// Meili stores passages of every collection in one Meilisearch index,
// filtered by collection.
type Meili struct {
	client meili.ServiceManager
}

// NewMeili creates a Meilisearch client and configures the passages index.
func NewMeili(url, apiKey string) (*Meili, error) {
	if url == "" {
		return nil, fmt.Errorf("meilisearch url is required")
	}
	m := &Meili{client: meili.New(url, meili.WithAPIKey(apiKey))}
	if _, err := m.client.Health(); err != nil {
		return nil, fmt.Errorf("meilisearch unavailable at %s: %w", url, err)
	}
	m.configureIndex()
	return m, nil
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPassages,
		PrimaryKey: "id",
	}); err != nil {
		slog.Debug("create index (may already exist)", "index", idxPassages, "error", err)
	}

	index := m.client.Index(idxPassages)
	filterable := []interface{}{"collection", "source"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		slog.Warn("update filterable attributes", "index", idxPassages, "error", err)
	}
	searchable := []string{"content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		slog.Warn("update searchable attributes", "index", idxPassages, "error", err)
	}
}

// Open returns a Retriever bound to collection. It satisfies Opener.
func (m *Meili) Open(collection string) (Retriever, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &meiliCollection{m: m, name: collection}, nil
}

type meiliCollection struct {
	m    *Meili
	name string
}

func (c *meiliCollection) Collection() string { return c.name }

func (c *meiliCollection) filter() string {
	return fmt.Sprintf("collection = %q", c.name)
}

func (c *meiliCollection) EmbedText(_ context.Context, text, source string, page int) error {
	rec := passageRecord{
		ID:         passageID(c.name, source, page),
		Collection: c.name,
		Source:     source,
		Page:       page,
		Content:    text,
	}
	if _, err := c.m.client.Index(idxPassages).AddDocuments([]passageRecord{rec}, nil); err != nil {
		return fmt.Errorf("embedding %s page %d: %w", source, page, err)
	}
	return nil
}

func (c *meiliCollection) RetrieveDocs(_ context.Context, query string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	resp, err := c.m.client.Index(idxPassages).Search(query, &meili.SearchRequest{
		Limit:  int64(n),
		Filter: c.filter(),
	})
	if err != nil {
		return "", fmt.Errorf("retrieving from %s: %w", c.name, err)
	}

	passages := make([]types.Passage, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		passages = append(passages, hitToPassage(hit, c.name))
	}
	return aggregate(passages), nil
}

func (c *meiliCollection) EmbeddedDocuments(_ context.Context) ([]types.EmbeddedDocument, error) {
	resp, err := c.m.client.Index(idxPassages).Search("", &meili.SearchRequest{
		Limit:                inventoryLimit,
		Filter:               c.filter(),
		AttributesToRetrieve: []string{"source"},
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents in %s: %w", c.name, err)
	}

	pages := make(map[string]int)
	for _, hit := range resp.Hits {
		pages[decodeString(hit, "source")]++
	}
	docs := make([]types.EmbeddedDocument, 0, len(pages))
	for src, n := range pages {
		docs = append(docs, types.EmbeddedDocument{Source: src, Collection: c.name, Pages: n})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

// passageID derives a stable Meilisearch document id so re-embedding a page
// replaces it.
func passageID(collection, source string, page int) string {
	sum := sha1.Sum([]byte(collection + "\x00" + source + "\x00" + strconv.Itoa(page)))
	return hex.EncodeToString(sum[:])
}

func hitToPassage(hit meili.Hit, collection string) types.Passage {
	p := types.Passage{
		Collection: collection,
		Source:     decodeString(hit, "source"),
		Content:    decodeString(hit, "content"),
	}
	if raw, ok := hit["page"]; ok {
		_ = json.Unmarshal(raw, &p.Page)
	}
	return p
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
