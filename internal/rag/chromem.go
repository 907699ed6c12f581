package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/logging"
)

// chromemSeparator joins an index name and its build id into a collection
// name. It cannot appear in names produced by the pipeline.
const chromemSeparator = "~"

// ChromemIndex implements Index on an embedded chromem-go database. Each
// Build fills a new collection and then swaps the name's live pointer to it.
// chromem-go scores by cosine similarity only.
type ChromemIndex struct {
	db *chromem.DB

	// dim is the expected vector length; 0 accepts the first build's length.
	dim int

	// label is stored in every document's metadata.
	label string

	locks keyedMutex

	mu   sync.RWMutex
	live map[string]*chromem.Collection
}

// NewChromemIndex opens a chromem-go database. An empty path keeps the data
// in memory; otherwise collections are persisted under path and the newest
// build of every name is restored.
func NewChromemIndex(path string, dim int, label string) (*ChromemIndex, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %q: %w", path, err)
		}
	}

	idx := &ChromemIndex{db: db, dim: dim, label: label, live: make(map[string]*chromem.Collection)}
	if err := idx.restore(); err != nil {
		return nil, err
	}
	return idx, nil
}

// restore points every name at its newest persisted build and drops older
// builds left behind by an interrupted process. Build ids are UUIDv7, so
// lexical order is creation order.
func (c *ChromemIndex) restore() error {
	newest := make(map[string]string)
	for full := range c.db.ListCollections() {
		name, build, ok := strings.Cut(full, chromemSeparator)
		if !ok {
			continue
		}
		if build > newest[name] {
			newest[name] = build
		}
	}
	for full := range c.db.ListCollections() {
		name, build, ok := strings.Cut(full, chromemSeparator)
		if !ok {
			continue
		}
		if build != newest[name] {
			if err := c.db.DeleteCollection(full); err != nil {
				return fmt.Errorf("chromem: drop stale collection %q: %w", full, err)
			}
			continue
		}
		c.live[name] = c.db.GetCollection(full, nil)
	}
	return nil
}

// Build implements Index.
func (c *ChromemIndex) Build(ctx context.Context, name string, chunks []Chunk) error {
	const op = "chromem: build"
	if name == "" || strings.Contains(name, chromemSeparator) {
		return apperr.New(apperr.KindIndexBuild, op, "invalid index name %q", name)
	}
	if _, err := ValidateChunks(op, chunks, c.dim); err != nil {
		return err
	}

	unlock := c.locks.lock(name)
	defer unlock()

	buildID, err := uuid.NewV7()
	if err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, err)
	}
	staging := name + chromemSeparator + buildID.String()
	coll, err := c.db.CreateCollection(staging, map[string]string{"index": name}, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("create collection %q: %w", staging, err))
	}

	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, ch := range chunks {
			docs[i] = chromem.Document{
				ID:        strconv.Itoa(ch.ID),
				Metadata:  map[string]string{payloadLabel: c.label},
				Embedding: append([]float32(nil), ch.Vector...),
				Content:   ch.Text,
			}
		}
		if err := coll.AddDocuments(ctx, docs, 1); err != nil {
			_ = c.db.DeleteCollection(staging)
			return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("add documents: %w", err))
		}
	}

	c.mu.Lock()
	previous := c.live[name]
	c.live[name] = coll
	c.mu.Unlock()

	if previous != nil {
		if err := c.db.DeleteCollection(previous.Name); err != nil {
			logging.FromContext(ctx).Warn("chromem: failed to delete previous collection",
				slog.String("collection", previous.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Search implements Index.
func (c *ChromemIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]Match, error) {
	const op = "chromem: search"
	c.mu.RLock()
	coll, ok := c.live[name]
	c.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.KindIndexNotFound, op, "index %q does not exist", name)
	}
	if err := ValidateQuery(op, vector, c.dim); err != nil {
		return nil, err
	}

	if k <= 0 || coll.Count() == 0 {
		return []Match{}, nil
	}
	// chromem rejects nResults above the collection size.
	n := min(overFetch(k), coll.Count())
	results, err := coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("malformed document id %q: %w", r.ID, err))
		}
		matches = append(matches, Match{Chunk: Chunk{ID: id, Text: r.Content}, Score: r.Similarity})
	}
	return TopK(matches, k), nil
}

// Close implements Index. Persistent data stays on disk.
func (c *ChromemIndex) Close() error {
	c.mu.Lock()
	c.live = make(map[string]*chromem.Collection)
	c.mu.Unlock()
	return nil
}
