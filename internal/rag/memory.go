package rag

import (
	"container/list"
	"context"
	"sync"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// DefaultMemoryMaxNames is the number of names a MemoryIndex keeps before it
// evicts the least recently used one.
const DefaultMemoryMaxNames = 64

// MemoryIndex is a process-local Index. Each name maps to an immutable
// snapshot; Build constructs a new snapshot off-lock and swaps it in, so
// readers never see a partially built index.
//
// Names are kept in least-recently-used order (Build and Search both count
// as use) and the oldest is dropped once more than maxNames exist, so a
// long-running server holds a bounded number of documents.
type MemoryIndex struct {
	// distance is the scoring metric for every name in this index.
	distance Distance

	// dim is the expected vector length; 0 accepts the first build's length.
	dim int

	// maxNames bounds the number of live names.
	maxNames int

	mu     sync.Mutex
	byName map[string]*list.Element
	// lru holds *memoryEntry values, most recently used first.
	lru *list.List
}

// memoryEntry is one name and its current snapshot.
type memoryEntry struct {
	name string
	snap *snapshot
}

// snapshot is the frozen contents of one name.
type snapshot struct {
	chunks []Chunk
	dim    int
}

// MemoryOption configures a MemoryIndex.
type MemoryOption func(*MemoryIndex)

// WithMaxNames bounds the number of names the index keeps. n <= 0 selects
// DefaultMemoryMaxNames.
func WithMaxNames(n int) MemoryOption {
	return func(m *MemoryIndex) {
		if n > 0 {
			m.maxNames = n
		}
	}
}

// NewMemoryIndex returns an empty MemoryIndex. dim may be 0 when the
// embedding dimension is not known up front.
func NewMemoryIndex(distance Distance, dim int, opts ...MemoryOption) *MemoryIndex {
	if distance == "" {
		distance = DistanceCosine
	}
	m := &MemoryIndex{
		distance: distance,
		dim:      dim,
		maxNames: DefaultMemoryMaxNames,
		byName:   make(map[string]*list.Element),
		lru:      list.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build implements Index.
func (m *MemoryIndex) Build(ctx context.Context, name string, chunks []Chunk) error {
	if name == "" {
		return apperr.New(apperr.KindIndexBuild, "rag: memory build", "index name must not be empty")
	}
	dim, err := ValidateChunks("rag: memory build", chunks, m.dim)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, "rag: memory build", err)
	}

	snap := &snapshot{chunks: make([]Chunk, len(chunks)), dim: dim}
	for i, c := range chunks {
		snap.chunks[i] = Chunk{ID: c.ID, Text: c.Text, Vector: append([]float32(nil), c.Vector...)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.byName[name]; ok {
		el.Value.(*memoryEntry).snap = snap
		m.lru.MoveToFront(el)
		return nil
	}
	m.byName[name] = m.lru.PushFront(&memoryEntry{name: name, snap: snap})
	for m.lru.Len() > m.maxNames {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.byName, oldest.Value.(*memoryEntry).name)
	}
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, name string, vector []float32, k int) ([]Match, error) {
	m.mu.Lock()
	el, ok := m.byName[name]
	var snap *snapshot
	if ok {
		m.lru.MoveToFront(el)
		snap = el.Value.(*memoryEntry).snap
	}
	m.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.KindIndexNotFound, "rag: memory search", "index %q does not exist", name)
	}
	if err := ValidateQuery("rag: memory search", vector, snap.dim); err != nil {
		return nil, err
	}
	return Rank(m.distance, snap.chunks, vector, k), nil
}

// Len returns the number of names currently held.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Close implements Index. It drops every snapshot.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	m.byName = make(map[string]*list.Element)
	m.lru.Init()
	m.mu.Unlock()
	return nil
}
