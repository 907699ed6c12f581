// Package pipeline orchestrates one document request end to end:
// extract → chunk → embed + build index → retrieve → generate → shape.
//
// The three document modes (classify, prompt, summarize) share that path and
// differ only in the instruction they send and how they shape the answer.
// Describe sends an image straight to the model and skips the index. Stages run
// sequentially; requests run concurrently and share nothing but the index.
// Every failure surfaces as an *apperr.Error tagged with the stage it
// happened in. Nothing is retried.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Extractor turns an upload into text.
type Extractor interface {
	Extract(ctx context.Context, u extract.Upload) (extract.Text, error)
}

// Generator produces an answer from an instruction and retrieved context,
// or a description of an image.
type Generator interface {
	Generate(ctx context.Context, instruction string, matches []rag.Match, sink generator.Sink) (string, error)
	Describe(ctx context.Context, instruction string, img generator.Image, sink generator.Sink) (string, error)
	ModelName() string
}

// Config holds the dependencies required to construct a Pipeline.
type Config struct {
	// Settings are the process-wide pipeline settings.
	Settings config.Settings

	// Extractor converts uploads to text. Defaults to extract.New().
	Extractor Extractor

	// Embedder embeds chunks and queries.
	Embedder rag.Embedder

	// Index stores and searches chunk vectors.
	Index rag.Index

	// Generator produces answers.
	Generator Generator

	// Observer receives stage timings and outcomes. May be nil.
	Observer Observer
}

// Pipeline runs document requests. It is safe for concurrent use.
type Pipeline struct {
	settings  config.Settings
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  rag.Embedder
	index     rag.Index
	retriever *rag.Retriever
	generator Generator
	observer  Observer
}

// New constructs a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.Embedder == nil || cfg.Index == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: Embedder, Index and Generator are required")
	}
	ch, err := chunker.New(cfg.Settings.ChunkSize, cfg.Settings.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	retriever, err := rag.NewRetriever(cfg.Embedder, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ex := cfg.Extractor
	if ex == nil {
		ex = extract.New()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Pipeline{
		settings:  cfg.Settings,
		extractor: ex,
		chunker:   ch,
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		retriever: retriever,
		generator: cfg.Generator,
		observer:  obs,
	}, nil
}

// ModelName returns the name of the LLM that answers requests.
func (p *Pipeline) ModelName() string { return p.generator.ModelName() }

// Settings returns the settings the pipeline was built with.
func (p *Pipeline) Settings() config.Settings { return p.settings }

// IndexName derives the index name for an upload from its content, so two
// requests share an index only when they upload identical bytes.
func IndexName(data []byte) string {
	sum := sha256.Sum256(data)
	return "doc-" + hex.EncodeToString(sum[:16])
}

// prepare runs the shared front half of every mode and returns the name of
// the freshly built index.
func (p *Pipeline) prepare(ctx context.Context, r *run, u extract.Upload) (string, error) {
	r.enter(ctx, StageExtracting)
	text, err := p.extractor.Extract(ctx, u)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, "pipeline: extract", err)
	}

	r.enter(ctx, StageChunking)
	pieces := p.chunker.Split(text.Content)
	if len(pieces) == 0 {
		return "", apperr.New(apperr.KindExtraction, "pipeline: chunk", "document produced no chunks")
	}

	name := IndexName(u.Data)
	r.log = r.log.With(slog.String("index", name))
	r.enter(ctx, StageIndexing)

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEmbeddingService, "pipeline: embed chunks", err)
	}
	if len(vectors) != len(pieces) {
		return "", apperr.New(apperr.KindEmbeddingService, "pipeline: embed chunks",
			"expected %d vectors, got %d", len(pieces), len(vectors))
	}
	chunks := make([]rag.Chunk, len(pieces))
	for i, c := range pieces {
		chunks[i] = rag.Chunk{ID: c.ID, Text: c.Text, Vector: vectors[i]}
	}
	if err := p.index.Build(ctx, name, chunks); err != nil {
		return "", apperr.Wrap(apperr.KindIndexBuild, "pipeline: build index", err)
	}
	r.log.Debug("pipeline: index built",
		slog.Int("pages", len(text.Pages)),
		slog.String("format", string(text.Format)),
		slog.Int("chunks", len(chunks)),
	)
	return name, nil
}

// retrieve runs the Retrieving stage for query.
func (p *Pipeline) retrieve(ctx context.Context, r *run, name, query string) ([]rag.Match, error) {
	r.enter(ctx, StageRetrieving)
	matches, err := p.retriever.Retrieve(ctx, name, query, p.settings.TopK)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "pipeline: retrieve", err)
	}
	r.log.Debug("pipeline: retrieved context", slog.Int("matches", len(matches)))
	return matches, nil
}

// single runs a one-generation mode and returns the raw answer.
func (p *Pipeline) single(ctx context.Context, r *run, u extract.Upload, instruction string, sink generator.Sink) (string, error) {
	name, err := p.prepare(ctx, r, u)
	if err != nil {
		return "", err
	}
	matches, err := p.retrieve(ctx, r, name, instruction)
	if err != nil {
		return "", err
	}
	r.enter(ctx, StageGenerating)
	if sink == nil {
		sink = generator.Discard
	}
	return p.generator.Generate(ctx, instruction, matches, sink)
}

// newRun starts tracking one request in mode.
func (p *Pipeline) newRun(ctx context.Context, mode Mode) *run {
	return newRun(logging.FromContext(ctx).With(slog.String("mode", string(mode))), mode, p.observer)
}
