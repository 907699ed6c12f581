package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Pipeline defaults, used when the corresponding env var is unset.
const (
	DefaultLanguage         = "english"
	DefaultSummarySize      = 100
	DefaultTagsNumber       = 3
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 200
	DefaultTopK             = 4
	DefaultMaxContextTokens = 6000
	DefaultIndexBackend     = "memory"
	DefaultMemoryMaxNames   = 64
	DefaultNodeLabel        = "PdfBotChunk"
	DefaultQdrantPort       = 6334
	DefaultMaxUploadMB      = 32
)

// Settings is the explicit configuration object threaded through the
// pipeline. It is built once at startup by SettingsFromEnv; nothing below
// the command layer reads the environment for these values.
type Settings struct {
	// Language is the output language for every answer.
	Language string
	// SummarySize is the target summary length in words.
	SummarySize int
	// TagsNumber is the exact number of tags summarize returns.
	TagsNumber int
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int
	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int
	// TopK is the number of chunks retrieved for each generation.
	TopK int
	// MaxContextTokens is the estimated prompt budget.
	MaxContextTokens int
	// Index configures the vector index backend.
	Index IndexSettings
}

// IndexSettings configures the vector index backend.
type IndexSettings struct {
	// Backend is memory, sqlite, qdrant or chromem.
	Backend string
	// Distance is cosine or l2.
	Distance string
	// NodeLabel is stored with every chunk written by this application.
	NodeLabel string
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// MemoryMaxNames bounds how many documents the memory backend keeps
	// before evicting the least recently used.
	MemoryMaxNames int
	// ChromemPath is the persistence directory for chromem; empty keeps it in memory.
	ChromemPath string
	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string
	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int
	// QdrantAPIKey authenticates against Qdrant Cloud.
	QdrantAPIKey string
	// QdrantTLS enables TLS to Qdrant.
	QdrantTLS bool
}

// DefaultSettings returns the settings used when no env var is set.
func DefaultSettings() Settings {
	return Settings{
		Language:         DefaultLanguage,
		SummarySize:      DefaultSummarySize,
		TagsNumber:       DefaultTagsNumber,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		TopK:             DefaultTopK,
		MaxContextTokens: DefaultMaxContextTokens,
		Index: IndexSettings{
			Backend:    DefaultIndexBackend,
			Distance:   "cosine",
			NodeLabel:      DefaultNodeLabel,
			MemoryMaxNames: DefaultMemoryMaxNames,
			SQLitePath:     defaultSQLitePath(),
			QdrantHost:     "localhost",
			QdrantPort:     DefaultQdrantPort,
		},
	}
}

// SettingsFromEnv overlays environment variables on DefaultSettings and
// validates the result. All problems are reported together.
func SettingsFromEnv() (Settings, error) {
	s := DefaultSettings()
	var errs []error
	intVar := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
	strVar := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	strVar("SUMMARY_LANGUAGE", &s.Language)
	intVar("SUMMARY_SIZE", &s.SummarySize)
	intVar("TAGS_NUMBER", &s.TagsNumber)
	intVar("CHUNK_SIZE", &s.ChunkSize)
	intVar("CHUNK_OVERLAP", &s.ChunkOverlap)
	intVar("RAG_TOP_K", &s.TopK)
	intVar("MAX_CONTEXT_TOKENS", &s.MaxContextTokens)

	strVar("INDEX_BACKEND", &s.Index.Backend)
	strVar("INDEX_DISTANCE", &s.Index.Distance)
	strVar("INDEX_NODE_LABEL", &s.Index.NodeLabel)
	intVar("INDEX_MEMORY_MAX_NAMES", &s.Index.MemoryMaxNames)
	strVar("INDEX_SQLITE_PATH", &s.Index.SQLitePath)
	strVar("INDEX_CHROMEM_PATH", &s.Index.ChromemPath)
	strVar("QDRANT_HOST", &s.Index.QdrantHost)
	intVar("QDRANT_PORT", &s.Index.QdrantPort)
	strVar("QDRANT_API_KEY", &s.Index.QdrantAPIKey)
	if v := strings.TrimSpace(os.Getenv("QDRANT_TLS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("QDRANT_TLS=%q is not a boolean", v))
		}
		s.Index.QdrantTLS = b
	}
	s.Index.Backend = strings.ToLower(s.Index.Backend)

	if err := s.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Settings{}, fmt.Errorf("config: invalid settings: %w", errors.Join(errs...))
	}
	return s, nil
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Language) == "" {
		errs = append(errs, errors.New("SUMMARY_LANGUAGE must not be empty"))
	}
	if s.SummarySize <= 0 {
		errs = append(errs, fmt.Errorf("SUMMARY_SIZE must be positive, got %d", s.SummarySize))
	}
	if s.TagsNumber <= 0 {
		errs = append(errs, fmt.Errorf("TAGS_NUMBER must be positive, got %d", s.TagsNumber))
	}
	if s.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", s.ChunkSize))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must satisfy 0 <= overlap < CHUNK_SIZE, got %d (size %d)", s.ChunkOverlap, s.ChunkSize))
	}
	if s.TopK <= 0 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be positive, got %d", s.TopK))
	}
	if s.MaxContextTokens <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_TOKENS must be positive, got %d", s.MaxContextTokens))
	}
	switch s.Index.Backend {
	case "memory":
		if s.Index.MemoryMaxNames <= 0 {
			errs = append(errs, fmt.Errorf("INDEX_MEMORY_MAX_NAMES must be positive, got %d", s.Index.MemoryMaxNames))
		}
	case "sqlite", "chromem":
	case "qdrant":
		if s.Index.QdrantHost == "" {
			errs = append(errs, errors.New("QDRANT_HOST is required for the qdrant backend"))
		}
		if s.Index.QdrantPort <= 0 || s.Index.QdrantPort > 65535 {
			errs = append(errs, fmt.Errorf("QDRANT_PORT out of range: %d", s.Index.QdrantPort))
		}
	default:
		errs = append(errs, fmt.Errorf("INDEX_BACKEND %q is not one of memory, sqlite, qdrant, chromem", s.Index.Backend))
	}
	switch strings.ToLower(s.Index.Distance) {
	case "", "cosine", "l2", "euclid", "euclidean":
	default:
		errs = append(errs, fmt.Errorf("INDEX_DISTANCE %q is not cosine or l2", s.Index.Distance))
	}
	if s.Index.Backend == "chromem" && strings.EqualFold(s.Index.Distance, "l2") {
		errs = append(errs, errors.New("the chromem backend supports cosine distance only"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes returns DOCQA_MAX_UPLOAD_MB in bytes, or the default.
func MaxUploadBytes() int64 {
	mb := DefaultMaxUploadMB
	if v, err := strconv.Atoi(os.Getenv("DOCQA_MAX_UPLOAD_MB")); err == nil && v > 0 {
		mb = v
	}
	return int64(mb) << 20
}

// defaultSQLitePath returns ~/.docqa/index.db, or a relative fallback when
// the home directory cannot be resolved.
func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".docqa", "index.db")
	}
	return filepath.Join(home, ".docqa", "index.db")
}
