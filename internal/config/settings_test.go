package config

import (
	"strings"
	"testing"
)

// clearSettingsEnv blanks every variable SettingsFromEnv reads.
func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SUMMARY_LANGUAGE", "SUMMARY_SIZE", "TAGS_NUMBER", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"RAG_TOP_K", "MAX_CONTEXT_TOKENS", "INDEX_BACKEND", "INDEX_DISTANCE",
		"INDEX_NODE_LABEL", "INDEX_MEMORY_MAX_NAMES", "INDEX_SQLITE_PATH", "INDEX_CHROMEM_PATH",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY", "QDRANT_TLS",
	} {
		t.Setenv(k, "")
	}
}

func TestSettingsFromEnv_Defaults(t *testing.T) {
	clearSettingsEnv(t)
	s, err := SettingsFromEnv()
	if err != nil {
		t.Fatalf("SettingsFromEnv: %v", err)
	}
	if s.Language != "english" || s.SummarySize != 100 || s.TagsNumber != 3 {
		t.Errorf("unexpected pipeline defaults: %+v", s)
	}
	if s.ChunkSize != 1000 || s.ChunkOverlap != 200 || s.TopK != 4 {
		t.Errorf("unexpected chunking defaults: %+v", s)
	}
	if s.Index.Backend != "memory" || s.Index.NodeLabel != "PdfBotChunk" || s.Index.QdrantPort != 6334 || s.Index.MemoryMaxNames != 64 {
		t.Errorf("unexpected index defaults: %+v", s.Index)
	}
}

func TestSettingsFromEnv_Overrides(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("SUMMARY_LANGUAGE", "german")
	t.Setenv("SUMMARY_SIZE", "50")
	t.Setenv("TAGS_NUMBER", "5")
	t.Setenv("CHUNK_SIZE", "20")
	t.Setenv("CHUNK_OVERLAP", "5")
	t.Setenv("INDEX_BACKEND", "Qdrant")
	t.Setenv("QDRANT_TLS", "true")

	s, err := SettingsFromEnv()
	if err != nil {
		t.Fatalf("SettingsFromEnv: %v", err)
	}
	if s.Language != "german" || s.SummarySize != 50 || s.TagsNumber != 5 {
		t.Errorf("overrides not applied: %+v", s)
	}
	if s.ChunkSize != 20 || s.ChunkOverlap != 5 {
		t.Errorf("chunk overrides not applied: %+v", s)
	}
	if s.Index.Backend != "qdrant" || !s.Index.QdrantTLS {
		t.Errorf("index overrides not applied: %+v", s.Index)
	}
}

func TestSettingsFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr []string
	}{
		{"non-integer", map[string]string{"SUMMARY_SIZE": "fifty"}, []string{"SUMMARY_SIZE"}},
		{"overlap too large", map[string]string{"CHUNK_SIZE": "10", "CHUNK_OVERLAP": "10"}, []string{"CHUNK_OVERLAP"}},
		{"zero tags", map[string]string{"TAGS_NUMBER": "0"}, []string{"TAGS_NUMBER"}},
		{"unknown backend", map[string]string{"INDEX_BACKEND": "neo4j"}, []string{"INDEX_BACKEND"}},
		{"chromem l2", map[string]string{"INDEX_BACKEND": "chromem", "INDEX_DISTANCE": "l2"}, []string{"cosine distance only"}},
		{"zero memory bound", map[string]string{"INDEX_MEMORY_MAX_NAMES": "0"}, []string{"INDEX_MEMORY_MAX_NAMES"}},
		{"bad tls", map[string]string{"QDRANT_TLS": "maybe"}, []string{"QDRANT_TLS"}},
		{"all reported", map[string]string{"RAG_TOP_K": "0", "SUMMARY_SIZE": "-1"}, []string{"RAG_TOP_K", "SUMMARY_SIZE"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearSettingsEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := SettingsFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestMaxUploadBytes(t *testing.T) {
	t.Setenv("DOCQA_MAX_UPLOAD_MB", "")
	if got := MaxUploadBytes(); got != DefaultMaxUploadMB<<20 {
		t.Errorf("default = %d", got)
	}
	t.Setenv("DOCQA_MAX_UPLOAD_MB", "2")
	if got := MaxUploadBytes(); got != 2<<20 {
		t.Errorf("override = %d", got)
	}
}
