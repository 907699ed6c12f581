package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRAG is the startup pre-flight for the embedding path. It fails
// when the resolved configuration cannot work and warns when it probably
// will not: an inherited backend the operator never chose, or an
// EMBEDDING_MODEL that names a chat model.
func ValidateForRAG(log *slog.Logger) (Config, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}

	if os.Getenv("EMBEDDING_PROVIDER") == "" && cfg.Backend != "ollama" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", cfg.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("embedder: EMBEDDING_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Dimensions < 0 {
		return Config{}, fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must not be negative, got %d", cfg.Dimensions)
	}
	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	return cfg, nil
}
