// Package generator assembles a "stuff" prompt from retrieved chunks and
// streams the model's answer. Every retrieved chunk is placed verbatim in the
// prompt in retrieval order, followed by the instruction. A prompt that would
// exceed the context budget is rejected; context is never trimmed.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
)

// systemPrompt is the stuff-chain preamble sent with every generation.
const systemPrompt = `Use the following pieces of context to answer the question at the end. ` +
	`If you don't know the answer, just say that you don't know, don't try to make up an answer.`

// userTemplate places the joined context before the instruction.
const userTemplate = "{context}\n\nQuestion: {question}\nHelpful Answer:"

// contextSeparator joins chunk texts inside the prompt.
const contextSeparator = "\n\n"

// Config holds the dependencies required to construct a Generator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// ModelName is reported back to callers alongside results.
	ModelName string

	// MaxContextTokens is the estimated input budget. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Generator renders prompts and streams completions. It is safe for
// concurrent use if the underlying chat model is.
type Generator struct {
	// chatModel produces the token stream.
	chatModel model.BaseChatModel

	// template renders the system and user messages.
	template prompt.ChatTemplate

	// modelName is the configured model identifier.
	modelName string

	// maxContextTokens is the prompt budget.
	maxContextTokens int
}

// New constructs a Generator from cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("generator: ChatModel must not be nil")
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Generator{
		chatModel: cfg.ChatModel,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userTemplate),
		),
		modelName:        cfg.ModelName,
		maxContextTokens: maxCtx,
	}, nil
}

// ModelName returns the configured model identifier.
func (g *Generator) ModelName() string { return g.modelName }

// Messages renders the prompt for instruction over matches without calling
// the model.
func (g *Generator) Messages(ctx context.Context, instruction string, matches []rag.Match) ([]*schema.Message, error) {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Chunk.Text)
	}
	msgs, err := g.template.Format(ctx, map[string]any{
		"context":  strings.Join(texts, contextSeparator),
		"question": instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: render prompt: %w", err)
	}
	return msgs, nil
}

// Generate submits the stuff prompt and streams the answer into sink. It
// returns the accumulated answer only when the stream ends cleanly; any
// provider, sink or cancellation error yields a GenerationError and the
// partial text is discarded.
func (g *Generator) Generate(ctx context.Context, instruction string, matches []rag.Match, sink Sink) (string, error) {
	const op = "generator: generate"
	if strings.TrimSpace(instruction) == "" {
		return "", apperr.New(apperr.KindInvalidRequest, op, "instruction must not be empty")
	}
	if sink == nil {
		sink = Discard
	}
	log := logging.FromContext(ctx)

	msgs, err := g.Messages(ctx, instruction, matches)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, op, err)
	}
	tokens, ok := budget.Fits(msgs, g.maxContextTokens)
	if !ok {
		return "", apperr.New(apperr.KindContextTooLarge, op,
			"prompt of ~%d tokens exceeds budget of %d (%d context chunks)", tokens, g.maxContextTokens, len(matches))
	}
	log.Debug("generator: streaming",
		slog.Int("prompt_tokens_est", tokens),
		slog.Int("chunks", len(matches)),
		slog.String("model", g.modelName),
	)

	return g.stream(ctx, op, msgs, sink)
}

// stream runs msgs through the chat model, forwarding each non-empty chunk to
// sink and closing with a Final token.
func (g *Generator) stream(ctx context.Context, op string, msgs []*schema.Message, sink Sink) (string, error) {
	log := logging.FromContext(ctx)
	sr, err := g.chatModel.Stream(ctx, msgs)
	if err != nil {
		return "", fail(op, fmt.Errorf("stream failed: %w", err))
	}
	defer sr.Close()

	var answer strings.Builder
	emitted := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", fail(op, fmt.Errorf("cancelled after %d tokens: %w", emitted, err))
		}
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fail(op, fmt.Errorf("stream receive error after %d tokens: %w", emitted, err))
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		answer.WriteString(msg.Content)
		if err := sink.Emit(ctx, Token{Text: msg.Content}); err != nil {
			return "", fail(op, fmt.Errorf("sink: %w", err))
		}
		emitted++
	}

	if err := sink.Emit(ctx, Token{Final: true}); err != nil {
		return "", fail(op, fmt.Errorf("sink: %w", err))
	}
	log.Debug("generator: stream complete", slog.Int("tokens", emitted), slog.Int("chars", answer.Len()))
	return answer.String(), nil
}

// fail wraps err as a GenerationError regardless of any kind it carries.
func fail(op string, err error) error {
	return &apperr.Error{Kind: apperr.KindGeneration, Op: op, Err: err}
}
