package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
)

// Summarize steps, reported in apperr.Error.Step on partial failure.
const (
	StepSummary = "summary"
	StepTags    = "tags"
)

// ClassifyResult is the response of Classify.
type ClassifyResult struct {
	Term  string `json:"term"`
	Model string `json:"model"`
}

// PromptResult is the response of Prompt.
type PromptResult struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
}

// SummaryResult is the response of Summarize. On a partial failure the
// surviving field is set and the other is empty.
type SummaryResult struct {
	Summary string `json:"summary"`
	Tags    string `json:"tags"`
	Model   string `json:"model"`
}

// Classify asks the model to pick exactly one of terms for the document.
func (p *Pipeline) Classify(ctx context.Context, u extract.Upload, terms []string, sink generator.Sink) (ClassifyResult, error) {
	r := p.newRun(ctx, ModeClassify)
	terms = cleanTerms(terms)
	if len(terms) == 0 {
		return ClassifyResult{}, r.fail(ctx, apperr.New(apperr.KindInvalidRequest, "pipeline: classify", "termList must name at least one category"))
	}

	raw, err := p.single(ctx, r, u, classifyInstruction(terms, p.settings.Language), sink)
	if err != nil {
		return ClassifyResult{}, r.fail(ctx, err)
	}
	term, ok := NormalizeTerm(raw, terms)
	if !ok {
		r.log.Warn("pipeline: model answered outside the candidate list",
			slog.String("answer", term),
			slog.Any("candidates", terms),
		)
	}
	r.complete(ctx, OutcomeSuccess)
	return ClassifyResult{Term: term, Model: p.ModelName()}, nil
}

// Prompt answers a free-form question about the document.
func (p *Pipeline) Prompt(ctx context.Context, u extract.Upload, question string, sink generator.Sink) (PromptResult, error) {
	r := p.newRun(ctx, ModePrompt)
	question = strings.TrimSpace(question)
	if question == "" {
		return PromptResult{}, r.fail(ctx, apperr.New(apperr.KindInvalidRequest, "pipeline: prompt", "prompt must not be empty"))
	}

	answer, err := p.single(ctx, r, u, promptInstruction(question, p.settings.Language), sink)
	if err != nil {
		return PromptResult{}, r.fail(ctx, err)
	}
	r.complete(ctx, OutcomeSuccess)
	return PromptResult{Answer: strings.TrimSpace(answer), Model: p.ModelName()}, nil
}

// Summarize produces a summary and a tag list from the same retrieved
// context. Both generations always run. If exactly one fails, the result
// carries the other value and the returned error names the failed step.
func (p *Pipeline) Summarize(ctx context.Context, u extract.Upload, sink generator.Sink) (SummaryResult, error) {
	r := p.newRun(ctx, ModeSummarize)
	summaryQ := summaryInstruction(p.settings.SummarySize, p.settings.Language)
	tagsQ := tagsInstruction(p.settings.TagsNumber, p.settings.Language)

	name, err := p.prepare(ctx, r, u)
	if err != nil {
		return SummaryResult{}, r.fail(ctx, err)
	}
	matches, err := p.retrieve(ctx, r, name, summaryQ)
	if err != nil {
		return SummaryResult{}, r.fail(ctx, err)
	}

	r.enter(ctx, StageGenerating)
	res := SummaryResult{Model: p.ModelName()}
	var (
		failed []string
		errs   []error
	)

	summary, sErr := p.generator.Generate(ctx, summaryQ, matches, withStep(sink, StepSummary))
	if sErr != nil {
		failed, errs = append(failed, StepSummary), append(errs, fmt.Errorf("%s: %w", StepSummary, sErr))
	} else {
		res.Summary = strings.TrimSpace(summary)
	}

	tags, tErr := p.generator.Generate(ctx, tagsQ, matches, withStep(sink, StepTags))
	if tErr != nil {
		failed, errs = append(failed, StepTags), append(errs, fmt.Errorf("%s: %w", StepTags, tErr))
	} else {
		normalized, got := NormalizeTags(tags, p.settings.TagsNumber)
		if got != p.settings.TagsNumber {
			r.log.Warn("pipeline: model returned an unexpected number of tags",
				slog.Int("want", p.settings.TagsNumber),
				slog.Int("got", got),
				slog.String("raw", tags),
			)
		}
		res.Tags = normalized
	}

	switch len(failed) {
	case 0:
		r.complete(ctx, OutcomeSuccess)
		return res, nil
	case 1:
		err := &apperr.Error{Kind: apperr.KindOf(errs[0]), Op: "pipeline: summarize", Step: failed[0], Err: errs[0]}
		return res, r.failWith(ctx, err, OutcomePartial)
	default:
		err := &apperr.Error{Kind: apperr.KindOf(errs[0]), Op: "pipeline: summarize", Step: strings.Join(failed, ","), Err: errors.Join(errs...)}
		return SummaryResult{}, r.fail(ctx, err)
	}
}

// DescribeResult is the response of Describe.
type DescribeResult struct {
	Description string `json:"description"`
	Model       string `json:"model"`
}

// Describe asks the model for a short description of an uploaded image. The
// image is sniffed during the Extracting stage and then sent to the model
// directly; nothing is chunked, embedded or indexed.
func (p *Pipeline) Describe(ctx context.Context, u extract.Upload, sink generator.Sink) (DescribeResult, error) {
	r := p.newRun(ctx, ModeDescribe)

	r.enter(ctx, StageExtracting)
	mime, err := extract.DetectImage(u)
	if err != nil {
		return DescribeResult{}, r.fail(ctx, err)
	}
	r.log.Debug("pipeline: image accepted", slog.String("mime_type", mime), slog.Int("bytes", len(u.Data)))

	r.enter(ctx, StageGenerating)
	if sink == nil {
		sink = generator.Discard
	}
	img := generator.Image{MIMEType: mime, Data: u.Data}
	text, err := p.generator.Describe(ctx, describeInstruction(p.settings.Language), img, sink)
	if err != nil {
		return DescribeResult{}, r.fail(ctx, err)
	}
	r.complete(ctx, OutcomeSuccess)
	return DescribeResult{Description: strings.TrimSpace(text), Model: p.ModelName()}, nil
}

// withStep labels every token passing through sink with step.
func withStep(sink generator.Sink, step string) generator.Sink {
	if sink == nil {
		return generator.Discard
	}
	return generator.SinkFunc(func(ctx context.Context, tok generator.Token) error {
		tok.Step = step
		return sink.Emit(ctx, tok)
	})
}

// ParseTermList splits a caller-supplied, comma-delimited category list.
// Surrounding quotes on the whole list and on each entry are removed.
func ParseTermList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return cleanTerms(strings.Split(s, ","))
}

// cleanTerms trims entries and drops empties and case-insensitive duplicates.
func cleanTerms(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.Trim(strings.TrimSpace(t), `"'`)
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
