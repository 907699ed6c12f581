package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/rag"
)

// fakeEmbedder maps text to a 3-d vector of letter counts. Setting err makes
// every call fail.
type fakeEmbedder struct {
	mu  sync.Mutex
	err error
}

func (f *fakeEmbedder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		s = strings.ToLower(s)
		out[i] = []float32{
			1 + float32(strings.Count(s, "a")),
			1 + float32(strings.Count(s, "e")),
			1 + float32(strings.Count(s, "o")),
		}
	}
	return out, nil
}

// spyIndex records the chunk count of every successful build.
type spyIndex struct {
	rag.Index
	mu     sync.Mutex
	builds []int
}

func (s *spyIndex) Build(ctx context.Context, name string, chunks []rag.Chunk) error {
	if err := s.Index.Build(ctx, name, chunks); err != nil {
		return err
	}
	s.mu.Lock()
	s.builds = append(s.builds, len(chunks))
	s.mu.Unlock()
	return nil
}

// fakeGenerator answers by instruction prefix and streams the answer as a
// single token.
type fakeGenerator struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []string

	description string
	images      []generator.Image
}

func (f *fakeGenerator) ModelName() string { return "llama3" }

func (f *fakeGenerator) Generate(ctx context.Context, instruction string, matches []rag.Match, sink generator.Sink) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, instruction)
	f.mu.Unlock()
	if len(matches) == 0 {
		return "", errors.New("no context")
	}
	for prefix, err := range f.errs {
		if strings.HasPrefix(instruction, prefix) {
			return "", err
		}
	}
	for prefix, ans := range f.answers {
		if strings.HasPrefix(instruction, prefix) {
			if err := sink.Emit(ctx, generator.Token{Text: ans}); err != nil {
				return "", err
			}
			return ans, sink.Emit(ctx, generator.Token{Final: true})
		}
	}
	return "", errors.New("unscripted instruction")
}

func (f *fakeGenerator) Describe(ctx context.Context, instruction string, img generator.Image, sink generator.Sink) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, instruction)
	f.images = append(f.images, img)
	f.mu.Unlock()
	if err := f.errs["Describe"]; err != nil {
		return "", err
	}
	if err := sink.Emit(ctx, generator.Token{Text: f.description}); err != nil {
		return "", err
	}
	return f.description, sink.Emit(ctx, generator.Token{Final: true})
}

// recordingObserver keeps stages and outcomes.
type recordingObserver struct {
	mu       sync.Mutex
	stages   []Stage
	outcomes []string
}

func (o *recordingObserver) ObserveStage(_ Mode, s Stage, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, s)
}

func (o *recordingObserver) ObserveRequest(_ Mode, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type fixture struct {
	p   *Pipeline
	emb *fakeEmbedder
	idx *spyIndex
	gen *fakeGenerator
	obs *recordingObserver
}

func newFixture(t *testing.T, mutate func(*config.Settings)) *fixture {
	t.Helper()
	s := config.DefaultSettings()
	s.ChunkSize, s.ChunkOverlap = 20, 5
	if mutate != nil {
		mutate(&s)
	}
	f := &fixture{
		emb: &fakeEmbedder{},
		idx: &spyIndex{Index: rag.NewMemoryIndex(rag.DistanceCosine, 0)},
		gen: &fakeGenerator{answers: map[string]string{
			"Pick one":      " Greek.\n",
			"What is":       "  An alphabet.  ",
			"Write a short": "A document about letters.",
			"Provide":       "1. alphabet, 2. greek, 3. letters, 4. extra.",
		}, errs: map[string]error{}, description: "  A red square on white.\n"},
		obs: &recordingObserver{},
	}
	p, err := New(Config{Settings: s, Embedder: f.emb, Index: f.idx, Generator: f.gen, Observer: f.obs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.p = p
	return f
}

// threePages is 60 characters of text: "Alpha. Beta. Gamma." on three lines.
var threePages = extract.Upload{
	Filename: "greek.txt",
	Data:     []byte(strings.Repeat("Alpha. Beta. Gamma.\n", 3)),
}

func TestClassify_EndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	res, err := f.p.Classify(context.Background(), threePages, ParseTermList(`"greek,latin"`), generator.Discard)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Term != "greek" {
		t.Errorf("Term = %q, want %q", res.Term, "greek")
	}
	if res.Model != "llama3" {
		t.Errorf("Model = %q", res.Model)
	}
	if len(f.idx.builds) != 1 || f.idx.builds[0] != 4 {
		t.Errorf("builds = %v, want one build of 4 chunks", f.idx.builds)
	}
	instr := f.gen.calls[0]
	if !strings.Contains(instr, "greek, latin") || !strings.Contains(instr, "english") {
		t.Errorf("instruction missing terms or language: %q", instr)
	}

	want := []Stage{StageReceived, StageExtracting, StageChunking, StageIndexing, StageRetrieving, StageGenerating}
	if len(f.obs.stages) != len(want) {
		t.Fatalf("stages = %v, want %v", f.obs.stages, want)
	}
	for i := range want {
		if f.obs.stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, f.obs.stages[i], want[i])
		}
	}
	if len(f.obs.outcomes) != 1 || f.obs.outcomes[0] != OutcomeSuccess {
		t.Errorf("outcomes = %v", f.obs.outcomes)
	}
}

func TestClassify_InvalidTermList(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	_, err := f.p.Classify(context.Background(), threePages, ParseTermList(` , "" `), nil)
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindInvalidRequest {
		t.Fatalf("error = %v, want InvalidRequestError", err)
	}
	if ae.Stage != string(StageReceived) {
		t.Errorf("Stage = %q, want received", ae.Stage)
	}
	if len(f.gen.calls) != 0 {
		t.Error("generator called for an invalid request")
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(s *config.Settings) { s.Language = "italian" })

	res, err := f.p.Prompt(context.Background(), threePages, "What is this document.", nil)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if res.Answer != "An alphabet." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if instr := f.gen.calls[0]; !strings.HasPrefix(instr, "What is this document. Write the answer only in italian") {
		t.Errorf("instruction = %q", instr)
	}

	_, err = f.p.Prompt(context.Background(), threePages, "   ", nil)
	if !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("empty prompt error = %v, want InvalidRequestError", err)
	}
}

func TestSummarize_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(s *config.Settings) { s.SummarySize = 50 })

	var steps []string
	sink := generator.SinkFunc(func(_ context.Context, tok generator.Token) error {
		if !tok.Final {
			steps = append(steps, tok.Step)
		}
		return nil
	})
	res, err := f.p.Summarize(context.Background(), threePages, sink)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Summary != "A document about letters." {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.Tags != "alphabet, greek, letters" {
		t.Errorf("Tags = %q, want exactly 3 comma-separated words", res.Tags)
	}
	if strings.HasSuffix(res.Tags, ".") {
		t.Error("tags end with a dot")
	}
	if len(f.gen.calls) != 2 || !strings.Contains(f.gen.calls[0], "50 words") {
		t.Errorf("calls = %q", f.gen.calls)
	}
	if len(steps) != 2 || steps[0] != StepSummary || steps[1] != StepTags {
		t.Errorf("token steps = %v", steps)
	}
}

func TestSummarize_PartialFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		failPrefix  string
		wantStep    string
		wantSummary bool
		wantTags    bool
	}{
		{"tags fail", "Provide", StepTags, true, false},
		{"summary fails", "Write a short", StepSummary, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.gen.errs[tc.failPrefix] = apperr.New(apperr.KindGeneration, "generator: generate", "boom")

			res, err := f.p.Summarize(context.Background(), threePages, nil)
			ae, ok := apperr.As(err)
			if !ok || ae.Kind != apperr.KindGeneration {
				t.Fatalf("error = %v, want GenerationError", err)
			}
			if ae.Step != tc.wantStep || ae.Stage != string(StageGenerating) {
				t.Errorf("Step/Stage = %q/%q, want %q/generating", ae.Step, ae.Stage, tc.wantStep)
			}
			if (res.Summary != "") != tc.wantSummary || (res.Tags != "") != tc.wantTags {
				t.Errorf("result = %+v, want summary=%v tags=%v", res, tc.wantSummary, tc.wantTags)
			}
			if len(f.gen.calls) != 2 {
				t.Errorf("both generations must run, got %d calls", len(f.gen.calls))
			}
			if f.obs.outcomes[0] != OutcomePartial {
				t.Errorf("outcome = %q, want partial", f.obs.outcomes[0])
			}
		})
	}
}

func TestSummarize_BothFail(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.gen.errs["Provide"] = apperr.New(apperr.KindGeneration, "g", "tags down")
	f.gen.errs["Write a short"] = apperr.New(apperr.KindGeneration, "g", "summary down")

	res, err := f.p.Summarize(context.Background(), threePages, nil)
	ae, ok := apperr.As(err)
	if !ok || ae.Step != "summary,tags" {
		t.Fatalf("error = %v, want both steps named", err)
	}
	if res != (SummaryResult{}) {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestEmbeddingFailureKeepsPreviousIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	if _, err := f.p.Classify(context.Background(), threePages, []string{"greek", "latin"}, nil); err != nil {
		t.Fatalf("first Classify: %v", err)
	}

	f.emb.setErr(apperr.New(apperr.KindEmbeddingService, "embedder", "HTTP 503"))
	_, err := f.p.Classify(context.Background(), threePages, []string{"greek", "latin"}, nil)
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindEmbeddingService {
		t.Fatalf("error = %v, want EmbeddingServiceError", err)
	}
	if ae.Stage != string(StageIndexing) {
		t.Errorf("Stage = %q, want indexing", ae.Stage)
	}

	got, err := f.idx.Search(context.Background(), IndexName(threePages.Data), []float32{1, 1, 1}, 10)
	if err != nil {
		t.Fatalf("Search after failed rebuild: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("previous index has %d entries, want 4", len(got))
	}
}

func TestExtractionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	_, err := f.p.Prompt(context.Background(), extract.Upload{Filename: "blank.txt", Data: []byte(" \n ")}, "What is it", nil)
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindExtraction || ae.Stage != string(StageExtracting) {
		t.Fatalf("error = %v, want ExtractionError at extracting", err)
	}
	if len(f.gen.calls) != 0 || len(f.idx.builds) != 0 {
		t.Error("later stages ran after extraction failed")
	}
}

func TestIndexName(t *testing.T) {
	t.Parallel()
	a, b := IndexName([]byte("one")), IndexName([]byte("two"))
	if a == b {
		t.Error("different uploads share an index name")
	}
	if a != IndexName([]byte("one")) {
		t.Error("IndexName is not deterministic")
	}
	if !strings.HasPrefix(a, "doc-") || len(a) != len("doc-")+32 {
		t.Errorf("IndexName = %q", a)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	s := config.DefaultSettings()
	if _, err := New(Config{Settings: s}); err == nil {
		t.Error("missing dependencies accepted")
	}
	s.ChunkOverlap = s.ChunkSize
	if _, err := New(Config{Settings: s, Embedder: &fakeEmbedder{}, Index: rag.NewMemoryIndex(rag.DistanceCosine, 0), Generator: &fakeGenerator{}}); err == nil {
		t.Error("invalid chunking settings accepted")
	}
}

// tinyPNG is the 8-byte PNG signature followed by an IHDR header.
var tinyPNG = extract.Upload{
	Filename: "square.png",
	Data:     []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"),
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	res, err := f.p.Describe(context.Background(), tinyPNG, nil)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if res.Description != "A red square on white." || res.Model != "llama3" {
		t.Errorf("result = %+v", res)
	}
	if len(f.gen.images) != 1 || f.gen.images[0].MIMEType != "image/png" {
		t.Fatalf("images sent = %+v, want one image/png", f.gen.images)
	}
	if !strings.Contains(f.gen.calls[0], "english") {
		t.Errorf("instruction missing language: %q", f.gen.calls[0])
	}
	if len(f.idx.builds) != 0 {
		t.Errorf("builds = %v, want none", f.idx.builds)
	}
	want := []Stage{StageReceived, StageExtracting, StageGenerating}
	if len(f.obs.stages) != len(want) {
		t.Fatalf("stages = %v, want %v", f.obs.stages, want)
	}
	for i := range want {
		if f.obs.stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, f.obs.stages[i], want[i])
		}
	}
}

func TestDescribe_Failures(t *testing.T) {
	t.Parallel()
	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		_, err := f.p.Describe(context.Background(), threePages, nil)
		if !errors.Is(err, apperr.ErrExtraction) {
			t.Fatalf("error = %v, want ExtractionError", err)
		}
		if len(f.gen.images) != 0 {
			t.Error("model called for a non-image upload")
		}
	})
	t.Run("model failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.gen.errs["Describe"] = apperr.New(apperr.KindGeneration, "generator: describe", "boom")
		_, err := f.p.Describe(context.Background(), tinyPNG, nil)
		if !errors.Is(err, apperr.ErrGeneration) {
			t.Fatalf("error = %v, want GenerationError", err)
		}
		if last := f.obs.outcomes[len(f.obs.outcomes)-1]; last == OutcomeSuccess {
			t.Errorf("outcome = %q, want a failure", last)
		}
	})
}
