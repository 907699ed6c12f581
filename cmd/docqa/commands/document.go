package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/pipeline"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// documentFlags are shared by the one-shot document commands.
type documentFlags struct {
	file  string
	quiet bool
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Path to the document (pdf, docx, xlsx, md, txt)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not stream tokens to stderr")
	_ = cmd.MarkFlagRequired("file")
}

// readUpload loads path into an Upload, taking the content type from the
// file extension.
func readUpload(path string, limit int64) (extract.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return extract.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	if limit > 0 && info.Size() > limit {
		return extract.Upload{}, fmt.Errorf("read %s: file is %d bytes, limit is %d (DOCQA_MAX_UPLOAD_MB)", path, info.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return extract.Upload{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

// stepSink writes streamed tokens to w and prints a header whenever the
// step label changes, so summarize output reads as two sections.
type stepSink struct {
	mu   sync.Mutex
	w    io.Writer
	step string
}

func (s *stepSink) Emit(ctx context.Context, tok generator.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.Step != "" && tok.Step != s.step {
		if s.step != "" {
			fmt.Fprintln(s.w)
		}
		s.step = tok.Step
		fmt.Fprintf(s.w, "[%s] ", tok.Step)
	}
	return generator.WriterSink{W: s.w}.Emit(ctx, tok)
}

// printResult writes v to w as indented JSON.
func printResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// documentCall runs one pipeline mode against u.
type documentCall func(ctx context.Context, p *pipeline.Pipeline, u extract.Upload, sink generator.Sink) (any, error)

// runDocument is the shared body of classify, prompt and summarize: it
// builds the pipeline, runs call once, and prints the JSON result. A result
// that is returned alongside an error (summarize partial failure) is still
// printed before the error is reported.
func runDocument(cmd *cobra.Command, flags *documentFlags, call documentCall) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	flush, _ := tracing.Setup()
	defer flush()

	a, err := buildApp(ctx, log, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	u, err := readUpload(flags.file, config.MaxUploadBytes())
	if err != nil {
		return err
	}

	var sink generator.Sink = generator.Discard
	if !flags.quiet {
		sink = &stepSink{w: cmd.ErrOrStderr()}
	}

	result, runErr := call(ctx, a.pipeline, u, sink)
	if result != nil {
		if err := printResult(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return runErr
}
