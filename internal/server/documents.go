package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/pipeline"
)

// Multipart fields carrying the upload.
const (
	documentField = "file"
	imageField    = "image"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// handleClassify handles POST /classify?termList=a,b.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	terms := pipeline.ParseTermList(r.URL.Query().Get("termList"))
	s.serveDocument(w, r, pipeline.ModeClassify, func(ctx context.Context, u extract.Upload, sink generator.Sink) (any, error) {
		res, err := s.runner.Classify(ctx, u, terms, sink)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// handlePrompt handles POST /prompt?prompt=....
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("prompt")
	s.serveDocument(w, r, pipeline.ModePrompt, func(ctx context.Context, u extract.Upload, sink generator.Sink) (any, error) {
		res, err := s.runner.Prompt(ctx, u, question, sink)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// handleSummary handles POST /summary. A summarize request that loses one
// of its two generations still returns the surviving value in
// details.partial.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, pipeline.ModeSummarize, func(ctx context.Context, u extract.Upload, sink generator.Sink) (any, error) {
		res, err := s.runner.Summarize(ctx, u, sink)
		if err != nil && res.Summary == "" && res.Tags == "" {
			return nil, err
		}
		return res, err
	})
}

// handleDescribe handles POST /describe with the picture in the "image"
// field.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, pipeline.ModeDescribe, func(ctx context.Context, u extract.Upload, sink generator.Sink) (any, error) {
		res, err := s.runner.Describe(ctx, u, sink)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// uploadFieldFor returns the multipart field mode reads its upload from.
func uploadFieldFor(mode pipeline.Mode) string {
	if mode == pipeline.ModeDescribe {
		return imageField
	}
	return documentField
}

// serveDocument reads the upload, runs mode and writes the result either
// as JSON or as an event stream.
func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, mode pipeline.Mode, run runFunc) {
	start := time.Now()
	ctx := logging.With(r.Context(), slog.String("mode", string(mode)))
	r = r.WithContext(ctx)
	rec := audit.Request{Mode: string(mode), Remote: clientIP(r)}
	defer func() {
		rec.Duration = time.Since(start)
		audit.LogRequest(ctx, logging.FromContext(ctx), rec)
	}()

	u, err := s.readUpload(w, r, uploadFieldFor(mode))
	if err != nil {
		rec.Outcome, rec.Kind = outcomeOf(err, false), string(kindOf(err))
		writeError(w, r, err, nil)
		return
	}
	rec.Filename, rec.Bytes = u.Filename, len(u.Data)

	if wantsStream(r) {
		s.metrics.activeStreams.Inc()
		defer s.metrics.activeStreams.Dec()

		sink := newSSESink(w)
		res, err := run(ctx, u, sink)
		rec.Outcome, rec.Kind = outcomeOf(err, res != nil), string(kindOf(err))
		if err != nil {
			if werr := sink.event(eventError, struct {
				Error any `json:"error"`
			}{toHTTPError(err, res)}); werr != nil {
				logging.FromContext(ctx).Debug("server: client gone before error event", slog.Any("error", werr))
			}
			return
		}
		if werr := sink.event(eventResult, res); werr != nil {
			logging.FromContext(ctx).Debug("server: client gone before result event", slog.Any("error", werr))
		}
		return
	}

	res, err := run(ctx, u, nil)
	rec.Outcome, rec.Kind = outcomeOf(err, res != nil), string(kindOf(err))
	if err != nil {
		writeError(w, r, err, res)
		return
	}
	errWriter.Write(w, r, res)
}

// readUpload extracts the file in field from the multipart body, enforcing
// the upload size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (extract.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return extract.Upload{}, err
		}
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidRequest, "server: parse multipart body", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile(field)
	if err != nil {
		return extract.Upload{}, apperr.New(apperr.KindInvalidRequest, "server: read upload", "multipart field %q is required", field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidRequest, "server: read upload", err)
	}
	return extract.Upload{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// outcomeOf labels a finished request for the audit record.
func outcomeOf(err error, hasResult bool) string {
	switch {
	case err == nil:
		return pipeline.OutcomeSuccess
	case hasResult:
		return pipeline.OutcomePartial
	default:
		return "failed"
	}
}

// kindOf returns the error kind, or "" for a nil error.
func kindOf(err error) apperr.Kind {
	if err == nil {
		return ""
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.KindInvalidRequest
	}
	return apperr.KindOf(err)
}
