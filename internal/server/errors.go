package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ory/herodot"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/logging"
)

// errWriter renders every JSON error body the server sends.
var errWriter = herodot.NewJSONWriter(slogReporter{})

// slogReporter routes herodot's error reports to the request logger.
type slogReporter struct{}

func (slogReporter) ReportError(r *http.Request, code int, err error, _ ...interface{}) {
	log := logging.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", code), slog.Any("error", err))
		return
	}
	log.Debug("request rejected", slog.Int("status", code), slog.Any("error", err))
}

// httpError builds a herodot error of the given status and kind.
func httpError(status int, kind apperr.Kind, msg string) *herodot.DefaultError {
	return &herodot.DefaultError{
		CodeField:    status,
		StatusField:  http.StatusText(status),
		ErrorField:   msg,
		DetailsField: map[string]interface{}{"kind": string(kind)},
	}
}

// toHTTPError converts a pipeline error into its wire form. partial, when
// non-nil, is attached as details.partial.
func toHTTPError(err error, partial any) *herodot.DefaultError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return httpError(http.StatusRequestEntityTooLarge, apperr.KindInvalidRequest, err.Error())
	}

	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := err.Error()
	if kind == apperr.KindInternal {
		msg = "internal server error"
	}
	de := httpError(status, kind, msg)
	if ae, ok := apperr.As(err); ok {
		if ae.Stage != "" {
			de.DetailsField["stage"] = ae.Stage
		}
		if ae.Step != "" {
			de.DetailsField["step"] = ae.Step
		}
	}
	if partial != nil {
		de.DetailsField["partial"] = partial
	}
	return de
}

// writeError sends err as a herodot JSON error.
func writeError(w http.ResponseWriter, r *http.Request, err error, partial any) {
	errWriter.WriteError(w, r, toHTTPError(err, partial))
}
