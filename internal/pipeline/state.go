package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/54b3r/docqa-go/internal/apperr"
)

// Mode identifies one of the request types.
type Mode string

const (
	ModeClassify  Mode = "classify"
	ModePrompt    Mode = "prompt"
	ModeSummarize Mode = "summarize"
	ModeDescribe  Mode = "describe"
)

// Stage is a step of the per-request state machine.
type Stage string

const (
	StageReceived   Stage = "received"
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageIndexing   Stage = "indexing"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Outcome values reported to Observer.ObserveRequest.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
)

// Observer receives pipeline telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveStage reports how long a stage ran before the next transition.
	ObserveStage(mode Mode, stage Stage, d time.Duration)
	// ObserveRequest reports a finished request. outcome is OutcomeSuccess,
	// OutcomePartial or the error kind.
	ObserveRequest(mode Mode, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(Mode, Stage, time.Duration) {}
func (nopObserver) ObserveRequest(Mode, string)             {}

// run tracks the state of a single request.
type run struct {
	mode     Mode
	stage    Stage
	entered  time.Time
	started  time.Time
	log      *slog.Logger
	observer Observer
}

func newRun(log *slog.Logger, mode Mode, obs Observer) *run {
	now := time.Now()
	r := &run{mode: mode, stage: StageReceived, entered: now, started: now, log: log, observer: obs}
	r.log.Debug("pipeline: request received")
	return r
}

// enter transitions to stage, closing the timing of the previous one.
func (r *run) enter(ctx context.Context, stage Stage) {
	now := time.Now()
	r.observer.ObserveStage(r.mode, r.stage, now.Sub(r.entered))
	r.log.Log(ctx, slog.LevelDebug, "pipeline: stage transition",
		slog.String("from", string(r.stage)),
		slog.String("to", string(stage)),
		slog.Duration("elapsed", now.Sub(r.entered)),
	)
	r.stage, r.entered = stage, now
}

// complete moves the run to Completed.
func (r *run) complete(ctx context.Context, outcome string) {
	r.enter(ctx, StageCompleted)
	r.observer.ObserveRequest(r.mode, outcome)
	r.log.Info("pipeline: request completed",
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(r.started)),
	)
}

// fail moves the run to Failed and returns err as an *apperr.Error stamped
// with the stage it was raised in.
func (r *run) fail(ctx context.Context, err error) error {
	return r.failWith(ctx, err, "")
}

// failWith is fail with an explicit outcome; an empty outcome reports the
// error kind.
func (r *run) failWith(ctx context.Context, err error, outcome string) error {
	ae, ok := apperr.As(err)
	if !ok {
		ae = &apperr.Error{Kind: apperr.KindInternal, Op: "pipeline", Err: err}
		err = ae
	}
	if ae.Stage == "" {
		ae.Stage = string(r.stage)
	}
	stage := r.stage
	r.enter(ctx, StageFailed)
	if outcome == "" {
		outcome = string(ae.Kind)
	}
	r.observer.ObserveRequest(r.mode, outcome)
	r.log.Warn("pipeline: request failed",
		slog.String("stage", string(stage)),
		slog.String("kind", string(ae.Kind)),
		slog.String("step", ae.Step),
		slog.Any("error", err),
		slog.Duration("duration", time.Since(r.started)),
	)
	return err
}
