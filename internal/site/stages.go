package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/buildconfig"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind classifies how a stage error affects the build.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Recorded; the build continues.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a stage failure carrying its classification.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// errStageSkipped is returned by a stage that had nothing to do by configuration.
var errStageSkipped = errors.New("stage skipped")

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildState carries the inputs and intermediate results of one build.
type BuildState struct {
	Engine  *Engine
	Options buildconfig.BuildOptions
	Report  *BuildReport
	Logger  *slog.Logger

	// Registrations snapshotted from the engine when the build starts.
	Plugins     []buildconfig.PluginRef
	Passthrough []string

	Renderer *markdown.Renderer
	Pages    []*Page
	// PassthroughOutputs maps each slash-separated output path written by the
	// passthrough stage to the source path it was registered under.
	PassthroughOutputs map[string]string
	// Written lists output paths the write stage produced or left unchanged.
	Written []string
}

// warn records a non-fatal issue without ending the stage.
func (bs *BuildState) warn(stage StageName, err error) {
	bs.Report.Warnings = append(bs.Report.Warnings, newWarnStageError(stage, err))
	bs.Logger.Warn("Build warning", logfields.Stage(string(stage)), logfields.Error(err))
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, bs *BuildState, stages []StageDef) error {
	recorder := bs.Engine.recorder
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := newCanceledStageError(st.Name, err)
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			bs.Report.recordStageResult(st.Name, StageResultCanceled, recorder)
			return se
		}

		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		bs.Report.StageDurations[st.Name] = dur
		recorder.ObserveStageDuration(string(st.Name), dur)
		bs.Logger.Debug("Stage complete", logfields.Stage(string(st.Name)),
			logfields.DurationMS(float64(dur.Microseconds())/1000))

		if err == nil {
			bs.Report.recordStageResult(st.Name, StageResultSuccess, recorder)
			continue
		}
		if errors.Is(err, errStageSkipped) {
			bs.Report.recordStageResult(st.Name, StageResultSkipped, recorder)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				se = newCanceledStageError(st.Name, err)
			default:
				se = newFatalStageError(st.Name, err)
			}
		}
		bs.Report.StageErrorKinds[st.Name] = se.Kind
		switch se.Kind {
		case StageErrorWarning:
			bs.Report.Warnings = append(bs.Report.Warnings, se)
			bs.Report.recordStageResult(st.Name, StageResultWarning, recorder)
			continue
		case StageErrorCanceled:
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.recordStageResult(st.Name, StageResultCanceled, recorder)
			return se
		default:
			bs.Report.Errors = append(bs.Report.Errors, se)
			bs.Report.recordStageResult(st.Name, StageResultFatal, recorder)
			return se
		}
	}
	return nil
}

// StageResult enumerates per-stage classification outcomes.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultSkipped  StageResult = "skipped"
	StageResultCanceled StageResult = "canceled"
)

func (r *BuildReport) recordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	switch res {
	case StageResultSuccess:
		sc.Success++
	case StageResultWarning:
		sc.Warning++
	case StageResultFatal:
		sc.Fatal++
	case StageResultSkipped:
		sc.Skipped++
	case StageResultCanceled:
		sc.Canceled++
	}
	r.StageCounts[stage] = sc
	recorder.IncStageResult(string(stage), metrics.ResultLabel(res))
}
