package site

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// BuildOutcome is the final result state of a build.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// StageCount aggregates outcomes for a stage.
type StageCount struct {
	Success  int `json:"success,omitempty"`
	Warning  int `json:"warning,omitempty"`
	Fatal    int `json:"fatal,omitempty"`
	Skipped  int `json:"skipped,omitempty"`
	Canceled int `json:"canceled,omitempty"`
}

// PageSummary describes one rendered page.
type PageSummary struct {
	Source      string `json:"source"`
	Output      string `json:"output,omitempty"`
	URL         string `json:"url,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// BuildReport captures what a build did.
type BuildReport struct {
	ID    string
	Start time.Time
	End   time.Time

	Errors   []error // fatal errors causing build abortion (at most one)
	Warnings []error // non-fatal issues

	StageDurations  map[StageName]time.Duration
	StageCounts     map[StageName]StageCount
	StageErrorKinds map[StageName]StageErrorKind

	PagesRendered    int
	PagesWritten     int
	PagesUnchanged   int
	PassthroughFiles int
	BrokenLinks      int
	Pages            []PageSummary

	Outcome BuildOutcome
}

func newBuildReport() *BuildReport {
	return &BuildReport{
		ID:              uuid.NewString(),
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageCounts:     make(map[StageName]StageCount),
		StageErrorKinds: make(map[StageName]StageErrorKind),
	}
}

func (r *BuildReport) finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

// Duration is the wall time of the build.
func (r *BuildReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

func (r *BuildReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// MetricsOutcome maps the outcome to its metrics label.
func (r *BuildReport) MetricsOutcome() metrics.BuildOutcomeLabel {
	return metrics.BuildOutcomeLabel(r.Outcome)
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	return fmt.Sprintf("id=%s duration=%s rendered=%d written=%d unchanged=%d passthrough=%d broken_links=%d warnings=%d errors=%d outcome=%s",
		r.ID, r.Duration().Truncate(time.Millisecond), r.PagesRendered, r.PagesWritten, r.PagesUnchanged,
		r.PassthroughFiles, r.BrokenLinks, len(r.Warnings), len(r.Errors), r.Outcome)
}

// BuildReportSerializable mirrors BuildReport with string errors for JSON output.
type BuildReportSerializable struct {
	ID               string                `json:"id"`
	Start            time.Time             `json:"start"`
	End              time.Time             `json:"end"`
	DurationMS       int64                 `json:"duration_ms"`
	Outcome          BuildOutcome          `json:"outcome"`
	Errors           []string              `json:"errors"`
	Warnings         []string              `json:"warnings"`
	StageDurationsMS map[string]int64      `json:"stage_durations_ms"`
	StageCounts      map[string]StageCount `json:"stage_counts"`
	PagesRendered    int                   `json:"pages_rendered"`
	PagesWritten     int                   `json:"pages_written"`
	PagesUnchanged   int                   `json:"pages_unchanged"`
	PassthroughFiles int                   `json:"passthrough_files"`
	BrokenLinks      int                   `json:"broken_links"`
	Pages            []PageSummary         `json:"pages"`
}

// Serializable returns a JSON-friendly copy of the report.
func (r *BuildReport) Serializable() BuildReportSerializable {
	s := BuildReportSerializable{
		ID:               r.ID,
		Start:            r.Start,
		End:              r.End,
		DurationMS:       r.Duration().Milliseconds(),
		Outcome:          r.Outcome,
		Errors:           make([]string, len(r.Errors)),
		Warnings:         make([]string, len(r.Warnings)),
		StageDurationsMS: make(map[string]int64, len(r.StageDurations)),
		StageCounts:      make(map[string]StageCount, len(r.StageCounts)),
		PagesRendered:    r.PagesRendered,
		PagesWritten:     r.PagesWritten,
		PagesUnchanged:   r.PagesUnchanged,
		PassthroughFiles: r.PassthroughFiles,
		BrokenLinks:      r.BrokenLinks,
		Pages:            append([]PageSummary(nil), r.Pages...),
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for k, v := range r.StageDurations {
		s.StageDurationsMS[string(k)] = v.Milliseconds()
	}
	for k, v := range r.StageCounts {
		s.StageCounts[string(k)] = v
	}
	return s
}

// MarshalJSON encodes the serializable form.
func (r *BuildReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Serializable())
}
