package metrics

import (
	"testing"
	"time"
)

// Compile-time checks that both recorders satisfy the interface.
var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("render", time.Millisecond)
	r.ObserveBuildDuration(time.Millisecond)
	r.IncStageResult("render", ResultSuccess)
	r.IncBuildOutcome(OutcomeSuccess)
	r.AddPagesWritten(1)
	r.AddPassthroughFiles(1)
	r.IncRebuildTrigger("manual")
}
