package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kikiluvv/killreel/internal/clips"
	"github.com/kikiluvv/killreel/internal/detect"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
)

// Outcome is how a run ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeNoEvents means nothing matched; no clips were produced.
	OutcomeNoEvents Outcome = "no_events"
	// OutcomeFailed is only recorded in the manifest of a run that returned
	// an error after output began.
	OutcomeFailed Outcome = "failed"
)

// Run modes
const (
	ModeDetect = "detect"
	ModeManual = "manual"
)

// manualKeyword labels events of a manual cut
const manualKeyword = "manual"

// Stage names used in failures, metrics and logs
const (
	StageProbe    = "probe"
	StageSplit    = "split"
	StageScan     = "scan"
	StageExport   = "export"
	StageMerge    = "merge"
	StageVertical = "vertical"
	StageConvert  = "convert"
	StageCleanup  = "cleanup"
)

// Failure is one artifact a stage could not produce
type Failure struct {
	Stage string
	Item  string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Item, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// MarshalJSON writes the error as text
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Stage string `json:"stage"`
		Item  string `json:"item"`
		Error string `json:"error"`
	}{f.Stage, f.Item, msg})
}

// Detection is the result of scanning one recording
type Detection struct {
	Source   *ffmpeg.VideoInfo `json:"source"`
	Duration time.Duration     `json:"duration"`
	Parts    []ffmpeg.Part     `json:"-"`
	Samples  int               `json:"samples"`
	Events   []detect.Event    `json:"events"`
}

// Report summarizes one run and is written as manifest.json
type Report struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	Input     string    `json:"input"`
	OutputDir string    `json:"output_dir,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	StartedAt time.Time `json:"started_at"`

	Source         *ffmpeg.VideoInfo `json:"source,omitempty"`
	SourceDuration time.Duration     `json:"source_duration"`
	Parts          int               `json:"parts"`
	Samples        int               `json:"samples"`
	Events         []detect.Event    `json:"events"`

	Clips        []clips.Clip `json:"clips,omitempty"`
	Batches      []clips.Clip `json:"batches,omitempty"`
	Shorts       []clips.Clip `json:"shorts,omitempty"`
	Deliverables []clips.Clip `json:"deliverables,omitempty"`

	Failures []Failure     `json:"failures,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

func newReport(input, mode string) *Report {
	return &Report{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Input:     input,
		StartedAt: time.Now(),
		Events:    []detect.Event{},
	}
}

// Outputs returns the final files of the run
func (r *Report) Outputs() []clips.Clip {
	switch {
	case len(r.Deliverables) > 0:
		return r.Deliverables
	case len(r.Shorts) > 0:
		return r.Shorts
	default:
		return r.Batches
	}
}

func stageFailures(stage string, fs []clips.Failure) []Failure {
	out := make([]Failure, len(fs))
	for i, f := range fs {
		out[i] = Failure{Stage: stage, Item: f.Item, Err: f.Err}
	}
	return out
}
