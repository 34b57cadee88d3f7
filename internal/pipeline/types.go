package pipeline

import (
	"context"
	"time"

	"github.com/rbright/cluely/internal/fsm"
	"github.com/rbright/cluely/internal/gateway"
)

// Stage is the coordinator's position in capture → extract → solve → debug.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageExtracting Stage = "extracting"
	StageSolving    Stage = "solving"
	StageSolved     Stage = "solved"
	StageDebugging  Stage = "debugging"
	StageDebugged   Stage = "debugged"
	StageErrored    Stage = "errored"
)

var allStages = []string{
	string(StageQueued),
	string(StageExtracting),
	string(StageSolving),
	string(StageSolved),
	string(StageDebugging),
	string(StageDebugged),
	string(StageErrored),
}

// View is the screen the rendering layer should show.
type View string

const (
	ViewQueue     View = "queue"
	ViewSolutions View = "solutions"
	ViewDebug     View = "debug"
)

type Variant string

const (
	VariantNeutral Variant = "neutral"
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
)

// Notification is a transient toast.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Presenter is the rendering boundary. Implementations must be safe for
// concurrent use.
type Presenter interface {
	Notify(ctx context.Context, n Notification)
	ShowView(ctx context.Context, v View)
}

type noopPresenter struct{}

func (noopPresenter) Notify(context.Context, Notification) {}
func (noopPresenter) ShowView(context.Context, View)       {}

// Transcriber is the coordinator's handle on the voice session. Begin must
// claim the session before returning so that a Stop or Cancel issued after
// it always sees the attempt; the returned func does the slow I/O.
type Transcriber interface {
	Begin() (func(ctx context.Context) error, error)
	Stop(ctx context.Context) error
	Cancel(ctx context.Context) error
	Close() error
	State() fsm.State
}

// AudioResult is the stored outcome of one voice capture.
type AudioResult struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type InputFormat struct {
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
}

type OutputFormat struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
}

type Complexity struct {
	Time  string `json:"time"`
	Space string `json:"space"`
}

type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ProblemStatement is the extracted problem. ValidationType distinguishes
// screenshot extraction from audio-derived statements.
type ProblemStatement struct {
	ProblemStatement string       `json:"problem_statement"`
	InputFormat      InputFormat  `json:"input_format"`
	OutputFormat     OutputFormat `json:"output_format"`
	Complexity       Complexity   `json:"complexity"`
	TestCases        []TestCase   `json:"test_cases"`
	ValidationType   string       `json:"validation_type"`
	Difficulty       string       `json:"difficulty"`
}

const (
	ValidationManual = "manual"
	DifficultyCustom = "custom"
	audioDescription = "Generated from audio input"
)

// ProblemFromAudio builds the placeholder statement used when the problem
// was dictated instead of captured.
func ProblemFromAudio(result AudioResult) ProblemStatement {
	return ProblemStatement{
		ProblemStatement: result.Text,
		InputFormat: InputFormat{
			Description: audioDescription,
			Parameters:  []string{},
		},
		OutputFormat: OutputFormat{
			Description: audioDescription,
			Type:        "string",
			Subtype:     "text",
		},
		Complexity:     Complexity{Time: "N/A", Space: "N/A"},
		TestCases:      []TestCase{},
		ValidationType: ValidationManual,
		Difficulty:     DifficultyCustom,
	}
}

// FromAudio reports whether p was synthesised from a voice capture.
func (p ProblemStatement) FromAudio() bool {
	return p.ValidationType == ValidationManual && p.InputFormat.Description == audioDescription
}

// Display is everything a renderer needs. Solution holds the four displayed
// solution fields and is nil while a solve is loading.
type Display struct {
	Stage        Stage
	View         View
	Debugging    bool
	Resetting    bool
	Problem      *ProblemStatement
	Solution     *gateway.Solution
	NewSolution  *gateway.Solution
	Extras       []gateway.Screenshot
	AudioResult  *AudioResult
	VoicePartial string
	LastError    string
	UpdatedAt    time.Time
}
