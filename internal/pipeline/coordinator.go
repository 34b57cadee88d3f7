// Package pipeline drives the solve lifecycle from gateway events, keeps the
// result cache and the voice session in step, and derives what the renderer
// shows.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/cluely/internal/cache"
	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/logging"
	"github.com/rbright/cluely/internal/metrics"
	"github.com/rbright/cluely/internal/scope"
)

const inboxSize = 64

// Coordinator owns the pipeline stage and the display state. Every event
// handler and every final-transcript delivery runs on the Run goroutine, one
// at a time, in arrival order.
type Coordinator struct {
	logger      *slog.Logger
	cache       *cache.Store
	transcriber Transcriber
	screenshots gateway.ScreenshotSource
	presenter   Presenter
	metrics     *metrics.Metrics
	now         func() time.Time

	inbox     chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once
	tasks     sync.WaitGroup
	releases  scope.Scope

	mu       sync.RWMutex
	display  Display
	solveGen uint64
}

// New wires a coordinator to store. The cache subscriptions it registers are
// released by Close.
func New(
	logger *slog.Logger,
	store *cache.Store,
	transcriber Transcriber,
	screenshots gateway.ScreenshotSource,
	presenter Presenter,
	m *metrics.Metrics,
) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	if presenter == nil {
		presenter = noopPresenter{}
	}

	c := &Coordinator{
		logger:      logger,
		cache:       store,
		transcriber: transcriber,
		screenshots: screenshots,
		presenter:   presenter,
		metrics:     m,
		now:         time.Now,
		inbox:       make(chan func(context.Context), inboxSize),
		done:        make(chan struct{}),
		display: Display{
			Stage:  StageQueued,
			View:   ViewQueue,
			Extras: []gateway.Screenshot{},
		},
	}
	c.metrics.RecordStage(string(StageQueued), allStages)

	c.releases.Add(store.Subscribe(c.onCacheWrite))
	c.releases.Add(store.SubscribeKey(cache.KeySolution, c.onSolution))
	c.releases.Add(store.SubscribeKey(cache.KeyNewSolution, c.onNewSolution))
	c.releases.Add(store.SubscribeKey(cache.KeyProblemStatement, c.onProblemStatement))
	c.releases.Add(store.SubscribeKey(cache.KeyAudioResult, c.onAudioResult))
	c.releases.Add(store.SubscribeKey(cache.KeyExtras, c.onExtras))
	if transcriber != nil {
		c.releases.AddErr(transcriber.Close)
	}
	return c
}

// Attach subscribes to every lifecycle event kind on source. Events are
// queued for the Run goroutine.
func (c *Coordinator) Attach(source gateway.EventSource) {
	for _, kind := range gateway.EventKinds {
		c.releases.Add(source.Subscribe(kind, func(ev gateway.Event) {
			if err := c.Deliver(context.Background(), ev); err != nil {
				c.logger.Warn("lifecycle event dropped", "event", ev.Kind, "error", err.Error())
			}
		}))
	}
}

// Run processes queued work until ctx is cancelled, then closes the
// coordinator.
func (c *Coordinator) Run(ctx context.Context) error {
	defer func() { _ = c.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case fn := <-c.inbox:
			fn(ctx)
		}
	}
}

// Close releases every subscription, tears down the voice session, and waits
// for background starts. It is safe to call more than once.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.releases.Close()
		c.tasks.Wait()
	})
	return err
}

// Deliver queues ev for the Run goroutine.
func (c *Coordinator) Deliver(ctx context.Context, ev gateway.Event) error {
	return c.enqueue(ctx, func(runCtx context.Context) { c.Dispatch(runCtx, ev) })
}

// AcceptFinalTranscript queues a stopped session's transcript. It is the
// session's final-transcript consumer.
func (c *Coordinator) AcceptFinalTranscript(text string) {
	err := c.enqueue(context.Background(), func(context.Context) { c.applyFinalTranscript(text) })
	if err != nil {
		c.logger.Warn("final transcript dropped", "error", err.Error())
	}
}

// AcceptPartialTranscript updates the live voice preview.
func (c *Coordinator) AcceptPartialTranscript(text string) {
	c.mu.Lock()
	c.display.VoicePartial = text
	c.touchLocked()
	c.mu.Unlock()
}

// ReportTranscriptionError surfaces a voice session failure to the user.
func (c *Coordinator) ReportTranscriptionError(err error) {
	if err == nil {
		return
	}
	c.notify(context.Background(), Notification{
		Title:       "Voice Transcription Failed",
		Description: err.Error(),
		Variant:     VariantError,
	})
}

// Snapshot returns a copy of the display state.
func (c *Coordinator) Snapshot() Display {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := c.display
	d.Extras = append([]gateway.Screenshot(nil), c.display.Extras...)
	return d
}

func (c *Coordinator) enqueue(ctx context.Context, fn func(context.Context)) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextTick runs fn after the work currently queued. When the inbox is full
// fn runs immediately.
func (c *Coordinator) nextTick(fn func()) {
	select {
	case c.inbox <- func(context.Context) { fn() }:
	default:
		fn()
	}
}

// Dispatch handles ev synchronously on the calling goroutine. Run uses it for
// queued events; callers that own the loop themselves may call it directly.
func (c *Coordinator) Dispatch(ctx context.Context, ev gateway.Event) {
	c.metrics.RecordEvent(string(ev.Kind))
	logger := c.logger.With("event", string(ev.Kind))
	if ev.Generation != 0 {
		logger = logger.With("generation", ev.Generation)
	}

	switch ev.Kind {
	case gateway.EventCaptureTaken:
		c.refreshExtras(ctx)
	case gateway.EventResetView:
		c.reset(ctx, logger)
	case gateway.EventSolveStart:
		c.solveStart(ctx, ev, logger)
	case gateway.EventSolveError:
		c.solveError(ctx, ev, logger)
	case gateway.EventSolveSuccess:
		c.solveSuccess(ctx, ev, logger)
	case gateway.EventDebugStart:
		c.debugStart(ev, logger)
	case gateway.EventDebugSuccess:
		c.debugSuccess(ctx, ev, logger)
	case gateway.EventDebugError:
		c.debugError(ctx, ev, logger)
	case gateway.EventNoExtraScreenshots:
		c.notify(ctx, Notification{
			Title:       "No Screenshots",
			Description: "There are no extra screenshots to process.",
			Variant:     VariantNeutral,
		})
	default:
		c.ignore(ev, "unknown_kind", logger)
	}
}

func (c *Coordinator) reset(ctx context.Context, logger *slog.Logger) {
	c.mu.Lock()
	c.display.Resetting = true
	c.solveGen++
	c.mu.Unlock()

	if c.transcriber != nil {
		if err := c.transcriber.Cancel(ctx); err != nil {
			logger.Warn("cancel voice capture on reset failed", "error", err.Error())
		}
	}

	// Observers rely on this order: solution, then new_solution.
	c.cache.Remove(cache.KeySolution)
	c.cache.Remove(cache.KeyNewSolution)
	c.refreshExtras(ctx)

	c.mu.Lock()
	c.display.Debugging = false
	c.display.LastError = ""
	c.setStageLocked(StageQueued)
	changed := c.setViewLocked(ViewQueue)
	c.mu.Unlock()
	c.showView(ctx, changed, ViewQueue)

	c.nextTick(func() {
		c.mu.Lock()
		c.display.Resetting = false
		c.touchLocked()
		c.mu.Unlock()
	})
	logger.Info("pipeline reset")
}

func (c *Coordinator) solveStart(ctx context.Context, ev gateway.Event, logger *slog.Logger) {
	c.mu.Lock()
	if ev.Generation != 0 {
		c.solveGen = ev.Generation
	} else {
		c.solveGen++
	}
	gen := c.solveGen
	c.display.Solution = nil
	c.display.AudioResult = nil
	c.display.VoicePartial = ""
	c.display.LastError = ""
	c.setStageLocked(StageExtracting)
	changed := c.setViewLocked(ViewSolutions)
	c.mu.Unlock()
	c.showView(ctx, changed, ViewSolutions)

	c.cache.Remove(cache.KeyAudioResult)
	logger.Info("solve started", "solve_generation", gen)

	if c.transcriber == nil {
		return
	}
	connect, err := c.transcriber.Begin()
	if err != nil {
		logger.Warn("voice capture did not start", "error", err.Error())
		return
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		if err := connect(ctx); err != nil {
			logger.Warn("voice capture did not start", "error", err.Error())
		}
	}()
}

func (c *Coordinator) solveError(ctx context.Context, ev gateway.Event, logger *slog.Logger) {
	if c.stale(ev) {
		c.ignore(ev, "stale_generation", logger)
		return
	}

	stageErr := &StageError{Stage: StageSolving, Message: ev.Message}
	logger.Error("solve failed", "error", stageErr.Error())
	c.notify(ctx, Notification{
		Title:       "Processing Failed",
		Description: "There was an error processing your extra screenshots.",
		Variant:     VariantError,
	})

	var cached *gateway.Solution
	if value, ok := c.cache.Get(cache.KeySolution); ok {
		cached = solutionFrom(value)
	}

	c.mu.Lock()
	c.display.LastError = stageErr.Error()
	var changed bool
	if cached != nil {
		c.display.Solution = cached
		c.setStageLocked(StageSolved)
	} else {
		c.display.Solution = nil
		c.setStageLocked(StageErrored)
		changed = c.setViewLocked(ViewQueue)
	}
	c.mu.Unlock()
	c.showView(ctx, changed, ViewQueue)
}

func (c *Coordinator) solveSuccess(ctx context.Context, ev gateway.Event, logger *slog.Logger) {
	if ev.Payload == nil || ev.Payload.Solution == nil {
		c.ignore(ev, "malformed", logger)
		logger.Warn(ErrMalformedPayload.Error())
		return
	}
	if c.stale(ev) {
		c.ignore(ev, "stale_generation", logger)
		return
	}

	c.cache.Set(cache.KeySolution, *cloneSolution(ev.Payload.Solution))

	c.mu.Lock()
	c.display.LastError = ""
	c.setStageLocked(StageSolved)
	changed := c.setViewLocked(ViewSolutions)
	c.mu.Unlock()
	c.showView(ctx, changed, ViewSolutions)
	logger.Info("solve succeeded")
}

func (c *Coordinator) debugStart(ev gateway.Event, logger *slog.Logger) {
	if c.stale(ev) {
		c.ignore(ev, "stale_generation", logger)
		return
	}
	c.mu.Lock()
	c.display.Debugging = true
	c.setStageLocked(StageDebugging)
	c.mu.Unlock()
}

func (c *Coordinator) debugSuccess(ctx context.Context, ev gateway.Event, logger *slog.Logger) {
	if ev.Payload == nil || ev.Payload.Solution == nil {
		c.ignore(ev, "malformed", logger)
		logger.Warn(ErrMalformedPayload.Error())
		return
	}
	if c.stale(ev) {
		c.ignore(ev, "stale_generation", logger)
		return
	}

	c.cache.Set(cache.KeyNewSolution, *cloneSolution(ev.Payload.Solution))

	c.mu.Lock()
	c.display.Debugging = false
	c.display.LastError = ""
	c.setStageLocked(StageDebugged)
	changed := c.setViewLocked(ViewDebug)
	c.mu.Unlock()
	c.showView(ctx, changed, ViewDebug)
	logger.Info("debug succeeded")
}

func (c *Coordinator) debugError(ctx context.Context, ev gateway.Event, logger *slog.Logger) {
	if c.stale(ev) {
		c.ignore(ev, "stale_generation", logger)
		return
	}

	stageErr := &StageError{Stage: StageDebugging, Message: ev.Message}
	logger.Error("debug failed", "error", stageErr.Error())
	c.notify(ctx, Notification{
		Title:       "Processing Failed",
		Description: "There was an error debugging your code.",
		Variant:     VariantError,
	})

	c.mu.Lock()
	c.display.Debugging = false
	c.display.LastError = stageErr.Error()
	switch {
	case c.display.NewSolution != nil:
		c.setStageLocked(StageDebugged)
	case c.display.Solution != nil:
		c.setStageLocked(StageSolved)
	default:
		c.setStageLocked(StageQueued)
	}
	c.mu.Unlock()
}

// applyFinalTranscript stores a dictated transcript and feeds it back into
// the pipeline as an audio-derived problem statement.
func (c *Coordinator) applyFinalTranscript(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	result := AudioResult{Text: text, Timestamp: c.now().UnixMilli()}
	c.cache.Set(cache.KeyAudioResult, result)

	c.mu.Lock()
	c.setStageLocked(StageExtracting)
	c.mu.Unlock()

	c.cache.Set(cache.KeyProblemStatement, ProblemFromAudio(result))
	c.logger.Info("voice transcript captured", "transcript_chars", len(text))
}

func (c *Coordinator) refreshExtras(ctx context.Context) {
	extras := []gateway.Screenshot{}
	if c.screenshots != nil {
		list, err := c.screenshots.Screenshots(ctx)
		if err != nil {
			c.logger.Warn("load extra screenshots failed", "error", err.Error())
		} else if list != nil {
			extras = list
		}
	}
	c.cache.Set(cache.KeyExtras, extras)
}

func (c *Coordinator) onCacheWrite(change cache.Change) {
	c.metrics.RecordCacheWrite(string(change.Key), change.Removed)
}

// onSolution is the only writer of the displayed solution fields outside
// solve-start and the solve-error rollback.
func (c *Coordinator) onSolution(change cache.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display.Solution = solutionValue(change)
	c.touchLocked()
}

func (c *Coordinator) onNewSolution(change cache.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display.NewSolution = solutionValue(change)
	c.touchLocked()
}

func (c *Coordinator) onProblemStatement(change cache.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if change.Removed {
		c.display.Problem = nil
		c.touchLocked()
		return
	}
	problem, ok := change.Value.(ProblemStatement)
	if !ok {
		c.logger.Warn("ignoring problem statement of unexpected type")
		return
	}
	c.display.Problem = &problem
	switch {
	case problem.FromAudio():
		// A dictated problem invalidates whatever solution was on screen and
		// waits at extracting for the solver to pick it up.
		c.display.Solution = nil
	case c.display.Stage == StageQueued || c.display.Stage == StageExtracting:
		c.setStageLocked(StageSolving)
	}
	c.touchLocked()
}

func (c *Coordinator) onAudioResult(change cache.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.display.AudioResult = nil
	if result, ok := change.Value.(AudioResult); ok && !change.Removed {
		c.display.AudioResult = &result
	}
	c.touchLocked()
}

func (c *Coordinator) onExtras(change cache.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.display.Extras = []gateway.Screenshot{}
	if list, ok := change.Value.([]gateway.Screenshot); ok && !change.Removed {
		c.display.Extras = append(c.display.Extras, list...)
	}
	c.touchLocked()
}

func (c *Coordinator) stale(ev gateway.Event) bool {
	if ev.Generation == 0 {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ev.Generation != c.solveGen
}

func (c *Coordinator) ignore(ev gateway.Event, reason string, logger *slog.Logger) {
	c.metrics.RecordIgnoredEvent(string(ev.Kind), reason)
	logger.Debug("lifecycle event ignored", "reason", reason)
}

func (c *Coordinator) notify(ctx context.Context, n Notification) {
	c.metrics.RecordNotification(string(n.Variant))
	c.presenter.Notify(ctx, n)
}

func (c *Coordinator) showView(ctx context.Context, changed bool, v View) {
	if changed {
		c.presenter.ShowView(ctx, v)
	}
}

func (c *Coordinator) setStageLocked(stage Stage) {
	if c.display.Stage != stage {
		c.metrics.RecordStage(string(stage), allStages)
	}
	c.display.Stage = stage
	c.touchLocked()
}

func (c *Coordinator) setViewLocked(v View) bool {
	if c.display.View == v {
		return false
	}
	c.display.View = v
	c.touchLocked()
	return true
}

func (c *Coordinator) touchLocked() {
	c.display.UpdatedAt = c.now()
}

func solutionValue(change cache.Change) *gateway.Solution {
	if change.Removed {
		return nil
	}
	return solutionFrom(change.Value)
}

// solutionFrom accepts a solution stored by value or by pointer.
func solutionFrom(value any) *gateway.Solution {
	switch v := value.(type) {
	case gateway.Solution:
		return cloneSolution(&v)
	case *gateway.Solution:
		return cloneSolution(v)
	default:
		return nil
	}
}

func cloneSolution(s *gateway.Solution) *gateway.Solution {
	if s == nil {
		return nil
	}
	out := *s
	out.Thoughts = append([]string(nil), s.Thoughts...)
	return &out
}
