// Package indicator shows pipeline notifications as desktop toasts and
// tracks which view the renderer was asked to show.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/cluely/internal/config"
	"github.com/rbright/cluely/internal/logging"
	"github.com/rbright/cluely/internal/pipeline"
)

const dispatchTimeout = 400 * time.Millisecond

// Notifier is a pipeline.Presenter backed by freedesktop notifications.
// Each toast replaces the previous one so at most one is on screen.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	mu             sync.Mutex
	notificationID uint32
	view           pipeline.View
}

func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Notifier{cfg: cfg, logger: logger, view: pipeline.ViewQueue}
}

// Notify raises a toast. Failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, note pipeline.Notification) {
	n.logger.Info("notification", "title", note.Title, "variant", string(note.Variant))
	if !n.cfg.Enable {
		return
	}

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "cluely"
	}
	st := styleFor(note.Variant)

	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	id, err := desktopNotify(runCtx, toast{
		appName:   appName,
		replaceID: replaceID,
		icon:      st.icon,
		summary:   note.Title,
		body:      note.Description,
		urgency:   st.urgency,
		timeoutMS: n.cfg.TimeoutMS,
	})
	if err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
		return
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
}

// ShowView records the requested view.
func (n *Notifier) ShowView(_ context.Context, v pipeline.View) {
	n.mu.Lock()
	n.view = v
	n.mu.Unlock()
	n.logger.Info("view requested", "view", string(v))
}

// View returns the last requested view.
func (n *Notifier) View() pipeline.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}
