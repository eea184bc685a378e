// Package notify is scribe's fire-and-forget status/error sink: desktop
// notifications via notify-send and, for debugging, a small websocket feed
// that tools like a tray icon can subscribe to. The notify-send spawn
// follows the same os/exec idiom as internal/inject; the websocket feed
// retargets the teacher's github.com/coder/websocket dependency
// (pkg/providers/tts/lokutor.go's wsjson client) onto a server role, per
// SPEC_FULL.md §6.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is one status or error notification, also broadcast to any
// connected debug websocket subscribers.
type Event struct {
	Kind    string `json:"kind"` // "status" | "error" | "progress"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Config controls which notifications actually reach the desktop, mirroring
// the [notifications] TOML section of spec.md §6.
type Config struct {
	EnableStatus  bool
	EnableErrors  bool
	ShowPreview   bool
	PreviewLength int
}

// Notifier dispatches Events to notify-send and to any subscribed debug
// websocket clients. All methods are safe for concurrent use.
type Notifier struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Event
}

// New constructs a Notifier.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, subs: make(map[*subscriber]struct{})}
}

// Status emits a status notification (e.g. "Recording", "Idle"), honoring
// enable_status.
func (n *Notifier) Status(message string) {
	n.logger.Info("status", "message", message)
	n.broadcast(Event{Kind: "status", Message: message})
	if n.cfg.EnableStatus {
		n.send("scribe", message)
	}
}

// Error emits an error notification, honoring enable_errors. Per spec.md §7,
// errors always appear in the log regardless of desktop notification
// settings.
func (n *Notifier) Error(kind, message string) {
	n.logger.Error("transcription/session error", "kind", kind, "message", message)
	n.broadcast(Event{Kind: "error", Message: message, Detail: kind})
	if n.cfg.EnableErrors {
		n.send("scribe error", kind+": "+message)
	}
}

// Preview emits the transcribed text as a status notification, truncated to
// PreviewLength when ShowPreview is enabled.
func (n *Notifier) Preview(text string) {
	if !n.cfg.ShowPreview {
		return
	}
	preview := text
	if n.cfg.PreviewLength > 0 && len(preview) > n.cfg.PreviewLength {
		preview = preview[:n.cfg.PreviewLength] + "…"
	}
	n.Status(preview)
}

// Progress broadcasts a model-download progress update to debug websocket
// subscribers only; it is not surfaced as a desktop notification.
func (n *Notifier) Progress(message string) {
	n.broadcast(Event{Kind: "progress", Message: message})
}

func (n *Notifier) send(title, body string) {
	cmd := exec.Command("notify-send", title, body)
	if err := cmd.Run(); err != nil {
		n.logger.Warn("notify-send failed", "error", err)
	}
}

func (n *Notifier) broadcast(ev Event) {
	n.logger.Debug("notify broadcast", "event", marshalForLog(ev))
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs {
		select {
		case s.ch <- ev:
		default:
			// Slow subscriber: drop rather than block notification delivery.
		}
	}
}

// DebugHandler upgrades HTTP requests to a websocket stream of Events, for
// tray icons or other debug tooling to subscribe to.
func (n *Notifier) DebugHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		sub := &subscriber{ch: make(chan Event, 16)}
		n.mu.Lock()
		n.subs[sub] = struct{}{}
		n.mu.Unlock()
		defer func() {
			n.mu.Lock()
			delete(n.subs, sub)
			n.mu.Unlock()
		}()

		ctx := r.Context()
		for {
			select {
			case ev := <-sub.ch:
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// ServeDebug is a convenience entry point wiring DebugHandler behind a
// dedicated loopback listener; cmd/scribe's daemon command always starts
// it. Callers that already run their own mux can mount DebugHandler
// directly instead.
func ServeDebug(ctx context.Context, addr string, n *Notifier) error {
	mux := http.NewServeMux()
	mux.Handle("/debug/events", n.DebugHandler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	return srv.ListenAndServe()
}

// marshalForLog renders an Event as compact JSON for structured log lines
// that want the full event, not just its Message.
func marshalForLog(ev Event) string {
	b, err := json.Marshal(ev)
	if err != nil {
		return ev.Message
	}
	return string(b)
}
