package kick

import (
	"net/http"
	"strings"
	"time"

	"github.com/GoCodeAlone/kick/reactive"
)

// RequestSnapshot is the decoded state of one tracked request.
type RequestSnapshot struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	StartedAt  time.Time      `json:"startedAt"`
	EndedAt    *time.Time     `json:"endedAt,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Status     int            `json:"status,omitempty"`
	Response   any            `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	Logs       []LogEntry     `json:"logs"`
	Metadata   map[string]any `json:"metadata"`
}

// Finished reports whether the request has been finalized.
func (s RequestSnapshot) Finished() bool { return s.EndedAt != nil }

func requestSnapshot(entry reactive.Entry) RequestSnapshot {
	state := entry.Snapshot
	snap := RequestSnapshot{ID: entry.ID, Label: entry.Label}
	snap.Method, _ = state[reqMethod].(string)
	snap.Path, _ = state[reqPath].(string)
	snap.StartedAt, _ = state[reqStartedAt].(time.Time)
	if ended, ok := state[reqEndedAt].(time.Time); ok {
		snap.EndedAt = &ended
	}
	snap.DurationMs, _ = state[reqDurationMs].(int64)
	snap.Status, _ = state[reqStatus].(int)
	snap.Response = state[reqResponse]
	snap.Error, _ = state[reqError].(string)
	snap.ErrorCode, _ = state[reqErrorCode].(string)
	snap.Logs, _ = state[reqLogs].([]LogEntry)
	if snap.Logs == nil {
		snap.Logs = []LogEntry{}
	}
	snap.Metadata, _ = state[reqMetadata].(map[string]any)
	if snap.Metadata == nil {
		snap.Metadata = map[string]any{}
	}
	return snap
}

// Diagnostics is a read-only view over the resolved settings and every live
// reactive store.
type Diagnostics struct {
	registry *reactive.Registry
	config   AppConfig
}

// NewDiagnostics creates a diagnostics view.
func NewDiagnostics(registry *reactive.Registry, config AppConfig) *Diagnostics {
	return &Diagnostics{registry: registry, config: config}
}

// Settings returns the resolved configuration.
func (d *Diagnostics) Settings() AppConfig { return d.config }

// Stores lists every registered store in registration order.
func (d *Diagnostics) Stores() []reactive.Entry {
	return d.registry.List()
}

// Requests lists the tracked requests still registered.
func (d *Diagnostics) Requests() []RequestSnapshot {
	var out []RequestSnapshot
	for _, entry := range d.registry.List() {
		if strings.HasPrefix(entry.Label, RequestLabelPrefix) {
			out = append(out, requestSnapshot(entry))
		}
	}
	return out
}

// Handler serves the diagnostics as JSON. The view query parameter selects
// "settings", "stores" or "requests"; without it all three are returned.
func (d *Diagnostics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload any
		switch r.URL.Query().Get("view") {
		case "":
			payload = map[string]any{
				"settings": d.Settings(),
				"stores":   d.Stores(),
				"requests": d.Requests(),
			}
		case "settings":
			payload = d.Settings()
		case "stores":
			payload = d.Stores()
		case "requests":
			payload = d.Requests()
		default:
			HandleError(w, r, NewError(CodeNotFound, "Unknown diagnostics view",
				WithStatus(http.StatusNotFound),
				WithDetails(map[string]any{"view": r.URL.Query().Get("view")})))
			return
		}
		_ = writeJSON(w, http.StatusOK, payload)
	})
}
