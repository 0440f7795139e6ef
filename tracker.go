package kick

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/kick/reactive"
)

// RequestLabelPrefix starts the label of every request store.
const RequestLabelPrefix = "request:"

// RequestIDHeader carries the tracked request id on responses.
const RequestIDHeader = "X-Request-Id"

// LogEntry is one message logged against a request.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Keys of a request store.
const (
	reqID         = "id"
	reqMethod     = "method"
	reqPath       = "path"
	reqStartedAt  = "startedAt"
	reqEndedAt    = "endedAt"
	reqDurationMs = "durationMs"
	reqStatus     = "status"
	reqResponse   = "response"
	reqError      = "error"
	reqErrorCode  = "errorCode"
	reqLogs       = "logs"
	reqMetadata   = "metadata"
)

type requestScope struct {
	store   *reactive.Store
	tracker *RequestTracker
}

var requestScopeKey = &contextKey{"kick-request"}

func scopeFrom(ctx context.Context) *requestScope {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(requestScopeKey).(*requestScope)
	return scope
}

func requestStore(ctx context.Context) *reactive.Store {
	if scope := scopeFrom(ctx); scope != nil {
		return scope.store
	}
	return nil
}

// RequestTracker gives every request its own reactive store, registered for
// diagnostics, and records logs, metadata, responses and errors against it.
type RequestTracker struct {
	registry  *reactive.Registry
	logger    Logger
	events    *EventSubject
	telemetry TelemetryConfig

	mu    sync.RWMutex
	hooks []func(RequestSnapshot)
}

// NewRequestTracker creates a tracker registering stores in registry.
func NewRequestTracker(registry *reactive.Registry, logger Logger, telemetry TelemetryConfig) *RequestTracker {
	if logger == nil {
		logger = NopLogger()
	}
	return &RequestTracker{registry: registry, logger: logger, telemetry: telemetry}
}

// OnFinalize registers fn to run once per request after it is finalized.
func (t *RequestTracker) OnFinalize(fn func(RequestSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Middleware creates the request store and finalizes it exactly once, when
// the handler returns or the client goes away, whichever happens first.
// After a disconnect the finalized status is whatever was written so far
// (200 when nothing was); a handler that keeps running may still record a
// response, which replaces the stored status but does not finalize again.
func (t *RequestTracker) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			startedAt := time.Now()
			opts := []reactive.Option{
				reactive.WithID(id),
				reactive.WithLabel(fmt.Sprintf("%s%s %s", RequestLabelPrefix, r.Method, r.URL.Path)),
				reactive.WithRegistry(t.registry),
				reactive.WithHistory(t.telemetry.HistoryEnabled()),
				reactive.WithMaxHistory(t.telemetry.RequestHistoryLimit),
			}
			store := reactive.New(map[string]any{
				reqID:        id,
				reqMethod:    r.Method,
				reqPath:      r.URL.Path,
				reqStartedAt: startedAt,
				reqLogs:      []LogEntry{},
				reqMetadata:  map[string]any{},
			}, opts...)

			rw := wrapResponseWriter(w)
			rw.Header().Set(RequestIDHeader, id)

			var once sync.Once
			finalize := func() {
				once.Do(func() { t.finalize(store, rw.Status(), startedAt) })
			}
			stop := context.AfterFunc(r.Context(), finalize)
			defer func() {
				stop()
				finalize()
			}()

			ctx := context.WithValue(r.Context(), requestScopeKey, &requestScope{store: store, tracker: t})
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// Get returns the store of the request carried by ctx, or nil.
func (t *RequestTracker) Get(ctx context.Context) *reactive.Store {
	return requestStore(ctx)
}

// Log appends an entry to the request log and mirrors it to the logger.
func (t *RequestTracker) Log(ctx context.Context, message string, level LogLevel, metadata map[string]any) {
	store := requestStore(ctx)
	if store == nil {
		return
	}
	if level == "" {
		level = LevelInfo
	}
	entry := LogEntry{Timestamp: time.Now(), Level: level, Message: message, Metadata: metadata}
	store.Update(reqLogs, func(current any, _ bool) any {
		logs, _ := current.([]LogEntry)
		return append(logs, entry)
	})

	method, _ := store.Get(reqMethod)
	path, _ := store.Get(reqPath)
	args := []any{"requestId", store.ID()}
	args = append(args, sortedArgs(metadata)...)
	logAt(t.logger, level, fmt.Sprintf("[%v %v] %s", method, path, message), args...)
}

// MergeMetadata shallow-merges patch into the request metadata.
func (t *RequestTracker) MergeMetadata(ctx context.Context, patch map[string]any) {
	store := requestStore(ctx)
	if store == nil || len(patch) == 0 {
		return
	}
	store.Update(reqMetadata, func(current any, _ bool) any {
		return mergeMaps(current, patch)
	})
}

// MergeNamespaced merges patch into the metadata map stored under namespace.
func (t *RequestTracker) MergeNamespaced(ctx context.Context, namespace string, patch map[string]any) {
	store := requestStore(ctx)
	if store == nil || len(patch) == 0 {
		return
	}
	store.Update(reqMetadata, func(current any, _ bool) any {
		meta, _ := current.(map[string]any)
		nested := mergeMaps(meta[namespace], patch)
		return mergeMaps(meta, map[string]any{namespace: nested})
	})
}

// RecordResponse stores the response status and payload.
func (t *RequestTracker) RecordResponse(ctx context.Context, status int, payload any) {
	store := requestStore(ctx)
	if store == nil {
		return
	}
	store.Set(reqStatus, status)
	store.Set(reqResponse, payload)
}

// RecordError stores err on the request and logs it at error level.
func (t *RequestTracker) RecordError(ctx context.Context, err error) {
	store := requestStore(ctx)
	if store == nil || err == nil {
		return
	}
	store.Set(reqError, err.Error())
	var meta map[string]any
	if appErr, ok := AsError(err); ok {
		store.Set(reqErrorCode, appErr.Code)
		t.MergeMetadata(ctx, map[string]any{
			"errorCode":    appErr.Code,
			"errorDetails": appErr.Details,
		})
		meta = map[string]any{"errorCode": appErr.Code}
	}
	t.Log(ctx, err.Error(), LevelError, meta)
}

func (t *RequestTracker) finalize(store *reactive.Store, status int, startedAt time.Time) {
	endedAt := time.Now()
	duration := endedAt.Sub(startedAt).Milliseconds()
	store.Set(reqStatus, status)
	store.Set(reqEndedAt, endedAt)
	store.Set(reqDurationMs, duration)

	t.logger.Debug(fmt.Sprintf("Request completed with %d", status),
		"requestId", store.ID(), "durationMs", duration)

	t.mu.RLock()
	hooks := append(([]func(RequestSnapshot))(nil), t.hooks...)
	t.mu.RUnlock()
	if len(hooks) == 0 {
		return
	}
	snapshot := requestSnapshot(reactive.Entry{ID: store.ID(), Label: store.Label(), Snapshot: store.Snapshot()})
	for _, hook := range hooks {
		hook(snapshot)
	}
}

func mergeMaps(current any, patch map[string]any) map[string]any {
	base, _ := current.(map[string]any)
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func sortedArgs(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(m)*2)
	for _, k := range keys {
		args = append(args, k, m[k])
	}
	return args
}
