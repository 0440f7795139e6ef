package kick

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorBody is the "error" member of the error envelope.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope is the JSON body written for every failed request.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// HandleError is the terminal error stage. It normalizes err, records it on
// the tracked request and writes the error envelope unless a response has
// already started. Errors without a framework code are reported as
// INTERNAL_ERROR; their text only reaches logs and tracked metadata.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := normalizeError(err)
	ctx := r.Context()
	scope := scopeFrom(ctx)

	payload := ErrorEnvelope{Error: ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}}

	if scope != nil {
		t := scope.tracker
		if appErr.Code == CodeInternalError && appErr.Cause != nil {
			t.MergeMetadata(ctx, map[string]any{"errorCause": causeText(appErr.Cause)})
		}
		t.RecordError(ctx, appErr)
		t.RecordResponse(ctx, appErr.Status, payload)
		t.events.emit(ctx, EventTypeError, map[string]any{
			"code":      appErr.Code,
			"status":    appErr.Status,
			"path":      r.URL.Path,
			"method":    r.Method,
			"requestId": scope.store.ID(),
		})
	}

	if responseStarted(w, r) {
		return
	}
	_ = writeJSON(w, appErr.Status, payload)
}

func responseStarted(w http.ResponseWriter, r *http.Request) bool {
	if c, ok := FromRequest(r); ok && c.Written() {
		return true
	}
	rw, ok := w.(*responseWriter)
	return ok && rw.Written()
}

func causeText(err error) string {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return fmt.Sprintf("%v\n%s", panicErr.Value, panicErr.Stack)
	}
	return err.Error()
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }
