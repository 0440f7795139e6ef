package kick

import (
	"net/http"
)

// BaseController provides response and telemetry helpers to controllers that
// embed it. ID namespaces log messages and request metadata; when empty the
// route's controller name is used.
//
//	type UsersController struct {
//		kick.BaseController
//	}
//
//	func (c *UsersController) Show(ctx *kick.Context) (any, error) {
//		c.LogInfo(ctx, "loading user", map[string]any{"id": ctx.Param("id")})
//		return c.OK(ctx, user)
//	}
type BaseController struct {
	ID string
}

func (b *BaseController) controllerID(ctx *Context) string {
	if b.ID != "" {
		return b.ID
	}
	return ctx.route.Controller
}

// OK responds 200 with payload.
func (b *BaseController) OK(ctx *Context, payload any) (any, error) {
	return b.Respond(ctx, http.StatusOK, payload)
}

// Created responds 201 with payload.
func (b *BaseController) Created(ctx *Context, payload any) (any, error) {
	return b.Respond(ctx, http.StatusCreated, payload)
}

// Accepted responds 202 with payload.
func (b *BaseController) Accepted(ctx *Context, payload any) (any, error) {
	return b.Respond(ctx, http.StatusAccepted, payload)
}

// NoContent responds 204 without a body.
func (b *BaseController) NoContent(ctx *Context) (any, error) {
	return b.Respond(ctx, http.StatusNoContent, nil)
}

// Respond records and writes the response. A nil payload writes no body.
// The returned value is always nil so the pipeline does not write again.
func (b *BaseController) Respond(ctx *Context, status int, payload any) (any, error) {
	reqCtx := ctx.Context()
	if scope := scopeFrom(reqCtx); scope != nil {
		scope.tracker.RecordResponse(reqCtx, status, payload)
	}
	if payload == nil {
		ctx.Writer.WriteHeader(status)
		return nil, nil
	}
	return nil, ctx.JSON(status, payload)
}

func (b *BaseController) log(ctx *Context, level LogLevel, message string, metadata map[string]any) {
	reqCtx := ctx.Context()
	if scope := scopeFrom(reqCtx); scope != nil {
		scope.tracker.Log(reqCtx, "["+b.controllerID(ctx)+"] "+message, level, metadata)
	}
}

func (b *BaseController) LogDebug(ctx *Context, message string, metadata map[string]any) {
	b.log(ctx, LevelDebug, message, metadata)
}

func (b *BaseController) LogInfo(ctx *Context, message string, metadata map[string]any) {
	b.log(ctx, LevelInfo, message, metadata)
}

func (b *BaseController) LogWarn(ctx *Context, message string, metadata map[string]any) {
	b.log(ctx, LevelWarn, message, metadata)
}

func (b *BaseController) LogError(ctx *Context, message string, metadata map[string]any) {
	b.log(ctx, LevelError, message, metadata)
}

// MergeRequestMetadata merges patch into request metadata under the
// controller's id.
func (b *BaseController) MergeRequestMetadata(ctx *Context, patch map[string]any) {
	reqCtx := ctx.Context()
	if scope := scopeFrom(reqCtx); scope != nil {
		scope.tracker.MergeNamespaced(reqCtx, b.controllerID(ctx), patch)
	}
}

// RequestState returns a snapshot of the tracked request, nil when untracked.
func (b *BaseController) RequestState(ctx *Context) map[string]any {
	if store := requestStore(ctx.Context()); store != nil {
		return store.Snapshot()
	}
	return nil
}

// Fail returns a framework error for the handler to return.
func (b *BaseController) Fail(code, message string, opts ...ErrorOption) error {
	return NewError(code, message, opts...)
}
