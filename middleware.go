package kick

import (
	"cmp"
	"net/http"
	"runtime/debug"
	"slices"
)

// GlobalMiddleware is middleware mounted on every request before routing.
// Lower priorities run first; equal priorities keep their registration
// order.
type GlobalMiddleware struct {
	Name     string
	Priority int
	Tags     []string
	Handler  Middleware
}

// sortMiddlewares orders mws by priority and drops repeated names, keeping
// the first occurrence. Unnamed middleware is never deduplicated.
func sortMiddlewares(mws []GlobalMiddleware) []GlobalMiddleware {
	out := make([]GlobalMiddleware, 0, len(mws))
	seen := make(map[string]bool, len(mws))
	for _, mw := range mws {
		if mw.Handler == nil {
			continue
		}
		if mw.Name != "" {
			if seen[mw.Name] {
				continue
			}
			seen[mw.Name] = true
		}
		out = append(out, mw)
	}
	slices.SortStableFunc(out, func(a, b GlobalMiddleware) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

func middlewaresFromGroup(c *Container) []GlobalMiddleware {
	var out []GlobalMiddleware
	for _, v := range c.Group(GroupMiddlewares) {
		switch mw := v.(type) {
		case GlobalMiddleware:
			out = append(out, mw)
		case *GlobalMiddleware:
			if mw != nil {
				out = append(out, *mw)
			}
		}
	}
	return out
}

// recoverMiddleware turns a panic in global middleware into an
// INTERNAL_ERROR response. Route handlers recover on their own.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				HandleError(w, r, &PanicError{Value: v, Stack: debug.Stack()})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
