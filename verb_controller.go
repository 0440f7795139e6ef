package kick

// MethodProvider reports the HTTP verb a discovered controller serves.
type MethodProvider interface {
	Method() Method
}

// RequestHandler handles a request for a discovered controller.
type RequestHandler interface {
	Handle(ctx *Context) (any, error)
}

// VerbController is a single-verb controller mapped from a file name, such
// as users.get.controller.go.
type VerbController interface {
	MethodProvider
	RequestHandler
}

// StaticRouter overrides the route derived from a controller's file path.
// A leading "/" makes it absolute; otherwise it is relative to the discovery
// base route.
type StaticRouter interface {
	StaticRoute() string
}

// StaticTagger adds tags to a discovered controller.
type StaticTagger interface {
	StaticTags() []string
}

// GetController is embedded by controllers serving GET.
type GetController struct{ BaseController }

func (GetController) Method() Method { return MethodGet }

// PostController is embedded by controllers serving POST.
type PostController struct{ BaseController }

func (PostController) Method() Method { return MethodPost }

// PutController is embedded by controllers serving PUT.
type PutController struct{ BaseController }

func (PutController) Method() Method { return MethodPut }

// PatchController is embedded by controllers serving PATCH.
type PatchController struct{ BaseController }

func (PatchController) Method() Method { return MethodPatch }

// DeleteController is embedded by controllers serving DELETE.
type DeleteController struct{ BaseController }

func (DeleteController) Method() Method { return MethodDelete }
