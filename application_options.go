package kick

import (
	"io"
)

// Options configures CreateApp. The zero value builds an application from
// the default configuration, DefaultMetadata and DefaultFiles.
type Options struct {
	// Config is resolved with defaults and validated. Nil means defaults.
	Config *AppConfig

	// Controllers are registered explicitly. When neither Controllers nor any
	// module lists a controller, every controller in the metadata store's
	// registry is registered instead. Discovered controllers are always added.
	Controllers []ControllerRef

	// Container receives the framework services. A new one is created when nil.
	Container *Container

	// Metadata is the declaration store. Defaults to DefaultMetadata.
	Metadata *MetadataStore

	// Loader resolves discovered controller files. Defaults to DefaultFiles.
	Loader ControllerLoader

	// Middlewares are mounted on every request, ordered by priority.
	Middlewares []GlobalMiddleware

	// Modules are installed before controllers are mapped.
	Modules []Module

	// ConfigureContainer runs after the framework services are bound.
	ConfigureContainer func(c *Container) error

	// Logger overrides the logger built from Config.Logging.
	Logger Logger

	// LogOutput is where the built logger writes. Defaults to os.Stderr.
	LogOutput io.Writer

	// Observers receive framework events.
	Observers []Observer

	// SynchronousEvents delivers events inline instead of on goroutines.
	SynchronousEvents bool
}
