package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/kick"
	"github.com/GoCodeAlone/kick/internal/jsoncodec"
)

// watchDebounce collapses bursts of file events into one re-render.
const watchDebounce = 150 * time.Millisecond

type routesOptions struct {
	root   *rootOptions
	json   bool
	watch  bool
	roots  []string
	prefix string
}

// NewRoutesCommand lists the routes controller files map to
func NewRoutesCommand(root *rootOptions) *cobra.Command {
	opts := &routesOptions{root: root}
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes derived from controller file names",
		Long: `List the routes the discovery roots would produce, without loading any
controller. Static route and tag overrides declared in code are not applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			discovery := cfg.API.Discovery
			if len(opts.roots) > 0 {
				discovery.Roots = opts.roots
			}
			render := func(w io.Writer) error {
				routes, err := kick.InspectControllers(discovery)
				if err != nil {
					return err
				}
				return printRoutes(w, routes, cfg.Prefix, opts.json)
			}
			if !opts.watch {
				return render(cmd.OutOrStdout())
			}
			return watchRoutes(cmd.Context(), discovery, cmd.OutOrStdout(), cmd.ErrOrStderr(), render)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print routes as JSON")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-print routes whenever a discovery root changes")
	cmd.Flags().StringSliceVar(&opts.roots, "root", nil, "Override the discovery roots")
	return cmd
}

func printRoutes(w io.Writer, routes []kick.InspectedRoute, prefix string, asJSON bool) error {
	if asJSON {
		if routes == nil {
			routes = []kick.InspectedRoute{}
		}
		data, err := jsoncodec.MarshalIndent(routes, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if len(routes) == 0 {
		_, err := fmt.Fprintln(w, "No controller files found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tROUTE\tFILE\tTAGS")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Method.HTTP(), kick.BuildRoutePath(prefix, r.Route), r.FilePath, strings.Join(r.Tags, ","))
	}
	return tw.Flush()
}

// watchRoutes renders once, then again after every change under the
// discovery roots, until ctx is done.
func watchRoutes(ctx context.Context, cfg kick.DiscoveryConfig, out, errOut io.Writer, render func(io.Writer) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range resolveRoots(cfg) {
		if err := addTree(watcher, root, cfg.Ignore); err != nil {
			return err
		}
	}

	renderOnce := func() {
		if err := render(out); err != nil {
			fmt.Fprintf(errOut, "Error: %s\n", err)
		}
	}
	renderOnce()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, ev.Name, cfg.Ignore)
				}
			}
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "Watch error: %s\n", err)
		case <-timer.C:
			fmt.Fprintln(out)
			renderOnce()
		}
	}
}

func resolveRoots(cfg kick.DiscoveryConfig) []string {
	base := cfg.BaseDir
	if base == "" {
		base, _ = os.Getwd()
	}
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(base, r)
		}
		roots = append(roots, r)
	}
	return roots
}

// addTree watches dir and every directory below it. Missing roots are
// skipped.
func addTree(watcher *fsnotify.Watcher, dir string, ignore []string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || slices.Contains(ignore, name)) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
