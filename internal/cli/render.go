package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/pkg/cache"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	output   string
	data     string
	format   string
	platform string
	link     bool
	variants bool
	share    bool
	noCache  bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [scene.json|bundle.zip]",
		Short: "Render a scene file to a story image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var link *bool
			if cmd.Flags().Changed("link") {
				link = &opts.link
			}
			return runRender(cmd.Context(), args[0], &opts, link)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: platform download name in the output dir)")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "content overrides (data.json)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "png, jpeg or webp (default: from output name or config)")
	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "instagram or facebook (default: config)")
	cmd.Flags().BoolVar(&opts.link, "link", false, "draw the story link callout (default: scene setting)")
	cmd.Flags().BoolVar(&opts.variants, "variants", false, "write both the with-link and no-link variants")
	cmd.Flags().BoolVar(&opts.share, "share", false, "deliver through the export chain instead of writing a file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the render cache")

	return cmd
}

func runRender(ctx context.Context, input string, opts *renderOpts, link *bool) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)
	if opts.noCache {
		cfg.Cache.Backend = cache.BackendNone
	}

	sf, cleanup, err := compositor.Load(input)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.data != "" {
		d, warnings, err := compositor.LoadData(opts.data)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			printWarning("%s", w)
		}
		compositor.MergeData(&sf.Scene, d)
	}
	if link != nil {
		sf.IncludeLink = *link
	}
	for _, w := range compositor.Validate(sf.Scene) {
		printWarning("%s", w)
	}

	format, err := outputFormat(opts.format, opts.output, cfg.Export.Format)
	if err != nil {
		return err
	}
	platform, err := export.ParsePlatform(firstNonEmpty(opts.platform, cfg.Export.Platform))
	if err != nil {
		return err
	}

	tk, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tk.Close()

	scenes := []compositor.Scene{sf.Scene}
	if opts.variants {
		with, without := sf.Scene, sf.Scene
		with.IncludeLink, without.IncludeLink = true, false
		scenes = []compositor.Scene{with, without}
	}

	logger.Infof("Rendering %s", input)
	for _, scene := range scenes {
		prog := newProgress(logger)
		if opts.share {
			chain := pipeline.NewChain(cfg, "", logger)
			d, err := tk.Runner.Export(ctx, scene, format, platform, chain)
			if err != nil {
				return err
			}
			prog.done("Exported story")
			printSuccess("Shared via %s", d.Channel)
			printFile(d.Location, false)
			continue
		}

		res, err := tk.Runner.Render(ctx, scene, format)
		if err != nil {
			return err
		}
		path := opts.output
		if path == "" || opts.variants {
			path = filepath.Join(cfg.Export.OutputDir, export.DownloadName(platform, scene.IncludeLink, time.Now(), format))
		}
		if err := os.WriteFile(path, res.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		prog.done("Rendered story")
		printFile(path, res.CacheHit)
	}
	return nil
}

// outputFormat resolves --format, then the output extension, then the
// configured default.
func outputFormat(flag, output, fallback string) (export.Format, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if output != "" {
		if f, err := export.FormatFromPath(output); err == nil {
			return f, nil
		}
	}
	return export.ParseFormat(fallback)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
