// StoryEditor — desktop editor for StoryStencil scene files.
//
// Usage:
//
//	storyeditor scene.json [--background bg.png] [--platform facebook] [--format webp]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/clients/desktop"
	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/config"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
	"github.com/xob0t/StoryStencil/pkg/source"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configPath string
		platform   string
		format     string
		background string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "storyeditor [scene.json]",
		Short:        "Edit a story layout with a live preview",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				TimeFormat:      "15:04:05.00",
				Level:           level,
			})

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path := compositor.SceneFileName
			if len(args) > 0 {
				path = args[0]
			}
			sf, err := openScene(path)
			if err != nil {
				return err
			}
			if background != "" {
				sf.Background = source.Ref(background)
			}
			if sf.Background == "" {
				return fmt.Errorf("%s has no background: pass --background", path)
			}

			p, err := export.ParsePlatform(firstNonEmpty(platform, cfg.Export.Platform))
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(firstNonEmpty(format, cfg.Export.Format))
			if err != nil {
				return err
			}

			ctx := context.Background()
			tk, err := pipeline.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer tk.Close()

			ed, err := desktop.New(ctx, tk, sf, desktop.Options{Path: path, Platform: p, Format: f})
			if err != nil {
				return err
			}
			return desktop.Run(ed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: ./storystencil.toml)")
	cmd.Flags().StringVarP(&background, "background", "b", "", "background image (overrides the scene's)")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "export platform: instagram or facebook")
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: png, jpeg or webp")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// openScene loads path, or starts a blank scene that will be saved there.
func openScene(path string) (*compositor.SceneFile, error) {
	sf, err := compositor.LoadSceneFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &compositor.SceneFile{Scene: compositor.NewScene()}, nil
	}
	return sf, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
