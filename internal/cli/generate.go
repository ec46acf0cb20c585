package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/generation"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
	"github.com/xob0t/StoryStencil/pkg/session"
)

type generateOpts struct {
	output  string
	notes   string
	mode    string
	images  []string
	backend string
}

func newGenerateCmd() *cobra.Command {
	opts := generateOpts{output: "background.png", mode: string(compositor.ModeSingle)}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Request a generated background for the given product photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "where to save the background")
	cmd.Flags().StringVarP(&opts.notes, "notes", "n", "", "design notes for the background style")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", opts.mode, "single or multiple")
	cmd.Flags().StringSliceVarP(&opts.images, "image", "i", nil, "product photo (repeatable)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "auto, replicate, gemini or static (default: config)")
	return cmd
}

func runGenerate(ctx context.Context, opts *generateOpts) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)
	if opts.backend != "" {
		cfg.Generation.Backend = opts.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	mode, err := compositor.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if err := checkImageCount(mode, len(opts.images)); err != nil {
		return err
	}

	req := generation.Request{DesignNotes: opts.notes, Mode: mode}
	for _, path := range opts.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		req.Images = append(req.Images, data)
	}

	tk, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tk.Close()

	prog := newProgress(logger)
	logger.Info("Requesting background", "backend", tk.Backend.Name(), "mode", mode, "images", len(req.Images))
	res, err := tk.Backend.Generate(ctx, req)
	if err != nil {
		return err
	}
	if res.FallbackUsed {
		printWarning("primary backend failed; used fallback")
	}

	img, err := tk.Loader.Decode(ctx, res.Background())
	if err != nil {
		return err
	}
	if err := export.WriteFile(opts.output, img); err != nil {
		return err
	}
	prog.done("Generated background")

	printFile(opts.output, false)
	if an, err := contrast.AnalyzeImage(img); err == nil {
		printKeyValue("Text", an.Theme.TextColor)
	}
	printNextStep("Use it in a scene", "storystencil render scene.json  # background: "+filepath.Base(opts.output))
	return nil
}

// checkImageCount applies the workflow limits to the photos sent along.
func checkImageCount(mode compositor.Mode, n int) error {
	if mode == compositor.ModeMultiple {
		if n < session.MinSelected || n > session.MaxSelected {
			return fmt.Errorf(session.MsgSelectImages)
		}
		return nil
	}
	if n > session.MaxUploads(mode) {
		return fmt.Errorf("at most %d images for the single workflow, got %d", session.MaxUploads(mode), n)
	}
	return nil
}
