package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/pkg/contrast"
	"github.com/xob0t/StoryStencil/pkg/source"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [image|url]",
		Short: "Pick the caption theme for a background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), source.Ref(args[0]), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runAnalyze(ctx context.Context, ref source.Ref, asJSON bool) error {
	logger := loggerFromContext(ctx)
	loader := source.NewLoader(source.NewStore(), source.WithLogger(logger))
	res, err := contrast.NewAnalyzer(loader, contrast.WithLogger(logger)).Analyze(ctx, ref)
	if err != nil {
		return err
	}

	if asJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		printf("%s\n", b)
		return nil
	}

	printf("%s\n", StyleTitle.Render(ref.String()))
	printKeyValue("Luminance", fmt.Sprintf("%.3f", res.Luminance))
	printKeyValue("Text", res.Theme.TextColor)
	printKeyValue("Shadow", res.Theme.TextShadow)
	return nil
}
