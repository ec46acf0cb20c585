package cli

import (
	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/pkg/compositor"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [scene.json|bundle.zip]",
		Short: "Summarize a scene file and list its warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, cleanup, err := compositor.Load(args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			printf("%s", compositor.Describe(sf))
			for _, w := range compositor.Validate(sf.Scene) {
				printWarning("%s", w)
			}
			return nil
		},
	}
}
