package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/session"
	"github.com/xob0t/StoryStencil/pkg/source"
)

func newPickCmd() *cobra.Command {
	var base, output string

	cmd := &cobra.Command{
		Use:   "pick [images...]",
		Short: "Choose 2-4 images and their order for a multiple-item story",
		Args:  cobra.RangeArgs(session.MinSelected, session.MaxUploadsMultiple),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := tea.NewProgram(NewPickModel(args)).Run()
			if err != nil {
				return err
			}
			m := res.(PickModel)
			if !m.Confirmed {
				printWarning("nothing picked")
				return nil
			}
			return writePickedScene(base, output, m.Picked())
		},
	}
	cmd.Flags().StringVar(&base, "scene", "", "scene file to start from (default: a new scene)")
	cmd.Flags().StringVarP(&output, "output", "o", compositor.SceneFileName, "scene file to write")
	return cmd
}

// writePickedScene stores images, in order, as the slots of a multiple-item
// scene.
func writePickedScene(base, output string, images []string) error {
	sf := &compositor.SceneFile{Scene: compositor.NewScene()}
	if base != "" {
		var err error
		if sf, err = compositor.LoadSceneFile(base); err != nil {
			return err
		}
	}
	sf.Mode = compositor.ModeMultiple
	sf.Images = make([]source.Ref, len(images))
	for i, p := range images {
		sf.Images[i] = source.Ref(p)
	}

	if err := sf.Save(output); err != nil {
		return err
	}
	printSuccess("Wrote %s with %d images", output, len(images))
	return nil
}
