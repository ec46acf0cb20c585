// StoryStencil — compose product stories over generated backgrounds.
//
// Usage:
//
//	storystencil render scene.json [--data data.json] [-o story.png]
//	storystencil analyze background.png
//	storystencil generate -i photo.jpg --notes "pastel studio"
//	storystencil pick a.jpg b.jpg c.jpg
//	storystencil serve
//	storystencil init
package main

import (
	"os"

	"github.com/xob0t/StoryStencil/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
