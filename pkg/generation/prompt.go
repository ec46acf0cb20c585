package generation

import (
	"fmt"
	"strings"

	"github.com/xob0t/StoryStencil/pkg/compositor"
)

const defaultStyle = "Modern, eye-catching design"

func styleOf(notes string) string {
	if s := strings.TrimSpace(notes); s != "" {
		return s
	}
	return defaultStyle
}

// framePrompt is the prompt for text-to-image services.
func framePrompt(req Request) string {
	if req.Mode == compositor.ModeMultiple {
		return fmt.Sprintf(`Design a creative Instagram story background/frame for a multiple product gallery.
Style instructions: %s.
Create a background suitable for showcasing multiple products.
Do not include or modify the product images themselves.
Leave the center area empty for the product images.
Make it vibrant and engaging for a product collection showcase.`, styleOf(req.DesignNotes))
	}
	return fmt.Sprintf(`Design a creative Instagram story background/frame.
Style instructions: %s.
Do not include or modify the product image itself.
Leave the center area empty for the product image.`, styleOf(req.DesignNotes))
}

// galleryPrompt is the prompt for multimodal services that see the products.
func galleryPrompt(req Request) string {
	return fmt.Sprintf(`Generate a vibrant Instagram story background image (9:16 aspect ratio, %dx%dpx) for a multiple product gallery showcase.

Design requirements:
- Style: %s
- Create an engaging background suitable for showcasing multiple products
- Leave the center areas empty/minimal for product image overlays
- Use complementary colors and patterns
- Make it visually appealing but not overwhelming
- Suitable for e-commerce product display
- Professional yet eye-catching design

Create the actual background image, not a description.`, OutputWidth, OutputHeight, styleOf(req.DesignNotes))
}
