// example.go — Starter scene and data files for `storystencil init`.
package compositor

// ExampleFiles returns a sample scene.json and data.json.
func ExampleFiles() (sceneJSON, dataJSON string) {
	sceneJSON = `{
  "meta": {
    "name": "Sample Story",
    "version": "1.0",
    "author": "StoryStencil",
    "description": "One product from three angles over a generated background"
  },
  "mode": "single",
  "background": "background.png",
  "images": ["front.jpg", "side.jpg", "detail.jpg"],
  "font": "sans-serif",
  "includeLink": true,
  "content": {
    "title": "Vintage Denim Jacket",
    "description": "Size M, barely worn",
    "price": "$45",
    "beneficiary": "Local Food Bank"
  },
  "layout": {
    "image_0": { "position": { "x": 30, "y": 45 }, "size": { "width": 150 } },
    "image_1": { "position": { "x": 70, "y": 45 }, "size": { "width": 150 } },
    "image_2": { "position": { "x": 50, "y": 60 }, "size": { "width": 120 } }
  }
}`

	dataJSON = `{
  "content": {
    "title": "My Custom Title",
    "price": "$30"
  },
  "includeLink": false
}`
	return
}
