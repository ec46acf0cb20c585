package viewport

import (
	"math"
	"testing"

	"github.com/xob0t/StoryStencil/pkg/compositor"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/source"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		margin float64
		want   View
	}{
		{"exact", 540, 960, 0, View{0, 0, 540, 960}},
		{"wide window", 1000, 960, 0, View{230, 0, 540, 960}},
		{"tall window", 270, 1000, 0, View{0, 260, 270, 480}},
		{"margin", 588, 1008, 24, View{24, 24, 540, 960}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fit(tt.w, tt.h, tt.margin); got != tt.want {
				t.Errorf("Fit(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestRectMatchesView(t *testing.T) {
	v := View{X: 10, Y: 20, Width: 270, Height: 480}
	r := v.Rect()
	if r.Left != 10 || r.Top != 20 || r.Width != 270 || r.Height != 480 {
		t.Errorf("Rect = %+v", r)
	}
	if !v.Contains(10, 20) || v.Contains(280, 20) {
		t.Error("Contains edges wrong")
	}
}

func TestContainsLetterboxMargin(t *testing.T) {
	// A tall canvas in a wider window leaves margins on the left and right.
	v := Fit(800, 1000, 24)
	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"centre", 400, 500, true},
		{"left edge", v.X, 500, true},
		{"left margin", 10, 500, false},
		{"just past right", v.X + v.Width, 500, false},
		{"just inside right", v.X + v.Width - 0.5, 500, true},
		{"top margin", 400, v.Y - 1, false},
		{"bottom margin", 400, v.Y + v.Height + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Contains(tt.x, tt.y); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v (view %+v)", tt.x, tt.y, got, tt.want, v)
			}
		})
	}
}

func scene(images int) compositor.Scene {
	s := compositor.NewScene()
	for i := 0; i < images; i++ {
		s.Images = append(s.Images, source.Ref("img.png"))
	}
	return s
}

func TestBoxesImageSlot(t *testing.T) {
	v := View{Width: 270, Height: 480} // half scale
	hits := Boxes(scene(1), v)
	if len(hits) != 1 || hits[0].Element != layout.Image0 {
		t.Fatalf("hits = %+v", hits)
	}
	// image_0 sits at (35%, 40%) with a 130px box.
	want := centred(0.35*270, 0.40*480, 65, 65)
	if hits[0].Box != want {
		t.Errorf("box = %+v, want %+v", hits[0].Box, want)
	}
}

func TestBoxesOrder(t *testing.T) {
	s := scene(2)
	s.Content = compositor.Content{Title: "Hello", Price: "$5"}
	hits := Boxes(s, View{Width: 540, Height: 960})

	want := []layout.Element{layout.Price, layout.Title, layout.Image1, layout.Image0}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i, h := range hits {
		if h.Element != want[i] {
			t.Errorf("hits[%d] = %v, want %v", i, h.Element, want[i])
		}
	}
}

func TestBoxesCaptionWidth(t *testing.T) {
	s := scene(0)
	s.Content.Title = "abcd"
	hits := Boxes(s, View{Width: 540, Height: 960})
	b := hits[0].Box
	// 4 runes at 60px.
	if w := b.MaxX - b.MinX; math.Abs(w-4*60*advance) > 1e-9 {
		t.Errorf("width = %v", w)
	}
	if h := b.MaxY - b.MinY; math.Abs(h-60*lineHeight) > 1e-9 {
		t.Errorf("height = %v", h)
	}
}

func TestHitTest(t *testing.T) {
	v := View{Width: 540, Height: 960}
	s := scene(1)
	s.Content.Title = "Title"

	img := s.Layout.Get(layout.Image0)
	cx, cy := img.Position.X/100*540, img.Position.Y/100*960
	half := img.Size.Width / 2

	tests := []struct {
		name   string
		x, y   float64
		want   Target
		wantOK bool
	}{
		{"image body", cx, cy, Target{Element: layout.Image0}, true},
		{"image handle", cx + half, cy + half, Target{Element: layout.Image0, Handle: true}, true},
		{"title", 270, 0.15 * 960, Target{Element: layout.Title}, true},
		{"empty area", 10, 950, Target{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HitTest(s, v, tt.x, tt.y)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("HitTest(%v, %v) = %+v, %v; want %+v, %v", tt.x, tt.y, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestHitTestSkipsEmptySlots(t *testing.T) {
	v := View{Width: 540, Height: 960}
	p := layout.Default(layout.Image1)
	if _, ok := HitTest(scene(1), v, p.Position.X/100*540, p.Position.Y/100*960); ok {
		t.Error("hit an unfilled slot")
	}
}
