package layout

import (
	"encoding/json"
	"testing"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		el   Element
		x, y float64
		size float64
	}{
		{Image0, 35, 40, 130},
		{Image1, 65, 40, 130},
		{Image2, 35, 60, 130},
		{Image3, 65, 60, 130},
		{Title, 50, 15, 60},
		{Description, 50, 22, 25},
		{LinkCallout, 50, 70, 20},
		{Price, 50, 80, 30},
		{Beneficiary, 50, 90, 30},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.el.String(), func(t *testing.T) {
			p := s.Get(tt.el)
			if p.Position.X != tt.x || p.Position.Y != tt.y {
				t.Errorf("position = (%v,%v), want (%v,%v)", p.Position.X, p.Position.Y, tt.x, tt.y)
			}
			if got := s.Scalar(tt.el); got != tt.size {
				t.Errorf("size = %v, want %v", got, tt.size)
			}
			if tt.el.IsImage() && p.Size.Height != p.Size.Width {
				t.Errorf("image size not square: %+v", p.Size)
			}
		})
	}
}

func TestResetAfterMutation(t *testing.T) {
	s := New()
	for _, e := range Elements() {
		s.SetPosition(e, -5, 105)
		s.SetScalar(e, 999)
	}
	s.Reset()

	fresh := New()
	for _, e := range Elements() {
		if s.Get(e) != fresh.Get(e) {
			t.Errorf("%s after Reset = %+v, want %+v", e, s.Get(e), fresh.Get(e))
		}
	}
}

func TestModelNeverRejects(t *testing.T) {
	s := New()
	s.SetPosition(Title, 500, -300)
	s.SetScalar(Image2, 1)
	s.SetScalar(Price, 4000)

	if p := s.Get(Title).Position; p.X != 500 || p.Y != -300 {
		t.Errorf("title position = %+v", p)
	}
	if got := s.Get(Image2).Size; got.Width != 1 || got.Height != 1 {
		t.Errorf("image_2 size = %+v", got)
	}
	if got := s.Scalar(Price); got != 4000 {
		t.Errorf("price font size = %v", got)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	s.SetPosition(Image0, 1, 2)

	if snap.Get(Image0).Position.X != 35 {
		t.Error("snapshot changed after mutating the source")
	}
}

func TestSetSizeKeepsKindShape(t *testing.T) {
	s := New()
	s.SetSize(Image1, Size{Width: 200, Height: 10, FontSize: 44})
	if got := s.Get(Image1).Size; got != (Size{Width: 200, Height: 200}) {
		t.Errorf("image size = %+v", got)
	}
	s.SetSize(Title, Size{Width: 200, FontSize: 44})
	if got := s.Get(Title).Size; got != (Size{FontSize: 44}) {
		t.Errorf("text size = %+v", got)
	}
}

func TestParseElement(t *testing.T) {
	tests := []struct {
		in      string
		want    Element
		wantErr bool
	}{
		{"image_3", Image3, false},
		{"title", Title, false},
		{"link", LinkCallout, false},
		{"swaysell", LinkCallout, false},
		{"nonprofit", Beneficiary, false},
		{"image_4", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseElement(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseElement(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseElement(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestJSONKeepsMissingDefaults(t *testing.T) {
	in := `{"title":{"position":{"x":10,"y":20},"size":{"fontSize":44}}}`
	var s State
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p := s.Get(Title); p.Position.X != 10 || p.Size.FontSize != 44 {
		t.Errorf("title = %+v", p)
	}
	if s.Get(Image3) != Default(Image3) {
		t.Errorf("image_3 = %+v, want default", s.Get(Image3))
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("Unmarshal map: %v", err)
	}
	if len(m) != Count {
		t.Errorf("encoded %d elements, want %d", len(m), Count)
	}
}

func TestClampPullsIntoBounds(t *testing.T) {
	in := `{"image_0":{"position":{"x":900,"y":-400},"size":{"width":4000}},` +
		`"title":{"position":{"x":50,"y":50},"size":{"fontSize":2000}},` +
		`"price":{"position":{"x":-20,"y":10},"size":{"fontSize":2}},` +
		`"image_1":{"position":{"x":10,"y":10},"size":{"width":1}}}`
	var s State
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	s.Clamp()

	tests := []struct {
		e    Element
		want Placement
	}{
		{Image0, Placement{Position{PositionMax, PositionMin}, Size{Width: ImageSizeMax, Height: ImageSizeMax}}},
		{Image1, Placement{Position{10, 10}, Size{Width: ImageSizeMin, Height: ImageSizeMin}}},
		{Title, Placement{Position{50, 50}, Size{FontSize: FontSizeMax}}},
		{Price, Placement{Position{PositionMin, 10}, Size{FontSize: FontSizeMin}}},
		{Image3, Default(Image3)},
	}
	for _, tt := range tests {
		t.Run(tt.e.String(), func(t *testing.T) {
			if got := s.Get(tt.e); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
