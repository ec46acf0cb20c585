package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/xob0t/StoryStencil/pkg/config"
	"github.com/xob0t/StoryStencil/pkg/errors"
	"github.com/xob0t/StoryStencil/pkg/export"
	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
	"github.com/xob0t/StoryStencil/pkg/session"
	"github.com/xob0t/StoryStencil/pkg/source"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Generation.Backend = "static"
	cfg.Generation.StaticFrom = "#000000"
	cfg.Generation.StaticTo = ""
	cfg.Export.OutputDir = t.TempDir()
	cfg.Export.ClipboardCommand = []string{"storystencil-test-no-clipboard"}

	tk, err := pipeline.Build(context.Background(), cfg, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	s := New(tk)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.sessions.Close()
		tk.Close()
	})
	return s, ts
}

func pngFile(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func upload(t *testing.T, url string, n int) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i := 0; i < n; i++ {
		fw, _ := mw.CreateFormFile("files", "photo.png")
		fw.Write(pngFile(t, color.NRGBA{255, 0, 0, 255}))
	}
	mw.Close()
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeView(t *testing.T, resp *http.Response) session.View {
	t.Helper()
	var v session.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var e errorBody
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	return e
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return ts.URL + "/api/sessions/" + decodeView(t, resp).ID
}

func TestSingleWorkflow(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	if resp := upload(t, base+"/uploads", 2); resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	resp := upload(t, base+"/uploads", 2)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-limit upload status = %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); !strings.HasPrefix(e.Error, "Maximum 3 images allowed for single workflow") {
		t.Errorf("error = %q", e.Error)
	}

	resp = do(t, http.MethodPost, base+"/generate", nil)
	if e := decodeError(t, resp); resp.StatusCode != http.StatusBadRequest || e.Error != session.MsgPrice {
		t.Fatalf("generate without price = %d %q", resp.StatusCode, e.Error)
	}

	resp = do(t, http.MethodPut, base+"/content", map[string]any{
		"content": map[string]string{"title": "Jacket", "price": "$45"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("content status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, base+"/generate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	v := decodeView(t, resp)
	if _, ok := v.Background.AssetID(); !ok {
		t.Errorf("background %q not stored locally", v.Background)
	}
	if v.Theme.TextColor != "#ffffff" {
		t.Errorf("theme on black background = %+v", v.Theme)
	}

	resp = do(t, http.MethodGet, base+"/render?link=false", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("render = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 540 || b.Dy() != 960 {
		t.Errorf("render size = %v", b)
	}

	resp = do(t, http.MethodGet, base+"/download?platform=facebook&link=true", nil)
	cd := resp.Header.Get("Content-Disposition")
	if !strings.Contains(cd, `filename="facebook-story-with-link-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	resp = do(t, http.MethodGet, base+"/share?platform=instagram", nil)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `"instagram-story.png"`) {
		t.Errorf("share Content-Disposition = %q", cd)
	}

	resp = do(t, http.MethodPost, base+"/export", map[string]any{"platform": "instagram", "includeLink": false})
	var d export.Delivery
	json.NewDecoder(resp.Body).Decode(&d)
	if resp.StatusCode != http.StatusOK || d.Channel != "download" {
		t.Errorf("export = %d %+v", resp.StatusCode, d)
	}
	if !strings.Contains(d.Location, "clean-instagram-story-") {
		t.Errorf("export location = %q", d.Location)
	}
}

func TestMultipleWorkflowSelection(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	if resp := do(t, http.MethodPut, base+"/mode", map[string]string{"mode": "multiple"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("mode status = %d", resp.StatusCode)
	}
	upload(t, base+"/uploads", 5)
	for _, i := range []string{"4", "0", "2"} {
		do(t, http.MethodPost, base+"/selection/"+i, nil)
	}
	v := decodeView(t, do(t, http.MethodDelete, base+"/uploads/1", nil))
	if len(v.Uploads) != 4 {
		t.Fatalf("uploads = %d", len(v.Uploads))
	}
	want := []int{3, 0, 1}
	if len(v.Selected) != 3 || v.Selected[0] != want[0] || v.Selected[1] != want[1] || v.Selected[2] != want[2] {
		t.Errorf("selected = %v, want %v", v.Selected, want)
	}

	resp := do(t, http.MethodPost, base+"/generate", nil)
	if e := decodeError(t, resp); e.Error != session.MsgPriceRange {
		t.Errorf("generate error = %q", e.Error)
	}
}

func TestLayoutEndpoints(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	l := layout.New()
	l.SetPosition(layout.Title, 10, 20)
	v := decodeView(t, do(t, http.MethodPut, base+"/layout", l))
	if p := v.Layout.Get(layout.Title).Position; p.X != 10 || p.Y != 20 {
		t.Errorf("title = %+v", p)
	}
	v = decodeView(t, do(t, http.MethodDelete, base+"/layout", nil))
	if v.Layout.Get(layout.Title) != layout.Default(layout.Title) {
		t.Error("layout not reset")
	}
}

func TestSetLayoutClampsOutOfBounds(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)

	resp := do(t, http.MethodPut, base+"/layout", map[string]any{
		"image_0": map[string]any{"position": map[string]float64{"x": 900, "y": -400}, "size": map[string]float64{"width": 4000}},
		"title":   map[string]any{"position": map[string]float64{"x": 50, "y": 15}, "size": map[string]float64{"fontSize": 2000}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	v := decodeView(t, resp)
	img := v.Layout.Get(layout.Image0)
	if img.Position.X != layout.PositionMax || img.Position.Y != layout.PositionMin {
		t.Errorf("image_0 position = %+v", img.Position)
	}
	if img.Size.Width != layout.ImageSizeMax || img.Size.Height != layout.ImageSizeMax {
		t.Errorf("image_0 size = %+v", img.Size)
	}
	if fs := v.Layout.Get(layout.Title).Size.FontSize; fs != layout.FontSizeMax {
		t.Errorf("title fontSize = %v", fs)
	}
}

func TestBackgroundRefPolicy(t *testing.T) {
	_, ts := newTestServer(t)
	mine := createSession(t, ts)
	other := createSession(t, ts)

	upload(t, other+"/uploads", 1)
	foreign := decodeView(t, do(t, http.MethodGet, other, nil)).Uploads[0].AssetID

	tests := []struct {
		name string
		ref  string
		want int
	}{
		{"host path", "/etc/private.png", http.StatusBadRequest},
		{"relative path", "private.png", http.StatusBadRequest},
		{"file url", "file:///etc/private.png", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
		{"foreign asset", "asset:" + foreign, http.StatusNotFound},
		{"data url", "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngFile(t, color.White)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, mine+"/background", map[string]string{"ref": tt.ref})
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	resp := do(t, http.MethodPost, ts.URL+"/api/analyze", map[string]string{"ref": "/etc/private.png"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("analyze host path status = %d", resp.StatusCode)
	}
}

func TestAssetsAreSessionScoped(t *testing.T) {
	_, ts := newTestServer(t)
	mine := createSession(t, ts)
	other := createSession(t, ts)

	upload(t, mine+"/uploads", 1)
	id := decodeView(t, do(t, http.MethodGet, mine, nil)).Uploads[0].AssetID

	resp := do(t, http.MethodGet, mine+"/assets", nil)
	var list []source.AssetInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != id || !strings.HasSuffix(list[0].URL, "/assets/"+id) {
		t.Errorf("own assets = %+v", list)
	}
	if resp := do(t, http.MethodGet, mine+"/assets/"+id, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("own asset status = %d", resp.StatusCode)
	}

	if resp := do(t, http.MethodGet, other+"/assets/"+id, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign asset status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, other+"/assets", nil)
	list = nil
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 0 {
		t.Errorf("other session lists %+v", list)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/api/assets", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("global listing status = %d", resp.StatusCode)
	}
}

func TestBackgroundUploadsDoNotAccumulate(t *testing.T) {
	s, ts := newTestServer(t)
	baseline := len(s.tk.Store.List())
	base := createSession(t, ts)

	for i := 0; i < 5; i++ {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, _ := mw.CreateFormFile("file", "bg.png")
		fw.Write(pngFile(t, color.NRGBA{0, 0, byte(i * 40), 255}))
		mw.Close()
		resp, err := http.Post(base+"/background", mw.FormDataContentType(), &body)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("background %d status = %d", i, resp.StatusCode)
		}
	}
	if n := len(s.tk.Store.List()); n != baseline+1 {
		t.Errorf("store holds %d assets, want %d", n, baseline+1)
	}

	if resp := do(t, http.MethodDelete, base, nil); resp.StatusCode >= 300 {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if n := len(s.tk.Store.List()); n != baseline {
		t.Errorf("store holds %d assets after delete, want %d", n, baseline)
	}
}

func TestBrowserURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8080": "http://127.0.0.1:8080",
		":8080":          "http://localhost:8080",
		"0.0.0.0:9000":   "http://localhost:9000",
		"[::]:9000":      "http://localhost:9000",
	}
	for addr, want := range tests {
		if got := browserURL(addr); got != want {
			t.Errorf("browserURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/sessions/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.Code != errors.ErrCodeNotFound {
		t.Errorf("code = %q", e.Code)
	}
}

func TestLiveDrag(t *testing.T) {
	_, ts := newTestServer(t)
	base := createSession(t, ts)
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/live"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first liveUpdate
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}

	rect := interaction.Rect{Width: 540, Height: 960}
	send := func(typ string, x, y float64) {
		t.Helper()
		msg := map[string]any{"type": typ, "element": "price", "clientX": x, "clientY": y, "container": rect}
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
	}

	send(msgDrag, 0, 0)
	var started liveUpdate
	if err := conn.ReadJSON(&started); err != nil {
		t.Fatal(err)
	}
	if started.Gesture.Mode != interaction.Dragging {
		t.Errorf("gesture = %v", started.Gesture.Mode)
	}

	send(msgMove, 135, 240)
	var moved liveUpdate
	if err := conn.ReadJSON(&moved); err != nil {
		t.Fatal(err)
	}
	if p := moved.Layout.Get(layout.Price).Position; p.X != 25 || p.Y != 25 {
		t.Errorf("price = %+v, want 25,25", p)
	}
	if moved.Revision <= first.Revision {
		t.Errorf("revision %d not after %d", moved.Revision, first.Revision)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeRenderBusy, http.StatusConflict},
		{errors.ErrCodeDecode, http.StatusUnprocessableEntity},
		{errors.ErrCodeGeneration, http.StatusBadGateway},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
