// scenefile.go — Load scene.json files and zipped story bundles.
package compositor

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xob0t/StoryStencil/pkg/source"
)

// SceneFileName is the scene document inside a bundle.
const SceneFileName = "scene.json"

// Meta describes a scene file.
type Meta struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

// SceneFile is the on-disk form of a scene.
type SceneFile struct {
	Meta Meta `json:"meta"`
	Scene
}

// Load reads a scene from a .json file or a .zip bundle. The returned
// cleanup removes anything extracted and must always be called.
func Load(path string) (*SceneFile, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".story":
		return LoadBundle(path)
	}
	sf, err := LoadSceneFile(path)
	return sf, func() {}, err
}

// LoadSceneFile parses a scene JSON file. Relative image paths resolve
// against the file's directory.
func LoadSceneFile(path string) (*SceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	sf, err := ParseScene(data)
	if err != nil {
		return nil, err
	}
	resolveRefs(&sf.Scene, filepath.Dir(path))
	return sf, nil
}

// ParseScene decodes a scene document. Omitted fields keep NewScene defaults
// and the layout is clamped to the editor's bounds.
func ParseScene(data []byte) (*SceneFile, error) {
	sf := SceneFile{Scene: NewScene()}
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scene JSON: %w", err)
	}
	mode, err := ParseMode(string(sf.Mode))
	if err != nil {
		return nil, err
	}
	sf.Mode = mode
	sf.Layout.Clamp()
	if sf.Font == "" {
		sf.Font = StyleSans
	}
	if sf.Theme.TextColor == "" {
		sf.Theme = NewScene().Theme
	}
	return &sf, nil
}

// LoadBundle opens a zip holding scene.json and its images, extracts it to a
// temp directory, and resolves image paths into it.
func LoadBundle(path string) (*SceneFile, func(), error) {
	noop := func() {}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, noop, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	tmpDir, err := os.MkdirTemp("", "storybundle-*")
	if err != nil {
		return nil, noop, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := extractZip(&r.Reader, tmpDir); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("extract %s: %w", path, err)
	}

	sf, err := LoadSceneFile(filepath.Join(tmpDir, SceneFileName))
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return sf, cleanup, nil
}

// resolveRefs makes relative file refs absolute using baseDir.
func resolveRefs(s *Scene, baseDir string) {
	resolve := func(r source.Ref) source.Ref {
		if r == "" || r.IsDataURL() || r.IsRemote() || filepath.IsAbs(string(r)) {
			return r
		}
		if _, ok := r.AssetID(); ok {
			return r
		}
		return source.Ref(filepath.Join(baseDir, string(r)))
	}

	s.Background = resolve(s.Background)
	for i := range s.Images {
		s.Images[i] = resolve(s.Images[i])
	}
}

// relativeRefs rewrites file refs under baseDir relative to it.
func relativeRefs(s *Scene, baseDir string) {
	rel := func(r source.Ref) source.Ref {
		if r == "" || r.IsDataURL() || r.IsRemote() {
			return r
		}
		if _, ok := r.AssetID(); ok {
			return r
		}
		abs, err := filepath.Abs(string(r))
		if err != nil {
			return r
		}
		p, err := filepath.Rel(baseDir, abs)
		if err != nil || strings.HasPrefix(p, "..") {
			return r
		}
		return source.Ref(filepath.ToSlash(p))
	}

	s.Background = rel(s.Background)
	for i := range s.Images {
		s.Images[i] = rel(s.Images[i])
	}
}

// Save writes sf to path as indented JSON. File refs inside the scene's
// directory are stored relative to it.
func (sf *SceneFile) Save(path string) error {
	out := *sf
	out.Images = slices.Clone(sf.Images)
	if dir, err := filepath.Abs(filepath.Dir(path)); err == nil {
		relativeRefs(&out.Scene, dir)
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}

// extractZip extracts all files from a zip reader into destDir.
func extractZip(r *zip.Reader, destDir string) error {
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)

		// Guard against zip slip.
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
