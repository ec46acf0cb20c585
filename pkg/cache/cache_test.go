package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "missing"); hit {
		t.Error("hit on empty cache")
	}

	if err := c.Set(ctx, "png", []byte{0x89, 'P', 'N', 'G'}, 0); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "png")
	if err != nil || !hit || string(data) != "\x89PNG" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "png"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "png"); hit {
		t.Error("hit after Delete")
	}
	if err := c.Delete(ctx, "png"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := fc.(*FileCache)

	c.Set(ctx, "k", []byte("v"), 0)
	if err := os.WriteFile(c.path("k"), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v", hit, err)
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("corrupt entry not removed")
	}
}

func TestArtifactKey(t *testing.T) {
	png := ArtifactOpts{Format: "png", Width: 540, Height: 960}
	k1 := ArtifactKey("scene-a", png)
	k2 := ArtifactKey("scene-a", png)
	if k1 != k2 {
		t.Error("ArtifactKey not deterministic")
	}

	tests := []struct {
		name  string
		scene string
		opts  ArtifactOpts
	}{
		{"other scene", "scene-b", png},
		{"other format", "scene-a", ArtifactOpts{Format: "webp", Width: 540, Height: 960}},
		{"other size", "scene-a", ArtifactOpts{Format: "png", Width: 1080, Height: 1920}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ArtifactKey(tt.scene, tt.opts) == k1 {
				t.Error("distinct inputs share a key")
			}
		})
	}
	if len(Hash([]byte("x"))) != 64 {
		t.Error("Hash length != 64")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		opts    Options
		wantErr bool
	}{
		{Options{}, false},
		{Options{Backend: BackendNone}, false},
		{Options{Backend: BackendFile, Dir: t.TempDir()}, false},
		{Options{Backend: "memcached"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.opts.Backend, func(t *testing.T) {
			c, err := Open(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%+v) err = %v", tt.opts, err)
			}
			if c != nil {
				c.Close()
			}
		})
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("STORYSTENCIL_TEST_REDIS")
	if addr == "" {
		t.Skip("STORYSTENCIL_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	if _, hit, err := c.Get(ctx, key); hit || err != nil {
		t.Fatalf("Get before Set: hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if data, hit, err := c.Get(ctx, key); !hit || err != nil || string(data) != "v" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}
	c.Delete(ctx, key)
}
