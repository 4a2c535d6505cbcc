package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/compkgs/pkg/cache"
	"github.com/matzehuels/compkgs/pkg/errors"
)

type tarEntry struct {
	name string
	body string
	dir  bool
}

func makeTarball(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr.Typeflag, hdr.Mode, hdr.Size = tar.TypeDir, 0755, 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var releaseEntries = []tarEntry{
	{name: "core-2024.1.0/", dir: true},
	{name: "core-2024.1.0/homeassistant/components/", dir: true},
	{name: "core-2024.1.0/homeassistant/components/__init__.py", body: ""},
	{name: "core-2024.1.0/homeassistant/components/hue/", dir: true},
	{name: "core-2024.1.0/homeassistant/components/hue/manifest.json", body: `{"domain": "hue", "requirements": ["aiohue==4.7.1"]}`},
	{name: "core-2024.1.0/homeassistant/components/hue/translations/manifest.json", body: `{}`},
	{name: "core-2024.1.0/homeassistant/components/http/manifest.json", body: `{"domain": "http"}`},
	{name: "core-2024.1.0/tests/components/", dir: true},
	{name: "core-2024.1.0/tests/components/conftest.py", body: ""},
	{name: "core-2024.1.0/tests/components/hue/", dir: true},
	{name: "core-2024.1.0/tests/components/zha/test_init.py", body: ""},
}

func TestReadTarball(t *testing.T) {
	p, err := ReadTarball(bytes.NewReader(makeTarball(t, releaseEntries)))
	if err != nil {
		t.Fatalf("ReadTarball: %v", err)
	}
	if got := len(p.Manifests); got != 2 {
		t.Errorf("manifests = %d, want 2", got)
	}
	if string(p.Manifests["hue"]) != `{"domain": "hue", "requirements": ["aiohue==4.7.1"]}` {
		t.Errorf("hue manifest = %s", p.Manifests["hue"])
	}
	if got := p.TestedDomains(); !slices.Equal(got, []string{"hue", "zha"}) {
		t.Errorf("tested = %v, want [hue zha]", got)
	}

	comps, err := p.Components()
	if err != nil {
		t.Fatal(err)
	}
	if len(comps) != 2 || comps[0].Domain != "http" || comps[1].Domain != "hue" {
		t.Errorf("components = %+v", comps)
	}
}

func TestReadTarball_NotGzip(t *testing.T) {
	if _, err := ReadTarball(bytes.NewReader([]byte("plain"))); err == nil {
		t.Error("ReadTarball accepted non-gzip input")
	}
}

func TestFetcher(t *testing.T) {
	archive := makeTarball(t, releaseEntries)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/archive/2024.1.0.tar.gz" {
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "compkgs/test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write(archive)
	}))
	defer srv.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &Fetcher{UserAgent: "compkgs/test", Cache: fc}
	url := URL(srv.URL+"/archive/{version}.tar.gz", "2024.1.0")

	for i := 0; i < 2; i++ {
		p, err := f.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(p.Manifests) != 2 || !p.Tested["hue"] {
			t.Errorf("project = %+v", p)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (second fetch cached)", hits.Load())
	}

	f.Refresh = true
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("refresh did not bypass cache, hits = %d", hits.Load())
	}

	_, err = f.Fetch(context.Background(), URL(srv.URL+"/archive/{version}.tar.gz", "0.0.0"))
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Fetch missing release = %v, want NOT_FOUND", err)
	}
}

func TestFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := &Fetcher{}
	if _, err := f.Fetch(context.Background(), srv.URL+"/x.tar.gz"); !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("Fetch = %v, want NETWORK_ERROR", err)
	}
	if _, err := f.Fetch(context.Background(), "ftp://example.org/x.tar.gz"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Fetch(ftp) = %v, want INVALID_INPUT", err)
	}
}

func TestURL(t *testing.T) {
	if got, want := URL("", "2024.1.0"), "https://github.com/home-assistant/core/archive/2024.1.0.tar.gz"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "homeassistant/components/hue/manifest.json"), `{"domain": "hue"}`)
	writeFile(t, filepath.Join(root, "homeassistant/components/sensor/manifest.json"), `{"domain": "sensor"}`)
	writeFile(t, filepath.Join(root, "homeassistant/components/__init__.py"), "")
	writeFile(t, filepath.Join(root, "homeassistant/components/broken/strings.json"), "{}")
	writeFile(t, filepath.Join(root, "tests/components/hue/test_init.py"), "")
	writeFile(t, filepath.Join(root, "tests/components/conftest.py"), "")

	p, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(p.Manifests) != 2 {
		t.Errorf("manifests = %v", p.Manifests)
	}
	if got := p.TestedDomains(); !slices.Equal(got, []string{"hue"}) {
		t.Errorf("tested = %v", got)
	}
}

func TestLoadDir_NotSourceTree(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadDir(empty) = %v, want FILE_NOT_FOUND", err)
	}
}

func TestReadPinnedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.nix")
	writeFile(t, path, "{ lib }:\nlet\n  hassVersion = \"2024.1.0b3\";\nin\n")

	v, err := ReadPinnedVersion(path, "")
	if err != nil {
		t.Fatalf("ReadPinnedVersion: %v", err)
	}
	if v != "2024.1.0b3" {
		t.Errorf("version = %q, want 2024.1.0b3", v)
	}

	if _, err := ReadPinnedVersion(path, `version = "(.*)";`); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("no match = %v, want NOT_FOUND", err)
	}
	if _, err := ReadPinnedVersion(path, `hassVersion`); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("no capture group = %v, want INVALID_CONFIG", err)
	}
	if _, err := ReadPinnedVersion(filepath.Join(t.TempDir(), "nope.nix"), ""); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file = %v, want FILE_NOT_FOUND", err)
	}
}
