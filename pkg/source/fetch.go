package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/cache"
	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/observability"
)

// DefaultURLTemplate locates release tarballs; {version} is replaced by
// the release version.
const DefaultURLTemplate = "https://github.com/home-assistant/core/archive/{version}.tar.gz"

const (
	cacheKeyType    = "source"
	httpTimeout     = 5 * time.Minute
	maxManifestSize = 1 << 20
)

// URL expands a tarball URL template for version.
func URL(template, version string) string {
	if template == "" {
		template = DefaultURLTemplate
	}
	return strings.ReplaceAll(template, "{version}", version)
}

// Fetcher downloads release tarballs. A failed download is not retried.
type Fetcher struct {
	HTTP      *http.Client  // Defaults to a client with a generous timeout
	UserAgent string        // Sent with every request
	Cache     cache.Cache   // Optional; keeps extracted projects keyed by URL
	TTL       time.Duration // Cache entry lifetime; 0 keeps entries forever
	Refresh   bool          // Skip the cache lookup
	Logger    *log.Logger
}

// Fetch downloads the gzipped tarball at url and extracts the Project from
// it. The archive must contain a single top-level directory, as GitHub
// archives do.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Project, error) {
	p, _, err := f.FetchWithCacheInfo(ctx, url)
	return p, err
}

// FetchWithCacheInfo is [Fetcher.Fetch] that also reports whether the
// project came from the cache.
func (f *Fetcher) FetchWithCacheInfo(ctx context.Context, url string) (*Project, bool, error) {
	if err := errors.ValidateURL(url); err != nil {
		return nil, false, err
	}
	logger := f.Logger
	if logger == nil {
		logger = log.Default()
	}

	key := cache.Key(cacheKeyType, url)
	hooks := observability.Cache()
	if f.Cache != nil && !f.Refresh {
		if p, ok := f.cached(ctx, key, logger); ok {
			logger.Debug("source tree from cache", "url", url, "components", len(p.Manifests))
			hooks.OnCacheHit(ctx, cacheKeyType)
			return p, true, nil
		}
		hooks.OnCacheMiss(ctx, cacheKeyType)
	}

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, false, err
	}
	defer body.Close()

	p, err := ReadTarball(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, errors.Wrap(errors.ErrCodeNetwork, err, "read %s", url)
	}

	if f.Cache != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := f.Cache.Set(ctx, key, data, f.TTL); err != nil {
				logger.Warn("source cache write failed", "err", err)
			} else {
				hooks.OnCacheSet(ctx, cacheKeyType, len(data))
			}
		}
	}
	return p, false, nil
}

func (f *Fetcher) cached(ctx context.Context, key string, logger *log.Logger) (*Project, bool) {
	data, ok, err := f.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("source cache read failed", "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	p := newProject()
	if err := json.Unmarshal(data, p); err != nil {
		logger.Warn("discarding corrupt source cache entry", "err", err)
		return nil, false
	}
	return p, true
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "create request")
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", url)
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))
	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "status %d", code)
	default:
		return errors.New(errors.ErrCodeNetwork, "status %d", code)
	}
}

// ReadTarball extracts a Project from a gzipped tar stream.
func ReadTarball(r io.Reader) (*Project, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	p := newProject()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}

		// <top>/<rest...>
		parts := strings.Split(strings.Trim(path.Clean(hdr.Name), "/"), "/")
		if len(parts) < 4 {
			continue
		}
		rel := strings.Join(parts[1:3], "/")
		domain := parts[3]

		switch rel {
		case componentsDir:
			if len(parts) != 5 || parts[4] != manifestFile || hdr.Typeflag != tar.TypeReg {
				continue
			}
			data, err := io.ReadAll(io.LimitReader(tr, maxManifestSize+1))
			if err != nil {
				return nil, fmt.Errorf("tar: %s: %w", hdr.Name, err)
			}
			if len(data) > maxManifestSize {
				return nil, errors.New(errors.ErrCodeInvalidManifest, "%s exceeds %d bytes", hdr.Name, maxManifestSize)
			}
			p.Manifests[domain] = data
		case testsDir:
			if (len(parts) == 4 && hdr.Typeflag == tar.TypeDir) || len(parts) > 4 {
				p.Tested[domain] = true
			}
		}
	}
	return p, nil
}
