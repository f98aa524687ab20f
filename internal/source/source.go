// Package source resolves input locators to byte streams. A locator is a
// file path, an http(s) URL, or container!entry naming one entry inside a
// zip or tar archive. Gzip containers decompress transparently.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// ErrUnavailable marks a locator that cannot be opened: missing files,
// unreachable hosts, non-2xx responses, absent archive entries. Callers
// test for it with errors.Is.
var ErrUnavailable = errors.New("source unavailable")

// DefaultMaxBytes caps fetched response bodies.
const DefaultMaxBytes = 64 << 20

// DefaultTimeout bounds a whole HTTP fetch.
const DefaultTimeout = 30 * time.Second

// Config controls locator resolution.
type Config struct {
	// Root is joined onto relative file paths. Empty means the process
	// working directory.
	Root string
	// AllowFile permits plain paths and file:// locators. URL-only
	// deployments leave it off.
	AllowFile bool
	// MaxBytes caps HTTP response bodies. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Timeout bounds HTTP fetches. Zero means DefaultTimeout.
	Timeout time.Duration
	// Client overrides the default HTTP client when set.
	Client *http.Client
}

// Resolver opens locators according to its configuration.
type Resolver struct {
	client    *http.Client
	root      string
	allowFile bool
	maxBytes  int64
}

// NewResolver builds a resolver, applying defaults for zero fields.
func NewResolver(cfg Config) *Resolver {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Resolver{
		client:    client,
		root:      cfg.Root,
		allowFile: cfg.AllowFile,
		maxBytes:  maxBytes,
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnavailable}, args...)...)
}

// SplitLocator splits container!entry. Only the first '!' that follows a
// recognized archive suffix splits, so entry names may contain '!' and
// plain locators never do.
func SplitLocator(locator string) (container, entry string, ok bool) {
	for i := 0; i < len(locator); i++ {
		if locator[i] == '!' && archiveKind(locator[:i]) != "" {
			return locator[:i], locator[i+1:], true
		}
	}
	return locator, "", false
}

func archiveKind(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tgz"
	}
	return ""
}

// Open yields the raw bytes behind a locator. Archive containers are
// opened and the named entry returned; a bare .gz container decompresses
// transparently. The caller closes the result.
func (r *Resolver) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if locator == "" {
		return nil, unavailable("empty locator")
	}
	container, entry, isArchive := SplitLocator(locator)
	if isArchive {
		return r.openEntry(ctx, container, entry)
	}
	rc, err := r.fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(locator), ".gz") {
		gz, err := pgzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, unavailable("gunzip %s: %v", locator, err)
		}
		return &readCloser{Reader: gz, closers: []io.Closer{gz, rc}}, nil
	}
	return rc, nil
}

// fetch opens the container itself: URL or file path.
func (r *Resolver) fetch(ctx context.Context, locator string) (io.ReadCloser, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return r.fetchHTTP(ctx, locator)
	}
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, unavailable("parse %s: %v", locator, err)
		}
		return r.openFile(u.Path)
	}
	if i := strings.Index(locator, "://"); i > 0 {
		return nil, unavailable("unsupported scheme in %s", locator)
	}
	return r.openFile(locator)
}

func (r *Resolver) fetchHTTP(ctx context.Context, loc string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, unavailable("create request for %s: %v", loc, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, unavailable("fetch %s: %v", loc, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, unavailable("fetch %s: status %d", loc, resp.StatusCode)
	}
	return &readCloser{
		Reader:  &cappedReader{r: resp.Body, remain: r.maxBytes + 1},
		closers: []io.Closer{resp.Body},
	}, nil
}

func (r *Resolver) openFile(path string) (io.ReadCloser, error) {
	if !r.allowFile {
		return nil, unavailable("file access disabled for %s", path)
	}
	if !filepath.IsAbs(path) && r.root != "" {
		path = filepath.Join(r.root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, unavailable("open %s: %v", path, err)
	}
	return f, nil
}

// readCloser pairs a decoded stream with everything that must close
// underneath it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// cappedReader fails once more than the configured number of bytes have
// been read. remain carries one byte of slack so a body of exactly the
// cap size still terminates with EOF.
type cappedReader struct {
	r      io.Reader
	remain int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remain <= 0 {
		return 0, unavailable("response body exceeds size cap")
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.r.Read(p)
	c.remain -= int64(n)
	return n, err
}
