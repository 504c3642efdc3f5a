// Package download fetches installers over HTTP(S) into a local file with
// coarse percentage progress, a single redirect hop and bounded retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"zortoshub/internal/logger"
)

// Config contains the configuration for the downloader.
type Config struct {
	// HTTPClient performs the requests. Its redirect policy is replaced:
	// the downloader follows exactly one redirect itself.
	HTTPClient *http.Client
	// ChunkSize is the read buffer size. It only changes progress granularity.
	ChunkSize int
	// ProgressStep is the percentage interval between progress callbacks.
	ProgressStep int
	// MaxAttempts bounds whole-transfer attempts on network failures.
	MaxAttempts int
	// RetryDelay is waited between attempts. Zero retries immediately.
	RetryDelay time.Duration
	// InactivityTimeout aborts an attempt that receives no data for this long.
	// Zero disables it.
	InactivityTimeout time.Duration
	// UserAgent is sent with every request when non-empty.
	UserAgent string
	// Presigner resolves s3:// sources. When nil, one is created on demand for S3Region.
	Presigner Presigner
	S3Region  string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		HTTPClient:        &http.Client{},
		ChunkSize:         32 * 1024,
		ProgressStep:      10,
		MaxAttempts:       3,
		RetryDelay:        time.Second,
		InactivityTimeout: 60 * time.Second,
		UserAgent:         "zortoshub",
		S3Region:          "us-east-1",
	}
}

// ProgressFunc receives the completed percentage, in [0,100], never decreasing.
// It is not called when the server does not announce a size.
type ProgressFunc func(percent int)

// Result describes a completed download.
type Result struct {
	// URL is the source as requested; FinalURL is where the bytes came from.
	URL      string
	FinalURL string
	Path     string
	// Size is the announced length, 0 when unknown.
	Size  int64
	Bytes int64
	// Digest is the xxhash64 of the file contents.
	Digest   uint64
	Attempts int
}

// Downloader fetches one file at a time.
type Downloader struct {
	cfg    Config
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Downloader. Unset HTTPClient, ChunkSize, ProgressStep,
// MaxAttempts and S3Region fall back to DefaultConfig. A zero RetryDelay
// retries immediately and a zero InactivityTimeout disables the watchdog.
func New(cfg Config) *Downloader {
	def := DefaultConfig()
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ProgressStep <= 0 || cfg.ProgressStep > 100 {
		cfg.ProgressStep = def.ProgressStep
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.S3Region == "" {
		cfg.S3Region = def.S3Region
	}

	client := *cfg.HTTPClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Downloader{cfg: cfg, client: &client, sleep: sleepContext}
}

// task is the state of one Fetch call, kept across retries.
type task struct {
	url       string
	finalURL  string
	dest      string
	size      int64
	bytes     int64
	resumable bool
	hash      *xxhash.Digest
}

// Fetch downloads rawURL to destPath, creating the parent directory first.
// A partial file may remain on failure.
func (d *Downloader) Fetch(ctx context.Context, rawURL, destPath string, onProgress ProgressFunc) (*Result, error) {
	source, err := d.resolveSource(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, &Error{Kind: ErrIO, URL: rawURL, Err: err}
	}

	t := &task{url: source, finalURL: source, dest: destPath, hash: xxhash.New()}
	rep := &reporter{step: d.cfg.ProgressStep, fn: onProgress, last: -1}

	for attempt := 1; ; attempt++ {
		err := d.transfer(ctx, t, rep)
		if err == nil {
			rep.update(t.bytes, t.size)
			logger.Debug("[DEBUG] Downloaded %d bytes from %s to %s\n", t.bytes, t.finalURL, destPath)
			return &Result{
				URL:      rawURL,
				FinalURL: t.finalURL,
				Path:     destPath,
				Size:     t.size,
				Bytes:    t.bytes,
				Digest:   t.hash.Sum64(),
				Attempts: attempt,
			}, nil
		}
		if !isTransient(err) || attempt >= d.cfg.MaxAttempts || ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("[WARN] Download interrupted (%v), retrying (%d/%d)...\n", err, attempt, d.cfg.MaxAttempts)
		if serr := d.sleep(ctx, d.cfg.RetryDelay); serr != nil {
			return nil, err
		}
	}
}

func (d *Downloader) resolveSource(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &Error{Kind: ErrNetwork, URL: rawURL, Err: err}
	}
	switch u.Scheme {
	case "http", "https":
		return rawURL, nil
	case "s3":
		p := d.cfg.Presigner
		if p == nil {
			s3p, err := NewS3Presigner(ctx, d.cfg.S3Region)
			if err != nil {
				return "", &Error{Kind: ErrNetwork, URL: rawURL, Err: err}
			}
			d.cfg.Presigner = s3p
			p = s3p
		}
		signed, err := p.Presign(ctx, rawURL)
		if err != nil {
			return "", &Error{Kind: ErrNetwork, URL: rawURL, Err: err}
		}
		return signed, nil
	default:
		return "", &Error{Kind: ErrNetwork, URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
}

// transfer runs one attempt. It resumes with a Range request when a previous
// attempt left bytes behind and the server advertised byte ranges.
func (d *Downloader) transfer(ctx context.Context, t *task, rep *reporter) error {
	ctx, wd := newWatchdog(ctx, d.cfg.InactivityTimeout)
	defer wd.Stop()

	offset := int64(0)
	if t.resumable && t.bytes > 0 {
		offset = t.bytes
	}

	resp, err := d.get(ctx, t, offset)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("[DEBUG] Failed to close response body: %v\n", cerr)
		}
	}()

	flags := os.O_WRONLY | os.O_CREATE
	if offset > 0 && resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
		if total := contentRangeTotal(resp.Header.Get("Content-Range")); total > 0 {
			t.size = total
		} else if resp.ContentLength > 0 {
			t.size = offset + resp.ContentLength
		}
		logger.Debug("[DEBUG] Resuming %s at byte %d\n", t.finalURL, offset)
	} else {
		flags |= os.O_TRUNC
		t.bytes = 0
		t.hash.Reset()
		t.size = max(resp.ContentLength, 0)
	}
	t.resumable = resp.Header.Get("Accept-Ranges") == "bytes" && t.size > 0

	out, err := os.OpenFile(t.dest, flags, 0644)
	if err != nil {
		return &Error{Kind: ErrIO, URL: t.url, Err: err}
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Error("[ERROR] Failed to close %s: %v\n", t.dest, cerr)
		}
	}()

	buf := make([]byte, d.cfg.ChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return &Error{Kind: ErrIO, URL: t.url, Err: werr}
			}
			_, _ = t.hash.Write(buf[:n])
			t.bytes += int64(n)
			wd.Kick()
			rep.update(t.bytes, t.size)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if cause := context.Cause(ctx); cause != nil {
				rerr = fmt.Errorf("%w (%v)", rerr, cause)
			}
			return &Error{Kind: ErrNetwork, URL: t.url, Err: rerr}
		}
	}

	if t.size > 0 && t.bytes != t.size {
		return &Error{Kind: ErrNetwork, URL: t.url,
			Err: fmt.Errorf("received %d of %d bytes", t.bytes, t.size)}
	}
	return nil
}

// get issues the request and follows at most one redirect.
func (d *Downloader) get(ctx context.Context, t *task, offset int64) (*http.Response, error) {
	resp, err := d.do(ctx, t.url, offset)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp.StatusCode) {
		t.finalURL = t.url
		return checkStatus(resp, t.url)
	}

	location := resp.Header.Get("Location")
	discard(resp)
	if location == "" {
		return nil, &Error{Kind: ErrHTTPStatus, URL: t.url, StatusCode: resp.StatusCode,
			Err: errors.New("redirect without Location header")}
	}
	next, err := ResolveRedirect(t.url, location)
	if err != nil {
		return nil, &Error{Kind: ErrHTTPStatus, URL: t.url, StatusCode: resp.StatusCode, Err: err}
	}
	logger.Debug("[DEBUG] %s redirected (%d) to %s\n", t.url, resp.StatusCode, next)

	resp, err = d.do(ctx, next, offset)
	if err != nil {
		return nil, err
	}
	if isRedirect(resp.StatusCode) {
		discard(resp)
		return nil, &Error{Kind: ErrTooManyRedirects, URL: next, StatusCode: resp.StatusCode}
	}
	t.finalURL = next
	return checkStatus(resp, next)
}

func (d *Downloader) do(ctx context.Context, target string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: target, Err: err}
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: target, Err: err}
	}
	return resp, nil
}

func checkStatus(resp *http.Response, target string) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	discard(resp)
	return nil, &Error{Kind: ErrHTTPStatus, URL: target, StatusCode: resp.StatusCode}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// ResolveRedirect returns the URL a Location header points to. Absolute
// targets are used verbatim; anything else is resolved against base, so
// "/c" on https://host/a/b becomes https://host/c.
func ResolveRedirect(base, location string) (string, error) {
	loc, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", location, err)
	}
	if loc.IsAbs() {
		return loc.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	return b.ResolveReference(loc).String(), nil
}

// contentRangeTotal extracts the complete length from "bytes 100-199/200".
func contentRangeTotal(h string) int64 {
	_, total, ok := strings.Cut(h, "/")
	if !ok || total == "*" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// reporter throttles progress to ProgressStep boundaries and keeps it
// monotonic even when a retry restarts the transfer from zero.
type reporter struct {
	step int
	fn   ProgressFunc
	last int
}

func (r *reporter) update(done, size int64) {
	if r.fn == nil || size <= 0 {
		return
	}
	pct := int(done * 100 / size)
	if pct > 100 {
		pct = 100
	}
	if pct < 100 {
		pct = pct / r.step * r.step
	}
	if pct > r.last {
		r.last = pct
		r.fn(pct)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
