package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cohortdash/internal/config"
	appLog "cohortdash/internal/log"
)

// FetchResult contains the resolved ICS body and which source produced it.
type FetchResult struct {
	Body []byte
	// Source is "remote", "file" or "self".
	Source string
	// FromCache is true when the remote branch reused a cached body.
	FromCache bool
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher resolves the ICS body by source priority: a configured remote
// URL, then the local file, then an HTTP self-fetch against the base
// URL. Remote fetches honor ETag/Last-Modified via a disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string

	url     string
	file    string
	baseURL string
}

// NewFetcher creates a Fetcher from the calendar config.
func NewFetcher(cfg config.CalendarConfig) *Fetcher {
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		url:      cfg.URL,
		file:     cfg.File,
		baseURL:  cfg.BaseURL,
	}
}

// Fetch resolves the ICS body. The call fails only when every configured
// source fails.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	var errs []error

	if f.url != "" {
		res, err := f.fetchRemote(ctx, f.url)
		if err == nil {
			res.Source = "remote"
			return res, nil
		}
		errs = append(errs, err)
		appLog.Error("ics remote fetch failed, trying local file", err, "url", redactURL(f.url))
	}

	if f.file != "" {
		body, err := os.ReadFile(f.file)
		if err == nil && len(body) > 0 {
			appLog.Info("ics read from local file", "path", f.file, "bytes", len(body))
			return FetchResult{Body: body, Source: "file"}, nil
		}
		if err == nil {
			err = errors.New("local ICS file is empty")
		}
		errs = append(errs, err)
	}

	if f.baseURL != "" {
		selfURL := strings.TrimRight(f.baseURL, "/") + "/calendar.ics"
		res, err := f.fetchRemote(ctx, selfURL)
		if err == nil {
			res.Source = "self"
			return res, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return FetchResult{}, errors.New("no ICS source configured")
	}
	return FetchResult{}, errors.Join(errs...)
}

// fetchRemote fetches one URL, honoring ETag and Last-Modified through
// the disk cache keyed by a hash of the URL.
func (f *Fetcher) fetchRemote(ctx context.Context, url string) (FetchResult, error) {
	cachePath, err := f.cachePathForURL(url)
	if err != nil {
		return FetchResult{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if len(cachedBody) > 0 {
			appLog.Error("ics fetch network error, using cached body", err, "url", redactURL(url))
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "url", redactURL(url))
		}

		appLog.Info("ics fetch success", "url", redactURL(url), "bytes", len(body))
		return FetchResult{Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "url", redactURL(url))
		return FetchResult{Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(url string) (string, error) {
	if url == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(url))
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(f.cacheDir, dir), nil
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides the path and query of an ICS URL for logging purposes.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
