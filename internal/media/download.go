package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultVideoMIMEType is assumed when the media host does not declare one.
const DefaultVideoMIMEType = "video/mp4"

// maxVideoBytes bounds a downloaded video held in memory.
const maxVideoBytes = 512 << 20

// Downloader fetches generated media and registers it for local access.
type Downloader struct {
	httpClient *http.Client
	registry   *Registry
	timeout    time.Duration
}

// NewDownloader creates a Downloader. A positive timeout bounds each download
// on top of whatever the client enforces.
func NewDownloader(httpClient *http.Client, registry *Registry, timeout time.Duration) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Downloader{httpClient: httpClient, registry: registry, timeout: timeout}
}

// Download retrieves uri with apiKey added as the "key" query parameter and
// wraps the payload in a registered Reference.
func (d *Downloader) Download(ctx context.Context, uri, apiKey string) (*Reference, error) {
	target, err := AuthenticatedURL(uri, apiKey)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{Err: redactKey(err, apiKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoBytes+1))
	if err != nil {
		return nil, &DownloadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxVideoBytes {
		return nil, &DownloadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("media exceeds %d bytes", maxVideoBytes)}
	}

	mimeType := videoMIMEType(resp.Header.Get("Content-Type"))

	ref := d.registry.Register(data, mimeType)

	log.Info().
		Str("media_id", ref.ID.String()).
		Str("mime_type", mimeType).
		Int64("size_bytes", ref.Size).
		Msg("Generated media downloaded")

	return ref, nil
}

// videoMIMEType keeps a declared video/* type and falls back to video/mp4.
func videoMIMEType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "video/") {
		return DefaultVideoMIMEType
	}
	return mediaType
}

// AuthenticatedURL returns uri with the credential set as the "key" query
// parameter, keeping any existing parameters.
func AuthenticatedURL(uri, apiKey string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid media uri: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid media uri: %q is not absolute", uri)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redactKey keeps the credential out of transport error messages, which embed
// the request URL.
func redactKey(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	urlErr, ok := err.(*url.Error)
	if !ok {
		return err
	}
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		q := u.Query()
		if q.Has("key") {
			q.Set("key", "REDACTED")
			u.RawQuery = q.Encode()
			urlErr.URL = u.String()
		}
	}
	return urlErr
}
