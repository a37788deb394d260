package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultImageMIMEType is used when neither the server nor content sniffing
// yield an image type.
const DefaultImageMIMEType = "image/jpeg"

// maxImageBytes bounds the source image read into memory.
const maxImageBytes = 20 << 20

// EncodedImage is an image payload in base64 form, ready to be embedded in a
// request body. Data never carries a data-URL prefix.
type EncodedImage struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// NewEncodedImage encodes raw bytes.
func NewEncodedImage(raw []byte, mimeType string) *EncodedImage {
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}
	return &EncodedImage{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeType,
	}
}

// Bytes decodes the payload back to raw image bytes.
func (e *EncodedImage) Bytes() ([]byte, error) {
	if e == nil || e.Data == "" {
		return nil, &DecodeError{Err: errors.New("empty image payload")}
	}
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return raw, nil
}

// ParseDataURL splits a base64 data URL into an EncodedImage. The payload
// after the comma is kept verbatim.
func ParseDataURL(s string) (*EncodedImage, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, &DecodeError{Err: errors.New("not a data URL")}
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, &DecodeError{Err: errors.New("data URL has no payload")}
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, &DecodeError{Err: errors.New("data URL is not base64 encoded")}
	}
	img := &EncodedImage{Data: payload, MIMEType: mediaType}
	if img.MIMEType == "" {
		img.MIMEType = DefaultImageMIMEType
	}
	if _, err := img.Bytes(); err != nil {
		return nil, err
	}
	return img, nil
}

// Fetcher retrieves source images over HTTP.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewFetcher creates a Fetcher. A positive timeout bounds each fetch.
func NewFetcher(httpClient *http.Client, timeout time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{httpClient: httpClient, timeout: timeout}
}

// FetchImage downloads imageURL and returns it base64 encoded. data: URLs are
// decoded in place without a network read.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL string) (*EncodedImage, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return ParseDataURL(imageURL)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: imageURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &FetchError{URL: imageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(raw) == 0 {
		return nil, &DecodeError{Err: errors.New("empty image body")}
	}
	if len(raw) > maxImageBytes {
		return nil, &DecodeError{Err: fmt.Errorf("image exceeds %d bytes", maxImageBytes)}
	}

	mimeType := imageMIMEType(resp.Header.Get("Content-Type"), raw)

	log.Info().
		Str("url", imageURL).
		Str("mime_type", mimeType).
		Int("size_bytes", len(raw)).
		Msg("Source image fetched")

	return NewEncodedImage(raw, mimeType), nil
}

// imageMIMEType prefers the declared content type, then sniffing.
func imageMIMEType(contentType string, raw []byte) string {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
			return mediaType
		}
	}
	if sniffed := http.DetectContentType(raw); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return DefaultImageMIMEType
}
