package veo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/snappy-loop/animator/internal/media"
	"google.golang.org/genai"
)

// Kind classifies generation failures.
type Kind string

const (
	KindNetwork              Kind = "network_error"
	KindDecode               Kind = "decode_error"
	KindGenerationIncomplete Kind = "generation_incomplete"
	KindInvalidCredential    Kind = "invalid_credential"
	KindTimeout              Kind = "timeout"
	KindCanceled             Kind = "canceled"
	KindUnknown              Kind = "unknown_error"
)

var (
	// ErrNoOutput is wrapped when a finished operation produced no media.
	ErrNoOutput = errors.New("operation finished but produced no output")
	// ErrNoCredential is wrapped when no API key is available at call time.
	ErrNoCredential = errors.New("no API key available")
)

// invalidCredentialMarkers are message fragments the Gemini API uses when it
// rejects the key rather than the request.
var invalidCredentialMarkers = []string{
	"entity was not found",
	"api key not valid",
	"api_key_invalid",
}

// Error is returned by Client.Generate for every failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, KindUnknown when err did not come
// from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInvalidCredential reports whether err means the API key was rejected. It
// is the only place that interprets remote error contents.
func IsInvalidCredential(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindInvalidCredential {
		return true
	}
	if code, status, ok := apiErrorStatus(err); ok {
		if code == http.StatusUnauthorized || status == "UNAUTHENTICATED" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range invalidCredentialMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsGenerationIncomplete reports whether the operation finished without usable output.
func IsGenerationIncomplete(err error) bool {
	return KindOf(err) == KindGenerationIncomplete
}

// classify wraps err for op, choosing the most specific kind.
func classify(op string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	kind := KindUnknown
	var (
		fetchErr    *media.FetchError
		downloadErr *media.DownloadError
		decodeErr   *media.DecodeError
		opErr       *OperationError
	)
	switch {
	case IsInvalidCredential(err):
		kind = KindInvalidCredential
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case errors.Is(err, ErrNoOutput), errors.As(err, &opErr):
		kind = KindGenerationIncomplete
	case errors.As(err, &decodeErr):
		kind = KindDecode
	case errors.As(err, &fetchErr), errors.As(err, &downloadErr):
		kind = KindNetwork
	case isAPIError(err), isTransportError(err):
		kind = KindNetwork
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func isAPIError(err error) bool {
	_, _, ok := apiErrorStatus(err)
	return ok
}

// apiErrorStatus extracts the structured status of a Gemini API error.
func apiErrorStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}

func isTransportError(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}
