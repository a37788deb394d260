package media

import "fmt"

// FetchError is returned when the source image request fails or answers with a
// non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch image: %v", e.Err)
	}
	return fmt.Sprintf("failed to fetch image: HTTP error! status: %d", e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a payload cannot be read as base64 image data.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to read image as a base64 string: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DownloadError is returned when the generated media cannot be retrieved.
type DownloadError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to download the generated video: %v", e.Err)
	}
	return fmt.Sprintf("failed to download the generated video. Status: %s", e.Status)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
