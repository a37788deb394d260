package veo

import (
	"fmt"

	"github.com/snappy-loop/animator/internal/media"
	"google.golang.org/genai"
)

// Options are the fixed generation settings sent with every request.
type Options struct {
	NumberOfVideos int32
	Resolution     string
	AspectRatio    string
}

// Request is a single image-to-video generation request.
type Request struct {
	Model   string
	Prompt  string
	Image   *media.EncodedImage
	Options Options
}

// Operation is a snapshot of a remote long-running generation job. Refreshing
// returns a new value; an Operation is never modified in place.
type Operation struct {
	Name            string
	Done            bool
	Videos          []string // remote URIs of produced media
	FilteredReasons []string
	Err             *OperationError

	native *genai.GenerateVideosOperation
}

// FirstVideo returns the first produced media URI.
func (o *Operation) FirstVideo() (string, bool) {
	for _, uri := range o.Videos {
		if uri != "" {
			return uri, true
		}
	}
	return "", false
}

// OperationError is the error a finished operation reports.
type OperationError struct {
	Code    int
	Message string
}

func (e *OperationError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("video generation failed (code %d): %s", e.Code, e.Message)
	}
	return "video generation failed: " + e.Message
}

// Stage is a step of the generation lifecycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageSubmitted  Stage = "submitted"
	StagePolling    Stage = "polling"
	StageComplete   Stage = "complete"
	StageDownloaded Stage = "downloaded"
	StageFailed     Stage = "failed"
)

// Progress is reported to an Observer on every stage transition and poll.
type Progress struct {
	Stage     Stage
	Operation string
	Polls     int
}

// Observer receives progress updates. It runs on the generating goroutine and
// must not block.
type Observer func(Progress)
