package models

import (
	"time"

	"github.com/google/uuid"
)

// Animation status values
const (
	AnimationRunning   = "running"
	AnimationSucceeded = "succeeded"
	AnimationFailed    = "failed"
)

// Animation is one generation attempt, persisted when history is enabled
type Animation struct {
	ID            uuid.UUID  `json:"id"`
	Status        string     `json:"status"` // running, succeeded, failed
	Model         string     `json:"model"`
	Prompt        string     `json:"prompt"`
	ImageURL      string     `json:"image_url"`
	OperationName *string    `json:"operation_name,omitempty"`
	MediaID       *uuid.UUID `json:"media_id,omitempty"`
	MimeType      *string    `json:"mime_type,omitempty"`
	SizeBytes     int64      `json:"size_bytes"`
	ArchiveKey    *string    `json:"archive_key,omitempty"`
	ErrorKind     *string    `json:"error_kind,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// MediaInfo describes the current video as exposed to clients
type MediaInfo struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"download_url"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
}

// StateResponse is the JSON view of the studio session
type StateResponse struct {
	Status             string     `json:"status"` // idle, loading_image, ready, generating, succeeded, failed
	ImageURL           string     `json:"image_url"`
	ImageLoaded        bool       `json:"image_loaded"`
	Generating         bool       `json:"generating"`
	StatusMessage      string     `json:"status_message,omitempty"`
	Stage              string     `json:"stage,omitempty"`
	Polls              int        `json:"polls"`
	AnimationID        *uuid.UUID `json:"animation_id,omitempty"`
	Media              *MediaInfo `json:"media,omitempty"`
	Error              string     `json:"error,omitempty"`
	CredentialSelected bool       `json:"credential_selected"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CreateAnimationResponse is returned when a generation is accepted
type CreateAnimationResponse struct {
	AnimationID uuid.UUID `json:"animation_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SelectCredentialRequest selects the API key used for generation
type SelectCredentialRequest struct {
	APIKey string `json:"api_key"`
}

// AnimationListResponse wraps the animation history
type AnimationListResponse struct {
	Animations []*Animation `json:"animations"`
}
