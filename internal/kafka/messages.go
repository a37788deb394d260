package kafka

import (
	"time"

	"github.com/google/uuid"
)

// Animation event names
const (
	EventAnimationCompleted = "animation_completed"
	EventAnimationFailed    = "animation_failed"
)

// AnimationEvent is published once per finished generation
type AnimationEvent struct {
	AnimationID uuid.UUID  `json:"animation_id"`
	Event       string     `json:"event"` // "animation_completed", "animation_failed"
	Model       string     `json:"model,omitempty"`
	Operation   string     `json:"operation,omitempty"`
	MediaID     *uuid.UUID `json:"media_id,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	ArchiveKey  string     `json:"archive_key,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}
