package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/snappy-loop/animator/internal/kafka"
	"github.com/snappy-loop/animator/internal/media"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/internal/veo"
)

// ImageFetcher loads the source image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (*media.EncodedImage, error)
}

// Generator turns an image into a video reference.
type Generator interface {
	Generate(ctx context.Context, image *media.EncodedImage, prompt string, opts ...veo.GenerateOption) (*media.Reference, error)
}

// CredentialState reports whether an API key is selected.
type CredentialState interface {
	Selected() bool
}

// MediaReleaser revokes media references that are no longer shown.
type MediaReleaser interface {
	Release(id uuid.UUID) bool
}

// AnimationRecorder persists animation history. May be nil to skip recording.
type AnimationRecorder interface {
	Create(ctx context.Context, a *models.Animation) error
	Finish(ctx context.Context, a *models.Animation) error
}

// AnimationPublisher publishes animation events (e.g. to Kafka). May be nil to skip publishing.
type AnimationPublisher interface {
	PublishAnimation(ctx context.Context, event kafka.AnimationEvent) error
}

// MediaArchiver copies finished videos to durable storage. May be nil to skip archiving.
type MediaArchiver interface {
	ArchiveMedia(ctx context.Context, animationID uuid.UUID, ref *media.Reference) (string, error)
}

// SessionDeps are the collaborators of a Session. Fetcher, Generator,
// Credentials and Media are required.
type SessionDeps struct {
	Fetcher     ImageFetcher
	Generator   Generator
	Credentials CredentialState
	Media       MediaReleaser
	Recorder    AnimationRecorder
	Publisher   AnimationPublisher
	Archiver    MediaArchiver
}
