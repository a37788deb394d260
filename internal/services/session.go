package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/kafka"
	"github.com/snappy-loop/animator/internal/media"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/internal/veo"
)

// Status is the state of the studio session.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoadingImage Status = "loading_image"
	StatusReady        Status = "ready"
	StatusGenerating   Status = "generating"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
)

// User facing messages.
const (
	ImageLoadErrorMessage  = "Could not load the initial image. Please refresh the page."
	InvalidKeyErrorMessage = "Your API key seems to be invalid. Please select a valid key and try again."
	UnknownErrorMessage    = "An unknown error occurred. Please check the logs for details."
)

// DefaultMessagePeriod is how long each loading message is shown.
const DefaultMessagePeriod = 3 * time.Second

const (
	sinkTimeout        = 30 * time.Second
	subscriberCapacity = 1
)

// DefaultLoadingMessages rotate while a generation is in flight.
var DefaultLoadingMessages = []string{
	"Waking up the digital panda...",
	"Gathering bamboo pixels...",
	"Animating the gentle breeze...",
	"Painting the fluffy clouds...",
	"Composing the final scene...",
	"This can take a few minutes...",
	"Almost there, the panda is waving hello!",
}

var (
	ErrBusy         = errors.New("an animation is already in progress")
	ErrNotReady     = errors.New("source image is not loaded")
	ErrNoCredential = errors.New("no API key selected")
	ErrClosed       = errors.New("session is closed")
)

// SessionConfig holds the fixed inputs of a session.
type SessionConfig struct {
	ImageURL        string
	Prompt          string
	Model           string
	MessagePeriod   time.Duration
	LoadingMessages []string
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Status             Status
	ImageURL           string
	Image              *media.EncodedImage
	Media              *media.Reference
	Error              string
	CredentialSelected bool
	AnimationID        *uuid.UUID
	Stage              veo.Stage
	Polls              int
	StatusMessage      string
	UpdatedAt          time.Time
}

// Generating reports whether a generation is in flight.
func (s Snapshot) Generating() bool {
	return s.Status == StatusGenerating
}

// Session is the single studio: one source image, at most one generation in
// flight and the latest produced video.
type Session struct {
	cfg  SessionConfig
	deps SessionDeps
	now  func() time.Time

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	status      Status
	image       *media.EncodedImage
	current     *media.Reference
	errMsg      string
	animation   *models.Animation
	startedAt   time.Time
	stage       veo.Stage
	polls       int
	updatedAt   time.Time
	subscribers map[chan Snapshot]struct{}
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig, deps SessionDeps) *Session {
	if cfg.MessagePeriod <= 0 {
		cfg.MessagePeriod = DefaultMessagePeriod
	}
	if len(cfg.LoadingMessages) == 0 {
		cfg.LoadingMessages = DefaultLoadingMessages
	}
	root, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:         cfg,
		deps:        deps,
		now:         time.Now,
		root:        root,
		cancel:      cancel,
		status:      StatusIdle,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	s.updatedAt = s.now()
	return s
}

// LoadImage fetches the configured source image. It is called once at startup;
// calling it again replaces the image unless a generation is in flight.
func (s *Session) LoadImage(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == StatusGenerating {
		s.mu.Unlock()
		return ErrBusy
	}
	s.status = StatusLoadingImage
	s.errMsg = ""
	s.touchLocked()
	s.mu.Unlock()
	s.broadcast()

	image, err := s.deps.Fetcher.FetchImage(ctx, s.cfg.ImageURL)

	s.mu.Lock()
	if err != nil {
		s.image = nil
		s.status = StatusFailed
		s.errMsg = ImageLoadErrorMessage
	} else {
		s.image = image
		s.status = StatusReady
	}
	s.touchLocked()
	s.mu.Unlock()
	s.broadcast()

	if err != nil {
		log.Error().Err(err).Str("url", s.cfg.ImageURL).Msg("Failed to load source image")
		return err
	}
	log.Info().Str("url", s.cfg.ImageURL).Str("mime_type", image.MIMEType).Msg("Source image loaded")
	return nil
}

// Animate starts a generation in the background and returns its record. It
// fails with ErrBusy while one is in flight, ErrNotReady without a source
// image and ErrNoCredential when no key is selected.
func (s *Session) Animate(ctx context.Context) (*models.Animation, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.status == StatusGenerating:
		s.mu.Unlock()
		return nil, ErrBusy
	case s.image == nil:
		s.mu.Unlock()
		return nil, ErrNotReady
	case !s.deps.Credentials.Selected():
		s.mu.Unlock()
		return nil, ErrNoCredential
	}

	if s.current != nil {
		s.deps.Media.Release(s.current.ID)
		s.current = nil
	}

	now := s.now()
	anim := &models.Animation{
		ID:        uuid.New(),
		Status:    models.AnimationRunning,
		Model:     s.cfg.Model,
		Prompt:    s.cfg.Prompt,
		ImageURL:  s.cfg.ImageURL,
		CreatedAt: now,
	}
	s.animation = anim
	s.status = StatusGenerating
	s.errMsg = ""
	s.startedAt = now
	s.stage = veo.StageIdle
	s.polls = 0
	s.touchLocked()
	image := s.image
	record := *anim

	s.wg.Add(1)
	s.mu.Unlock()
	s.broadcast()

	log.Info().
		Str("animation_id", anim.ID.String()).
		Str("model", anim.Model).
		Msg("Animation started")

	go s.run(anim, image)
	return &record, nil
}

func (s *Session) run(anim *models.Animation, image *media.EncodedImage) {
	defer s.wg.Done()

	if s.deps.Recorder != nil {
		sinkCtx, cancel := s.sinkContext()
		if err := s.deps.Recorder.Create(sinkCtx, anim); err != nil {
			log.Error().Err(err).Str("animation_id", anim.ID.String()).Msg("Failed to record animation")
		}
		cancel()
	}

	ref, err := s.deps.Generator.Generate(s.root, image, s.cfg.Prompt, veo.WithObserver(func(p veo.Progress) {
		s.observe(anim.ID, p)
	}))

	finished := s.now()
	s.mu.Lock()
	anim.FinishedAt = &finished
	if err != nil {
		anim.Status = models.AnimationFailed
		kind := string(veo.KindOf(err))
		msg := err.Error()
		anim.ErrorKind = &kind
		anim.ErrorMessage = &msg
		s.status = StatusFailed
		s.errMsg = errorMessage(err)
	} else {
		anim.Status = models.AnimationSucceeded
		anim.MediaID = &ref.ID
		anim.MimeType = &ref.MIMEType
		anim.SizeBytes = ref.Size
		if s.closed {
			s.deps.Media.Release(ref.ID)
		} else {
			s.current = ref
		}
		s.status = StatusSucceeded
	}
	s.touchLocked()
	s.mu.Unlock()
	s.broadcast()

	if err != nil {
		log.Error().Err(err).Str("animation_id", anim.ID.String()).Msg("Animation failed")
	} else {
		log.Info().
			Str("animation_id", anim.ID.String()).
			Str("media_id", ref.ID.String()).
			Int64("size_bytes", ref.Size).
			Msg("Animation completed")
	}

	s.finish(anim, ref, err)
}

// finish runs the optional sinks. Their failures are logged only.
func (s *Session) finish(anim *models.Animation, ref *media.Reference, genErr error) {
	ctx, cancel := s.sinkContext()
	defer cancel()

	if genErr == nil && s.deps.Archiver != nil {
		key, err := s.deps.Archiver.ArchiveMedia(ctx, anim.ID, ref)
		if err != nil {
			log.Error().Err(err).Str("animation_id", anim.ID.String()).Msg("Failed to archive animation")
		} else {
			s.mu.Lock()
			anim.ArchiveKey = &key
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	record := *anim
	s.mu.Unlock()

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.Finish(ctx, &record); err != nil {
			log.Error().Err(err).Str("animation_id", anim.ID.String()).Msg("Failed to record animation result")
		}
	}

	if s.deps.Publisher != nil {
		event := kafka.AnimationEvent{
			AnimationID: record.ID,
			Event:       kafka.EventAnimationCompleted,
			Model:       record.Model,
			MediaID:     record.MediaID,
			SizeBytes:   record.SizeBytes,
			OccurredAt:  s.now(),
		}
		if record.OperationName != nil {
			event.Operation = *record.OperationName
		}
		if record.ArchiveKey != nil {
			event.ArchiveKey = *record.ArchiveKey
		}
		if genErr != nil {
			event.Event = kafka.EventAnimationFailed
			event.ErrorKind = string(veo.KindOf(genErr))
			event.Error = genErr.Error()
		}
		if err := s.deps.Publisher.PublishAnimation(ctx, event); err != nil {
			log.Error().Err(err).Str("animation_id", anim.ID.String()).Msg("Failed to publish animation event")
		}
	}
}

// sinkContext outlives Close so a finished result can still be recorded.
func (s *Session) sinkContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(s.root), sinkTimeout)
}

func (s *Session) observe(id uuid.UUID, p veo.Progress) {
	s.mu.Lock()
	if s.animation == nil || s.animation.ID != id {
		s.mu.Unlock()
		return
	}
	s.stage = p.Stage
	s.polls = p.Polls
	if p.Operation != "" {
		name := p.Operation
		s.animation.OperationName = &name
	}
	s.touchLocked()
	s.mu.Unlock()
	s.broadcast()
}

// errorMessage is the text shown for a failed generation.
func errorMessage(err error) string {
	if veo.IsInvalidCredential(err) {
		return InvalidKeyErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}

// StatusMessage returns the loading message for now, or "" when idle.
func (s *Session) StatusMessage(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusMessageLocked(now)
}

func (s *Session) statusMessageLocked(now time.Time) string {
	if s.status != StatusGenerating {
		return ""
	}
	elapsed := now.Sub(s.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	idx := int(elapsed/s.cfg.MessagePeriod) % len(s.cfg.LoadingMessages)
	return s.cfg.LoadingMessages[idx]
}

// MessagePeriod is how often the loading message changes.
func (s *Session) MessagePeriod() time.Duration {
	return s.cfg.MessagePeriod
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:             s.status,
		ImageURL:           s.cfg.ImageURL,
		Image:              s.image,
		Media:              s.current,
		Error:              s.errMsg,
		CredentialSelected: s.deps.Credentials.Selected(),
		Stage:              s.stage,
		Polls:              s.polls,
		StatusMessage:      s.statusMessageLocked(s.now()),
		UpdatedAt:          s.updatedAt,
	}
	if s.animation != nil {
		id := s.animation.ID
		snap.AnimationID = &id
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every change, starting
// with the current one. Slow readers only see the latest state. The channel is
// closed by unsubscribe or Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberCapacity)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// CredentialChanged notifies subscribers after the key selection changed.
func (s *Session) CredentialChanged() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
	s.broadcast()
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}

func (s *Session) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close cancels an in-flight generation, waits for it and releases the
// current video.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	if s.current != nil {
		s.deps.Media.Release(s.current.ID)
		s.current = nil
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	log.Info().Msg("Studio session closed")
}
