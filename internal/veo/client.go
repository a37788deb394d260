package veo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/media"
)

// DefaultPollInterval is the constant wait between operation status queries.
const DefaultPollInterval = 10 * time.Second

// CredentialProvider supplies the API key at call time.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// CredentialInvalidator is implemented by providers that track whether the
// current key was selected; Invalidate is called when the remote rejects it.
type CredentialInvalidator interface {
	Invalidate()
}

// MediaDownloader retrieves produced media.
type MediaDownloader interface {
	Download(ctx context.Context, uri, apiKey string) (*media.Reference, error)
}

// Config holds the fixed generation settings.
type Config struct {
	Model        string
	Resolution   string
	AspectRatio  string
	PollInterval time.Duration
	Timeout      time.Duration // 0 means no deadline
}

// Client drives an image-to-video generation from submission to download.
type Client struct {
	cfg         Config
	credentials CredentialProvider
	newRemote   RemoteFactory
	downloader  MediaDownloader
}

// New creates a generation client. The credential is read and a Remote is
// built through newRemote on every Generate call.
func New(cfg Config, credentials CredentialProvider, newRemote RemoteFactory, downloader MediaDownloader) *Client {
	if cfg.Model == "" {
		cfg.Model = "veo-3.1-fast-generate-preview"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "720p"
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "9:16"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	log.Info().
		Str("model", cfg.Model).
		Str("resolution", cfg.Resolution).
		Str("aspect_ratio", cfg.AspectRatio).
		Dur("poll_interval", cfg.PollInterval).
		Dur("timeout", cfg.Timeout).
		Msg("Veo client initialized")

	return &Client{
		cfg:         cfg,
		credentials: credentials,
		newRemote:   newRemote,
		downloader:  downloader,
	}
}

// GenerateOption customizes a single Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	observer Observer
}

// WithObserver reports progress of this call to fn.
func WithObserver(fn Observer) GenerateOption {
	return func(o *generateOptions) {
		o.observer = fn
	}
}

// Generate animates image according to prompt and returns the downloaded
// video. It blocks until the remote operation finishes, ctx is done or the
// configured timeout elapses. Every error is an *Error.
func (c *Client) Generate(ctx context.Context, image *media.EncodedImage, prompt string, opts ...GenerateOption) (*media.Reference, error) {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	run := &generation{client: c, observer: o.observer}

	ref, err := run.execute(ctx, image, prompt)
	if err != nil {
		run.report(StageFailed)
		if IsInvalidCredential(err) {
			if inv, ok := c.credentials.(CredentialInvalidator); ok {
				inv.Invalidate()
			}
		}
		log.Error().
			Err(err).
			Str("kind", string(KindOf(err))).
			Str("operation", run.opName).
			Int("polls", run.polls).
			Msg("Video generation failed")
		return nil, err
	}
	return ref, nil
}

// generation is the state of one Generate call. It is never shared.
type generation struct {
	client   *Client
	observer Observer
	opName   string
	polls    int
}

func (g *generation) report(stage Stage) {
	if g.observer != nil {
		g.observer(Progress{Stage: stage, Operation: g.opName, Polls: g.polls})
	}
}

func (g *generation) execute(ctx context.Context, image *media.EncodedImage, prompt string) (*media.Reference, error) {
	c := g.client
	g.report(StageIdle)

	if strings.TrimSpace(prompt) == "" {
		return nil, &Error{Kind: KindUnknown, Op: "validate", Err: errors.New("prompt is required")}
	}
	if _, err := image.Bytes(); err != nil {
		return nil, classify("validate", err)
	}

	apiKey, err := c.credentials.APIKey(ctx)
	if err == nil && apiKey == "" {
		err = ErrNoCredential
	}
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			err = fmt.Errorf("%w: %v", ErrNoCredential, err)
		}
		return nil, &Error{Kind: KindInvalidCredential, Op: "credential", Err: err}
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	remote, err := c.newRemote(ctx, apiKey)
	if err != nil {
		return nil, classify("connect", err)
	}

	req := &Request{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Image:  image,
		Options: Options{
			NumberOfVideos: 1,
			Resolution:     c.cfg.Resolution,
			AspectRatio:    c.cfg.AspectRatio,
		},
	}

	op, err := remote.Submit(ctx, req)
	if err != nil {
		return nil, classify("submit", err)
	}
	g.opName = op.Name
	g.report(StageSubmitted)

	log.Info().
		Str("operation", op.Name).
		Str("model", req.Model).
		Bool("done", op.Done).
		Msg("Video generation submitted")

	op, err = g.poll(ctx, remote, op)
	if err != nil {
		return nil, classify("poll", err)
	}
	g.report(StageComplete)

	if op.Err != nil {
		return nil, classify("resolve", op.Err)
	}
	uri, ok := op.FirstVideo()
	if !ok {
		err := ErrNoOutput
		if len(op.FilteredReasons) > 0 {
			err = fmt.Errorf("%w (filtered: %s)", ErrNoOutput, strings.Join(op.FilteredReasons, "; "))
		}
		return nil, &Error{Kind: KindGenerationIncomplete, Op: "resolve", Err: err}
	}

	ref, err := c.downloader.Download(ctx, uri, apiKey)
	if err != nil {
		return nil, classify("download", err)
	}
	g.report(StageDownloaded)

	log.Info().
		Str("operation", op.Name).
		Int("polls", g.polls).
		Str("media_id", ref.ID.String()).
		Int64("size_bytes", ref.Size).
		Msg("Video generation completed")

	return ref, nil
}

// poll refreshes op every PollInterval until it reports done. ctx is checked
// before every wait; the interval is constant.
func (g *generation) poll(ctx context.Context, remote Remote, op *Operation) (*Operation, error) {
	interval := g.client.cfg.PollInterval
	for !op.Done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		next, err := remote.Refresh(ctx, op)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, errors.New("operation status query returned no operation")
		}
		op = next
		g.polls++
		g.report(StagePolling)

		log.Debug().
			Str("operation", op.Name).
			Int("polls", g.polls).
			Bool("done", op.Done).
			Msg("Waiting for video generation to complete")
	}
	return op, nil
}
