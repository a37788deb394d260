package veo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Remote is the generation service. Implementations must be safe to use from
// a single goroutine; each Generate call gets its own Remote.
type Remote interface {
	Submit(ctx context.Context, req *Request) (*Operation, error)
	Refresh(ctx context.Context, op *Operation) (*Operation, error)
}

// RemoteFactory builds a Remote bound to apiKey.
type RemoteFactory func(ctx context.Context, apiKey string) (Remote, error)

// GenaiRemote talks to the Gemini API through the unified genai SDK.
type GenaiRemote struct {
	client *genai.Client
}

// NewGenaiRemote creates a Gemini API backed Remote.
// apiEndpoint: optional base URL override (e.g. a local proxy); empty uses the SDK default.
func NewGenaiRemote(ctx context.Context, apiKey, apiEndpoint string, httpClient *http.Client) (*GenaiRemote, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if apiEndpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: apiEndpoint}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return &GenaiRemote{client: client}, nil
}

// GenaiRemoteFactory returns a factory that builds a fresh GenaiRemote per call.
func GenaiRemoteFactory(apiEndpoint string, httpClient *http.Client) RemoteFactory {
	return func(ctx context.Context, apiKey string) (Remote, error) {
		return NewGenaiRemote(ctx, apiKey, apiEndpoint, httpClient)
	}
}

// Submit starts a video generation job.
func (r *GenaiRemote) Submit(ctx context.Context, req *Request) (*Operation, error) {
	imageBytes, err := req.Image.Bytes()
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateVideosConfig{
		NumberOfVideos: req.Options.NumberOfVideos,
		Resolution:     req.Options.Resolution,
		AspectRatio:    req.Options.AspectRatio,
	}
	image := &genai.Image{
		ImageBytes: imageBytes,
		MIMEType:   req.Image.MIMEType,
	}

	log.Debug().
		Str("model", req.Model).
		Str("resolution", config.Resolution).
		Str("aspect_ratio", config.AspectRatio).
		Int("image_size_bytes", len(imageBytes)).
		Msg("Calling genai GenerateVideos")

	op, err := r.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, config)
	if err != nil {
		return nil, err
	}
	return fromGenaiOperation(op), nil
}

// Refresh fetches the current state of op.
func (r *GenaiRemote) Refresh(ctx context.Context, op *Operation) (*Operation, error) {
	native := op.native
	if native == nil {
		native = &genai.GenerateVideosOperation{Name: op.Name}
	}
	next, err := r.client.Operations.GetVideosOperation(ctx, native, nil)
	if err != nil {
		return nil, err
	}
	return fromGenaiOperation(next), nil
}

// fromGenaiOperation maps the SDK operation to an Operation.
func fromGenaiOperation(op *genai.GenerateVideosOperation) *Operation {
	if op == nil {
		return &Operation{}
	}
	out := &Operation{
		Name:   op.Name,
		Done:   op.Done,
		native: op,
	}
	if len(op.Error) > 0 {
		out.Err = operationErrorFromMap(op.Error)
	}
	if op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv == nil || gv.Video == nil || gv.Video.URI == "" {
				continue
			}
			out.Videos = append(out.Videos, gv.Video.URI)
		}
		out.FilteredReasons = op.Response.RAIMediaFilteredReasons
	}
	return out
}

// operationErrorFromMap reads the google.rpc.Status shaped error of an operation.
func operationErrorFromMap(m map[string]any) *OperationError {
	e := &OperationError{Message: "unknown error"}
	if msg, ok := m["message"].(string); ok && msg != "" {
		e.Message = msg
	}
	switch code := m["code"].(type) {
	case float64:
		e.Code = int(code)
	case int:
		e.Code = code
	case int32:
		e.Code = int(code)
	case int64:
		e.Code = int(code)
	}
	return e
}
