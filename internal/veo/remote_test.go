package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/snappy-loop/animator/internal/media"
	"google.golang.org/genai"
)

func TestFromGenaiOperation(t *testing.T) {
	tests := []struct {
		name string
		op   *genai.GenerateVideosOperation
		want Operation
	}{
		{
			name: "nil",
			op:   nil,
			want: Operation{},
		},
		{
			name: "pending",
			op:   &genai.GenerateVideosOperation{Name: "models/veo/operations/1"},
			want: Operation{Name: "models/veo/operations/1"},
		},
		{
			name: "done with videos skips empty",
			op: &genai.GenerateVideosOperation{
				Name: "op",
				Done: true,
				Response: &genai.GenerateVideosResponse{
					GeneratedVideos: []*genai.GeneratedVideo{
						nil,
						{Video: nil},
						{Video: &genai.Video{URI: ""}},
						{Video: &genai.Video{URI: "https://media/a"}},
						{Video: &genai.Video{URI: "https://media/b"}},
					},
				},
			},
			want: Operation{Name: "op", Done: true, Videos: []string{"https://media/a", "https://media/b"}},
		},
		{
			name: "done filtered",
			op: &genai.GenerateVideosOperation{
				Name: "op",
				Done: true,
				Response: &genai.GenerateVideosResponse{
					RAIMediaFilteredCount:   1,
					RAIMediaFilteredReasons: []string{"unsafe content"},
				},
			},
			want: Operation{Name: "op", Done: true, FilteredReasons: []string{"unsafe content"}},
		},
		{
			name: "error with json number code",
			op: &genai.GenerateVideosOperation{
				Name:  "op",
				Done:  true,
				Error: map[string]any{"code": float64(3), "message": "bad image"},
			},
			want: Operation{Name: "op", Done: true, Err: &OperationError{Code: 3, Message: "bad image"}},
		},
		{
			name: "error without message",
			op: &genai.GenerateVideosOperation{
				Name:  "op",
				Done:  true,
				Error: map[string]any{"code": 13},
			},
			want: Operation{Name: "op", Done: true, Err: &OperationError{Code: 13, Message: "unknown error"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromGenaiOperation(tt.op)
			if got.native != tt.op {
				t.Errorf("native operation not kept")
			}
			got.native = nil
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("fromGenaiOperation = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestOperationErrorFromMap_CodeTypes(t *testing.T) {
	tests := []struct {
		name string
		code any
		want int
	}{
		{"float64", float64(7), 7},
		{"int", 8, 8},
		{"int32", int32(9), 9},
		{"int64", int64(10), 10},
		{"string ignored", "11", 0},
		{"missing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]any{"message": "m"}
			if tt.code != nil {
				m["code"] = tt.code
			}
			if got := operationErrorFromMap(m); got.Code != tt.want || got.Message != "m" {
				t.Errorf("operationErrorFromMap = %+v, want code %d", got, tt.want)
			}
		})
	}
}

// geminiStub serves the two REST calls GenaiRemote makes.
type geminiStub struct {
	mu      sync.Mutex
	submits []map[string]any
	keys    []string
	polls   int
}

func (s *geminiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, r.Header.Get("x-goog-api-key"))
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("x-goog-api-key") != "good-key" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"API key not valid. Please pass a valid API key.","status":"UNAUTHENTICATED"}}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1beta/models/veo-test:predictLongRunning":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.submits = append(s.submits, body)
		w.Write([]byte(`{"name":"models/veo-test/operations/op-1"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v1beta/models/veo-test/operations/op-1":
		s.polls++
		if s.polls == 1 {
			w.Write([]byte(`{"name":"models/veo-test/operations/op-1","done":false}`))
			return
		}
		w.Write([]byte(`{"name":"models/veo-test/operations/op-1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":""}},{"video":{"uri":"https://media.example/v1/files/abc:download?alt=media"}}]}}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"no route","status":"NOT_FOUND"}}`))
	}
}

func newStubRemote(t *testing.T, apiKey string) (*GenaiRemote, *geminiStub) {
	t.Helper()
	stub := &geminiStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	remote, err := GenaiRemoteFactory(srv.URL, srv.Client())(context.Background(), apiKey)
	if err != nil {
		t.Fatalf("GenaiRemoteFactory: %v", err)
	}
	return remote.(*GenaiRemote), stub
}

func TestGenaiRemote_SubmitAndRefresh(t *testing.T) {
	remote, stub := newStubRemote(t, "good-key")
	raw := []byte{0xff, 0xd8, 0x00, 0x01}

	op, err := remote.Submit(context.Background(), &Request{
		Model:   "veo-test",
		Prompt:  "wave hello",
		Image:   media.NewEncodedImage(raw, "image/jpeg"),
		Options: Options{NumberOfVideos: 1, Resolution: "720p", AspectRatio: "9:16"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if op.Name != "models/veo-test/operations/op-1" || op.Done {
		t.Fatalf("submitted op = %+v", op)
	}

	if len(stub.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(stub.submits))
	}
	body := stub.submits[0]
	instance := body["instances"].([]any)[0].(map[string]any)
	if instance["prompt"] != "wave hello" {
		t.Errorf("prompt = %v", instance["prompt"])
	}
	image := instance["image"].(map[string]any)
	if image["mimeType"] != "image/jpeg" {
		t.Errorf("mimeType = %v", image["mimeType"])
	}
	encoded, _ := image["bytesBase64Encoded"].(string)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(encoded)
	}
	if err != nil || !bytes.Equal(decoded, raw) {
		t.Errorf("image bytes = %q", encoded)
	}
	params := body["parameters"].(map[string]any)
	if params["resolution"] != "720p" || params["aspectRatio"] != "9:16" || params["sampleCount"] != float64(1) {
		t.Errorf("parameters = %v", params)
	}

	op, err = remote.Refresh(context.Background(), op)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if op.Done {
		t.Fatal("operation should still be running")
	}

	// A bare name, as held by a caller without the SDK value, is enough to poll.
	op, err = remote.Refresh(context.Background(), &Operation{Name: op.Name})
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if !op.Done || op.Err != nil {
		t.Fatalf("finished op = %+v", op)
	}
	if want := []string{"https://media.example/v1/files/abc:download?alt=media"}; !reflect.DeepEqual(op.Videos, want) {
		t.Errorf("Videos = %v, want %v", op.Videos, want)
	}
	for _, k := range stub.keys {
		if k != "good-key" {
			t.Errorf("request sent key %q", k)
		}
	}
}

func TestGenaiRemote_RejectedKeyIsInvalidCredential(t *testing.T) {
	remote, _ := newStubRemote(t, "bad-key")

	_, err := remote.Submit(context.Background(), &Request{
		Model:   "veo-test",
		Prompt:  "wave hello",
		Image:   media.NewEncodedImage([]byte{0x01}, "image/png"),
		Options: Options{NumberOfVideos: 1},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsInvalidCredential(err) {
		t.Errorf("IsInvalidCredential(%v) = false", err)
	}
}
