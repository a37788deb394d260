package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishAnimation(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "animator.events.v1"}
	id := uuid.New()

	err := p.PublishAnimation(context.Background(), AnimationEvent{
		AnimationID: id,
		Event:       EventAnimationFailed,
		Operation:   "operations/123",
		ErrorKind:   "timeout",
		Error:       "poll: context deadline exceeded",
		OccurredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PublishAnimation: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != id.String() {
		t.Errorf("key = %s, want %s", msg.Key, id)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != EventAnimationFailed {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var got AnimationEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.AnimationID != id || got.Event != EventAnimationFailed || got.ErrorKind != "timeout" {
		t.Errorf("payload = %+v", got)
	}
	if got.MediaID != nil {
		t.Errorf("media_id should be omitted for failures, got %v", got.MediaID)
	}
}

func TestPublishAnimation_Errors(t *testing.T) {
	p := &Producer{writer: &recordingWriter{}, topic: "t"}
	if err := p.PublishAnimation(context.Background(), AnimationEvent{AnimationID: uuid.New()}); err == nil {
		t.Error("expected error for missing event name")
	}

	w := &recordingWriter{err: errors.New("broker down")}
	p = &Producer{writer: w, topic: "t"}
	err := p.PublishAnimation(context.Background(), AnimationEvent{AnimationID: uuid.New(), Event: EventAnimationCompleted})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Errorf("err = %v", err)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: %v, closed=%v", err, w.closed)
	}
}
