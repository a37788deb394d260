package media

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reference is a locally addressable handle to downloaded media. It is
// immutable; the backing bytes stay reachable until the owning Registry
// releases it.
type Reference struct {
	ID        uuid.UUID `json:"id"`
	MIMEType  string    `json:"mime_type"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	data      []byte
}

// URL is the path the reference is served under.
func (r *Reference) URL() string {
	return "/media/" + r.ID.String()
}

// Bytes returns a copy of the media payload.
func (r *Reference) Bytes() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

// Open returns a reader over the payload.
func (r *Reference) Open() io.ReadSeeker {
	return bytes.NewReader(r.data)
}

// Registry keeps media references addressable by ID until released.
type Registry struct {
	mu   sync.RWMutex
	refs map[uuid.UUID]*Reference
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[uuid.UUID]*Reference)}
}

// Register wraps data in a new Reference.
func (g *Registry) Register(data []byte, mimeType string) *Reference {
	ref := &Reference{
		ID:        uuid.New(),
		MIMEType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
		data:      data,
	}

	g.mu.Lock()
	g.refs[ref.ID] = ref
	g.mu.Unlock()

	return ref
}

// Get returns a registered reference.
func (g *Registry) Get(id uuid.UUID) (*Reference, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ref, ok := g.refs[id]
	return ref, ok
}

// Release revokes a reference. It reports whether the reference was registered.
func (g *Registry) Release(id uuid.UUID) bool {
	g.mu.Lock()
	_, ok := g.refs[id]
	delete(g.refs, id)
	g.mu.Unlock()

	if ok {
		log.Debug().Str("media_id", id.String()).Msg("Media reference released")
	}
	return ok
}

// ReleaseAll revokes every reference.
func (g *Registry) ReleaseAll() {
	g.mu.Lock()
	n := len(g.refs)
	g.refs = make(map[uuid.UUID]*Reference)
	g.mu.Unlock()

	if n > 0 {
		log.Debug().Int("count", n).Msg("Media references released")
	}
}

// Len returns the number of live references.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}
