package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/media"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/internal/services"
)

// studioSession is the subset of *services.Session used by the handlers.
type studioSession interface {
	Snapshot() services.Snapshot
	Animate(ctx context.Context) (*models.Animation, error)
	Subscribe() (<-chan services.Snapshot, func())
	CredentialChanged()
	MessagePeriod() time.Duration
}

// credentialSelector is the subset of *credentials.Store used by the handlers.
type credentialSelector interface {
	Select(key string) error
}

// mediaStore resolves media references by ID.
type mediaStore interface {
	Get(id uuid.UUID) (*media.Reference, bool)
}

// animationHistory is the subset of *database.AnimationRepository used by the handlers.
type animationHistory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Animation, error)
	List(ctx context.Context, limit int, cursor *time.Time) ([]*models.Animation, error)
}

// archiveStore is the subset of *storage.Client used by the handlers.
type archiveStore interface {
	PublicURL(key string) string
	GeneratePresignedURL(key string, expiration time.Duration) (string, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	session      studioSession
	credentials  credentialSelector
	media        mediaStore
	history      animationHistory
	archive      archiveStore
	presignTTL   time.Duration
	healthChecks map[string]func(context.Context) error
}

// NewHandler creates a new handler. History, archive and health checks are
// attached with the Set/Add methods when configured.
func NewHandler(session studioSession, credentials credentialSelector, media mediaStore) *Handler {
	return &Handler{
		session:      session,
		credentials:  credentials,
		media:        media,
		healthChecks: make(map[string]func(context.Context) error),
	}
}

// SetHistory enables the animation history routes.
func (h *Handler) SetHistory(history animationHistory) {
	h.history = history
}

// SetArchive enables the archived video routes.
func (h *Handler) SetArchive(archive archiveStore, presignTTL time.Duration) {
	h.archive = archive
	h.presignTTL = presignTTL
}

// AddHealthCheck registers a dependency probe reported by Health.
func (h *Handler) AddHealthCheck(name string, check func(context.Context) error) {
	h.healthChecks[name] = check
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.healthChecks))
	for name, check := range h.healthChecks {
		if err := check(r.Context()); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
