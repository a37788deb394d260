package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/database"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListAnimations handles GET /v1/animations
func (h *Handler) ListAnimations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, http.StatusNotImplemented, "animation history is not enabled")
		return
	}

	// Parse query parameters
	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, maxListLimit)
		}
	}

	var cursor *time.Time
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		parsedCursor, err := time.Parse(time.RFC3339, cursorStr)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = &parsedCursor
	}

	animations, err := h.history.List(r.Context(), limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list animations")
		writeJSONError(w, http.StatusInternalServerError, "failed to list animations")
		return
	}

	writeJSON(w, http.StatusOK, models.AnimationListResponse{Animations: animations})
}

// GetAnimation handles GET /v1/animations/{id}
func (h *Handler) GetAnimation(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, http.StatusNotImplemented, "animation history is not enabled")
		return
	}
	animationID, ok := parseAnimationID(w, r)
	if !ok {
		return
	}

	anim, err := h.history.GetByID(r.Context(), animationID)
	if err != nil {
		if errors.Is(err, database.ErrAnimationNotFound) {
			writeJSONError(w, http.StatusNotFound, "animation not found")
			return
		}
		log.Error().Err(err).Str("animation_id", animationID.String()).Msg("Failed to get animation")
		writeJSONError(w, http.StatusInternalServerError, "failed to get animation")
		return
	}

	writeJSON(w, http.StatusOK, anim)
}

// GetArchive handles GET /v1/animations/{id}/archive, redirecting to the stored video.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSONError(w, http.StatusNotImplemented, "media archive is not enabled")
		return
	}
	animationID, ok := parseAnimationID(w, r)
	if !ok {
		return
	}
	key, ok := h.archiveKey(w, r, animationID)
	if !ok {
		return
	}

	target := h.archive.PublicURL(key)
	if target == "" {
		var err error
		target, err = h.archive.GeneratePresignedURL(key, h.presignTTL)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to presign archive URL")
			writeJSONError(w, http.StatusInternalServerError, "failed to generate download url")
			return
		}
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// GetArchiveVideo handles GET /v1/animations/{id}/video, streaming the stored video.
func (h *Handler) GetArchiveVideo(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSONError(w, http.StatusNotImplemented, "media archive is not enabled")
		return
	}
	animationID, ok := parseAnimationID(w, r)
	if !ok {
		return
	}
	key, ok := h.archiveKey(w, r, animationID)
	if !ok {
		return
	}

	body, err := h.archive.GetObject(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "archived video not found")
			return
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to read archived video")
		writeJSONError(w, http.StatusBadGateway, "failed to read archived video")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "video/mp4")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadFilename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Archived video stream interrupted")
	}
}

// archiveKey resolves the object key of an animation. With history enabled the
// recorded key is authoritative; otherwise the conventional key is assumed.
func (h *Handler) archiveKey(w http.ResponseWriter, r *http.Request, animationID uuid.UUID) (string, bool) {
	if h.history == nil {
		return storage.AnimationKey(animationID), true
	}
	anim, err := h.history.GetByID(r.Context(), animationID)
	if err != nil {
		if errors.Is(err, database.ErrAnimationNotFound) {
			writeJSONError(w, http.StatusNotFound, "animation not found")
			return "", false
		}
		log.Error().Err(err).Str("animation_id", animationID.String()).Msg("Failed to get animation")
		writeJSONError(w, http.StatusInternalServerError, "failed to get animation")
		return "", false
	}
	if anim.ArchiveKey == nil {
		writeJSONError(w, http.StatusNotFound, "animation has no archived video")
		return "", false
	}
	return *anim.ArchiveKey, true
}

func parseAnimationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	animationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid animation id")
		return uuid.Nil, false
	}
	return animationID, true
}
