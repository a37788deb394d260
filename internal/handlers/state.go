package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/auth"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/internal/services"
)

// DownloadFilename is the name offered when saving the video.
const DownloadFilename = "animated-image.mp4"

// toStateResponse converts a session snapshot to its JSON form.
func toStateResponse(snap services.Snapshot) models.StateResponse {
	resp := models.StateResponse{
		Status:             string(snap.Status),
		ImageURL:           snap.ImageURL,
		ImageLoaded:        snap.Image != nil,
		Generating:         snap.Generating(),
		StatusMessage:      snap.StatusMessage,
		Stage:              string(snap.Stage),
		Polls:              snap.Polls,
		AnimationID:        snap.AnimationID,
		Error:              snap.Error,
		CredentialSelected: snap.CredentialSelected,
		UpdatedAt:          snap.UpdatedAt,
	}
	if snap.Media != nil {
		resp.Media = &models.MediaInfo{
			ID:          snap.Media.ID,
			URL:         snap.Media.URL(),
			DownloadURL: snap.Media.URL() + "?download=1",
			MimeType:    snap.Media.MIMEType,
			SizeBytes:   snap.Media.Size,
		}
	}
	return resp
}

// GetState handles GET /v1/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.session.Snapshot()))
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := executeTemplate(&buf, "index", toStateResponse(h.session.Snapshot())); err != nil {
		log.Error().Err(err).Msg("Failed to render index")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// GetImage handles GET /v1/image, serving the loaded source image.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap.Image == nil {
		writeJSONError(w, http.StatusNotFound, "source image not loaded")
		return
	}
	raw, err := snap.Image.Bytes()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode source image")
		writeJSONError(w, http.StatusInternalServerError, "source image unreadable")
		return
	}
	w.Header().Set("Content-Type", snap.Image.MIMEType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(raw))
}

// GetMedia handles GET /media/{id}
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	ref, ok := h.media.Get(mediaID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "media not found")
		return
	}

	w.Header().Set("Content-Type", ref.MIMEType)
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadFilename+`"`)
	}
	http.ServeContent(w, r, "", ref.CreatedAt, ref.Open())
}

// SelectCredential handles POST /v1/credential
func (h *Handler) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req models.SelectCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.credentials.Select(req.APIKey); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.session.CredentialChanged()

	writeJSON(w, http.StatusOK, toStateResponse(h.session.Snapshot()))
}

// CreateAnimation handles POST /v1/animations
func (h *Handler) CreateAnimation(w http.ResponseWriter, r *http.Request) {
	anim, err := h.session.Animate(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, services.ErrNotReady), errors.Is(err, services.ErrNoCredential):
			status = http.StatusPreconditionFailed
		case errors.Is(err, services.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		log.Warn().Err(err).Int("status", status).Msg("Animation rejected")
		writeJSONError(w, status, err.Error())
		return
	}

	log.Info().
		Str("animation_id", anim.ID.String()).
		Bool("admin", auth.IsAdmin(r.Context())).
		Msg("Animation accepted")

	writeJSON(w, http.StatusAccepted, models.CreateAnimationResponse{
		AnimationID: anim.ID,
		Status:      anim.Status,
		CreatedAt:   anim.CreatedAt,
	})
}
