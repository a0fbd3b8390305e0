package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/teachassist/internal/credentials"
	appI18n "github.com/pavelanni/teachassist/internal/i18n"
	"github.com/pavelanni/teachassist/internal/model"
)

type keysResponse struct {
	GenKey     string `json:"generation_key"`
	StorageKey string `json:"storage_key"`
	GenSet     bool   `json:"generation_key_set"`
	StorageSet bool   `json:"storage_key_set"`
}

// handleGetKeys never returns raw keys.
func (h *Handler) handleGetKeys(w http.ResponseWriter, _ *http.Request) {
	k := h.keys.Keys()
	writeJSON(w, http.StatusOK, keysResponse{
		GenKey:     credentials.Mask(k.GenKey),
		StorageKey: credentials.Mask(k.StorageKey),
		GenSet:     k.GenKey != "",
		StorageSet: k.StorageKey != "",
	})
}

func (h *Handler) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	var u credentials.Update
	if !h.decode(w, r, &u) {
		return
	}
	if err := h.keys.SetKeys(u); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("API keys updated", "generation_key", u.GenKey != nil, "storage_key", u.StorageKey != nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "KeysSaved")})
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAssessments()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Assessment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var a model.Assessment
	if !h.decode(w, r, &a) {
		return
	}
	if err := h.validate.Struct(a); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.store.CreateAssessment(a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.store.GetAssessment(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("created assessment", "id", id, "title", created.Title, "questions", len(created.Questions))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "assessmentID"), 10, 64)
	if err != nil {
		h.writeError(w, r, model.ErrNotFound)
		return
	}
	a, err := h.store.GetAssessment(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
