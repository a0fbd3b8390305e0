package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/teachassist/internal/i18n"
	"github.com/pavelanni/teachassist/internal/model"
)

// AssignmentsPrefix is the storage prefix for uploaded assignment files.
const AssignmentsPrefix = "assignments/"

func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: appI18n.Td(r.Context(), "ErrFileTooLarge", map[string]any{"Limit": h.config.MaxUploadBytes}),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: appI18n.T(r.Context(), "ErrFileMissing")})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: appI18n.T(r.Context(), "ErrFileMissing")})
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: appI18n.T(r.Context(), "ErrFileMissing")})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Browsers fall back to octet-stream for unknown types; let the storage client sniff those.
	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	meta, err := h.files.Upload(r.Context(), name, AssignmentsPrefix, data, contentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("uploaded assignment", "name", meta.Name, "size", meta.Size, "content_type", meta.ContentType)
	writeJSON(w, http.StatusCreated, meta)
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.List(r.Context(), AssignmentsPrefix)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || strings.Contains(name, "..") {
		h.writeError(w, r, model.ErrNotFound)
		return
	}
	data, err := h.files.Download(r.Context(), AssignmentsPrefix+name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(name)+`"`)
	if _, err := w.Write(data); err != nil {
		slog.Error("write download", "name", name, "error", err)
	}
}
