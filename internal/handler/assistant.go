package handler

import (
	"net/http"

	"github.com/pavelanni/teachassist/internal/evaluation"
)

type analyzeRequest struct {
	AssignmentText string `json:"assignmentText" validate:"required"`
	Criteria       string `json:"criteria"`
}

type textResponse struct {
	Text string `json:"text"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	text, err := h.evaluator.Analyze(r.Context(), req.AssignmentText, req.Criteria)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: text})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req evaluation.ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	text, err := h.evaluator.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: text})
}
