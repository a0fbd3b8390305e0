// Package handler exposes the JSON API consumed by the TeachAssist dashboard.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/teachassist/internal/credentials"
	"github.com/pavelanni/teachassist/internal/evaluation"
	appI18n "github.com/pavelanni/teachassist/internal/i18n"
	"github.com/pavelanni/teachassist/internal/model"
)

// Evaluator is the evaluation and assistant service, satisfied by *evaluation.Service.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (model.AssessmentEvaluation, *evaluation.PersistTask, error)
	GetEvaluation(ctx context.Context, studentID, assessmentID string) (model.AssessmentEvaluation, error)
	ListEvaluations(ctx context.Context, studentID string) ([]model.AssessmentEvaluation, error)
	Analyze(ctx context.Context, assignmentText, criteria string) (string, error)
	Chat(ctx context.Context, req evaluation.ChatRequest) (string, error)
}

// KeyStore is the credential store, satisfied by *credentials.Provider.
type KeyStore interface {
	Keys() credentials.Keys
	SetKeys(u credentials.Update) error
}

// Store is the relational storage, satisfied by *store.Store.
type Store interface {
	CreateAssessment(a model.Assessment) (int64, error)
	GetAssessment(id int64) (model.Assessment, error)
	ListAssessments() ([]model.Assessment, error)
	GetUserByUsername(username string) (*model.User, error)
}

// Files is the object storage client, satisfied by *objstore.Client.
type Files interface {
	Upload(ctx context.Context, fileName, pathPrefix string, data []byte, contentType string) (model.FileMetadata, error)
	Download(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]model.FileMetadata, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     Store
	keys      KeyStore
	evaluator Evaluator
	files     Files
	validate  *validator.Validate
	config    model.Config
}

// New creates a new Handler.
func New(s Store, keys KeyStore, ev Evaluator, files Files, validate *validator.Validate, cfg model.Config) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{store: s, keys: keys, evaluator: ev, files: files, validate: validate, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		if h.config.AuthEnabled {
			api.Use(h.basicAuth)
		}

		api.Get("/keys", h.handleGetKeys)
		api.Post("/keys", h.handleSetKeys)

		api.Get("/assessments", h.handleListAssessments)
		api.Post("/assessments", h.handleCreateAssessment)
		api.Get("/assessments/{assessmentID}", h.handleGetAssessment)

		api.Post("/evaluations", h.handleEvaluate)
		api.Get("/students/{studentID}/evaluations", h.handleListEvaluations)
		api.Get("/students/{studentID}/evaluations/{assessmentID}", h.handleGetEvaluation)

		api.Post("/analyze", h.handleAnalyze)
		api.Post("/chat", h.handleChat)

		api.Get("/files", h.handleListFiles)
		api.Post("/files", h.handleUploadFile)
		api.Get("/files/*", h.handleDownloadFile)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	evalReq := evaluation.Request{
		StudentName:     req.StudentName,
		StudentID:       req.StudentID,
		AssessmentTitle: req.AssessmentTitle,
		Questions:       req.Questions,
		Responses:       req.Responses,
	}
	if req.AssessmentID != 0 {
		a, err := h.store.GetAssessment(req.AssessmentID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		evalReq.Questions = a.Questions
		if evalReq.AssessmentTitle == "" {
			evalReq.AssessmentTitle = a.Title
		}
	}

	eval, _, err := h.evaluator.Evaluate(r.Context(), evalReq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// evaluateRequest either inlines the questions or references a stored assessment.
type evaluateRequest struct {
	StudentName     string                     `json:"studentName"`
	StudentID       string                     `json:"studentId"`
	AssessmentTitle string                     `json:"assessmentTitle"`
	AssessmentID    int64                      `json:"assessmentDefinitionId"`
	Questions       []model.AssessmentQuestion `json:"questions"`
	Responses       []model.StudentResponse    `json:"responses"`
}

func (h *Handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.evaluator.ListEvaluations(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     appI18n.Tp(r.Context(), "EvaluationsFound", len(evals)),
		"evaluations": evals,
	})
}

func (h *Handler) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	eval, err := h.evaluator.GetEvaluation(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "assessmentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// decode reads a JSON body into dst. On failure it writes a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("invalid JSON body", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: appI18n.T(r.Context(), "ErrInvalidJSON")})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps the error taxonomy to a status code and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		ce    *model.ConfigurationError
		se    *model.ServiceError
		pe    *model.ParseError
		verrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ce):
		msgID := "ErrGenKeyMissing"
		if ce.Key == model.KeyStorage {
			msgID = "ErrStorageKeyMissing"
		}
		writeJSON(w, http.StatusPreconditionFailed, errorBody{Error: appI18n.T(ctx, msgID)})
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error: appI18n.Td(ctx, "ErrServiceUnavailable", map[string]any{"Message": se.Message}),
		})
	case errors.Is(err, model.ErrEmptyResponse):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: appI18n.T(ctx, "ErrEmptyResponse")})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: appI18n.T(ctx, "ErrUnparsable")})
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: appI18n.Td(ctx, "ErrInvalidRequest", map[string]any{"Detail": verrs.Error()}),
		})
	case errors.Is(err, model.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorBody{Error: appI18n.T(ctx, "ErrNotFound")})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: appI18n.T(ctx, "ErrInternal")})
	}
}
