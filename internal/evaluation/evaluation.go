// Package evaluation grades student responses through the generation service.
//
// Evaluate builds the grading prompt, sends it as a single chat completion,
// parses the reply into an AssessmentEvaluation and writes the record to
// object storage in the background. Storage failures never fail an evaluation.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pavelanni/teachassist/internal/llm"
	"github.com/pavelanni/teachassist/internal/llm/prompts"
	"github.com/pavelanni/teachassist/internal/metrics"
	"github.com/pavelanni/teachassist/internal/model"
)

// GradingTemperature keeps grading output low-variance.
const GradingTemperature = 0.3

// EvaluationsPrefix is the storage prefix under which records are namespaced by student.
const EvaluationsPrefix = "evaluations/"

// Storage is the object storage used for evaluation records, satisfied by *objstore.Client.
type Storage interface {
	Upload(ctx context.Context, fileName, pathPrefix string, data []byte, contentType string) (model.FileMetadata, error)
	Download(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]model.FileMetadata, error)
}

// Request is the input of Evaluate.
type Request struct {
	StudentName     string                     `json:"studentName" validate:"required"`
	StudentID       string                     `json:"studentId" validate:"required,excludesall=/\\"`
	AssessmentTitle string                     `json:"assessmentTitle" validate:"required"`
	Questions       []model.AssessmentQuestion `json:"questions" validate:"required,min=1,unique=Number,dive"`
	Responses       []model.StudentResponse    `json:"responses" validate:"dive"`
}

// Service is safe for concurrent use.
type Service struct {
	llm            llm.Completer
	keys           llm.KeySource
	storage        Storage
	validate       *validator.Validate
	persistTimeout time.Duration

	now   func() time.Time
	newID func() string

	pending sync.WaitGroup
}

// NewService creates an evaluation service.
func NewService(completer llm.Completer, keys llm.KeySource, storage Storage, validate *validator.Validate, persistTimeout time.Duration) *Service {
	if persistTimeout <= 0 {
		persistTimeout = time.Minute
	}
	return &Service{
		llm:            completer,
		keys:           keys,
		storage:        storage,
		validate:       validate,
		persistTimeout: persistTimeout,
		now:            time.Now,
		newID:          newAssessmentID,
	}
}

func newAssessmentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("ASMT-%d", time.Now().UnixMilli())
	}
	return "ASMT-" + id.String()
}

// Evaluate grades one student's responses. The returned task reports the outcome of the
// background write; callers may ignore it.
func (s *Service) Evaluate(ctx context.Context, req Request) (model.AssessmentEvaluation, *PersistTask, error) {
	if s.keys.GenKey() == "" {
		metrics.Evaluations().WithLabelValues(metrics.OutcomeConfiguration).Inc()
		return model.AssessmentEvaluation{}, nil, &model.ConfigurationError{Key: model.KeyGeneration}
	}
	if err := s.validate.Struct(req); err != nil {
		return model.AssessmentEvaluation{}, nil, err
	}

	prompt, err := prompts.BuildEvalPrompt(req.StudentName, req.Questions, req.Responses)
	if err != nil {
		return model.AssessmentEvaluation{}, nil, err
	}

	raw, err := s.complete(ctx, "evaluate", []model.ChatMessage{
		{Role: model.RoleSystem, Content: prompts.GradingPersona},
		{Role: model.RoleUser, Content: prompt},
	}, llm.Temperature(GradingTemperature))
	if err != nil {
		metrics.Evaluations().WithLabelValues(outcomeFor(err)).Inc()
		return model.AssessmentEvaluation{}, nil, err
	}

	numbers := make([]int, len(req.Questions))
	for i, q := range req.Questions {
		numbers[i] = q.Number
	}
	parsed, err := ParseEvaluationText(raw, numbers)
	if err != nil {
		slog.Warn("unparsable evaluation reply", "student_id", req.StudentID, "chars", len(raw))
		metrics.Evaluations().WithLabelValues(metrics.OutcomeParse).Inc()
		return model.AssessmentEvaluation{}, nil, err
	}

	eval := s.assemble(req, parsed)
	metrics.Evaluations().WithLabelValues(metrics.OutcomeSuccess).Inc()
	slog.Info("assessment evaluated",
		"student_id", eval.StudentID,
		"assessment_id", eval.AssessmentID,
		"questions", len(eval.QuestionEvaluations),
		"overall_score", eval.OverallScore,
	)

	return eval, s.persist(ctx, eval), nil
}

func (s *Service) assemble(req Request, parsed ParsedEvaluation) model.AssessmentEvaluation {
	byNumber := make(map[int]model.AssessmentQuestion, len(req.Questions))
	for _, q := range req.Questions {
		byNumber[q.Number] = q
	}

	for _, n := range parsed.Missing {
		slog.Warn("question block missing from evaluation reply", "student_id", req.StudentID, "question", n)
		metrics.DroppedQuestions().Inc()
	}

	evals := make([]model.QuestionEvaluation, 0, len(parsed.Questions))
	var earnedSum float64
	for _, pq := range parsed.Questions {
		q := byNumber[pq.Number]
		earned, total, err := ParseScore(pq.Score)
		switch {
		case err != nil:
			slog.Warn("question score is not a fraction", "question", pq.Number, "score", pq.Score)
		case earned > total:
			slog.Warn("dropping question with score above its total", "question", pq.Number, "score", pq.Score)
			metrics.DroppedQuestions().Inc()
			continue
		default:
			earnedSum += earned
			if total != float64(q.MaxScore) {
				slog.Warn("question score total differs from max score",
					"question", pq.Number, "score", pq.Score, "max_score", q.MaxScore)
				metrics.ScoreMismatches().WithLabelValues("question_total").Inc()
			}
		}

		evals = append(evals, model.QuestionEvaluation{
			QuestionNumber:  pq.Number,
			QuestionText:    q.Text,
			StudentResponse: responseText(pq.Number, req.Responses),
			Score:           pq.Score,
			Feedback:        pq.Feedback,
		})
	}

	if earned, total, err := ParseScore(parsed.OverallScore); err == nil {
		if total != float64(model.TotalMaxScore(req.Questions)) {
			slog.Warn("overall score total differs from sum of max scores",
				"overall_score", parsed.OverallScore, "max_total", model.TotalMaxScore(req.Questions))
			metrics.ScoreMismatches().WithLabelValues("overall_total").Inc()
		}
		if len(parsed.Missing) == 0 && earned != earnedSum {
			slog.Warn("overall score differs from sum of question scores",
				"overall_score", parsed.OverallScore, "question_sum", earnedSum)
			metrics.ScoreMismatches().WithLabelValues("overall_sum").Inc()
		}
	}

	return model.AssessmentEvaluation{
		StudentName:         req.StudentName,
		StudentID:           req.StudentID,
		AssessmentTitle:     req.AssessmentTitle,
		AssessmentID:        s.newID(),
		Date:                s.now().UTC(),
		QuestionEvaluations: evals,
		OverallScore:        parsed.OverallScore,
		OverallPercentage:   parsed.OverallPercentage,
		GeneralFeedback:     parsed.GeneralFeedback,
	}
}

func responseText(number int, responses []model.StudentResponse) string {
	for _, r := range responses {
		if r.QuestionNumber == number {
			return r.Response
		}
	}
	return ""
}

func (s *Service) complete(ctx context.Context, op string, msgs []model.ChatMessage, opts model.CompletionOptions) (string, error) {
	start := time.Now()
	raw, err := s.llm.Complete(ctx, msgs, opts)
	metrics.CompletionLatency().WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("chat completion failed", "operation", op, "error", err)
	}
	return raw, err
}

func outcomeFor(err error) string {
	var se *model.ServiceError
	switch {
	case model.IsConfigurationError(err):
		return metrics.OutcomeConfiguration
	case errors.As(err, &se):
		return metrics.OutcomeService
	case errors.Is(err, model.ErrEmptyResponse):
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeError
	}
}

// StudentPrefix returns the storage prefix holding a student's evaluations.
func StudentPrefix(studentID string) string {
	return EvaluationsPrefix + studentID + "/"
}

// RecordName returns the file name of an evaluation record.
func RecordName(studentID, assessmentID string) string {
	return studentID + "_" + assessmentID + ".json"
}

func (s *Service) checkID(id string) error {
	return s.validate.Var(id, "required,excludesall=/\\")
}

// GetEvaluation returns a stored evaluation, or model.ErrNotFound.
func (s *Service) GetEvaluation(ctx context.Context, studentID, assessmentID string) (model.AssessmentEvaluation, error) {
	if err := s.checkID(studentID); err != nil {
		return model.AssessmentEvaluation{}, err
	}
	if err := s.checkID(assessmentID); err != nil {
		return model.AssessmentEvaluation{}, err
	}
	data, err := s.storage.Download(ctx, StudentPrefix(studentID)+RecordName(studentID, assessmentID))
	if err != nil {
		return model.AssessmentEvaluation{}, err
	}
	var eval model.AssessmentEvaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return model.AssessmentEvaluation{}, fmt.Errorf("decode evaluation %s: %w", assessmentID, err)
	}
	return eval, nil
}

// ListEvaluations returns all stored evaluations for a student, most recent first.
// Records that cannot be read are logged and skipped.
func (s *Service) ListEvaluations(ctx context.Context, studentID string) ([]model.AssessmentEvaluation, error) {
	if err := s.checkID(studentID); err != nil {
		return nil, err
	}
	files, err := s.storage.List(ctx, StudentPrefix(studentID))
	if err != nil {
		return nil, err
	}

	evals := []model.AssessmentEvaluation{}
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		data, err := s.storage.Download(ctx, f.Name)
		if err != nil {
			slog.Warn("error reading stored evaluation", "name", f.Name, "error", err)
			continue
		}
		var eval model.AssessmentEvaluation
		if err := json.Unmarshal(data, &eval); err != nil {
			slog.Warn("error parsing stored evaluation", "name", f.Name, "error", err)
			continue
		}
		evals = append(evals, eval)
	}

	sort.SliceStable(evals, func(i, j int) bool {
		if !evals[i].Date.Equal(evals[j].Date) {
			return evals[i].Date.After(evals[j].Date)
		}
		return evals[i].AssessmentID > evals[j].AssessmentID
	})
	return evals, nil
}

// Wait blocks until all pending background writes finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
