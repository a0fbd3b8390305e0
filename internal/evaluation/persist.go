package evaluation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pavelanni/teachassist/internal/metrics"
	"github.com/pavelanni/teachassist/internal/model"
)

// PersistTask is the outcome of a background evaluation write.
type PersistTask struct {
	done chan struct{}
	meta model.FileMetadata
	err  error
}

// Done is closed when the write has finished.
func (t *PersistTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the write finishes or ctx is done, and returns its result.
func (t *PersistTask) Wait(ctx context.Context) (model.FileMetadata, error) {
	select {
	case <-t.done:
		return t.meta, t.err
	case <-ctx.Done():
		return model.FileMetadata{}, ctx.Err()
	}
}

// persist writes the record in the background. The write outlives the request context
// but is bounded by the persist timeout.
func (s *Service) persist(ctx context.Context, eval model.AssessmentEvaluation) *PersistTask {
	task := &PersistTask{done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		defer close(task.done)

		data, err := json.MarshalIndent(eval, "", "  ")
		if err != nil {
			task.err = err
			slog.Error("error encoding evaluation", "assessment_id", eval.AssessmentID, "error", err)
			metrics.Persist().WithLabelValues(metrics.OutcomeError).Inc()
			return
		}

		task.meta, task.err = s.storage.Upload(ctx, RecordName(eval.StudentID, eval.AssessmentID),
			StudentPrefix(eval.StudentID), data, "application/json")
		switch {
		case task.err == nil:
			slog.Info("evaluation stored", "assessment_id", eval.AssessmentID, "name", task.meta.Name)
			metrics.Persist().WithLabelValues(metrics.OutcomeSuccess).Inc()
		case model.IsConfigurationError(task.err):
			slog.Warn("storage key not configured, evaluation will not be stored", "assessment_id", eval.AssessmentID)
			metrics.Persist().WithLabelValues(metrics.OutcomeSkipped).Inc()
		default:
			slog.Warn("failed to store evaluation", "assessment_id", eval.AssessmentID, "error", task.err)
			metrics.Persist().WithLabelValues(metrics.OutcomeError).Inc()
		}
	}()
	return task
}
