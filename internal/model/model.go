package model

import (
	"time"
)

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single role-tagged message sent to a chat completion provider.
type ChatMessage struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// CompletionOptions holds optional sampling parameters. Nil fields fall back to provider defaults.
type CompletionOptions struct {
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens   *int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// AssessmentQuestion is one question of an assessment.
type AssessmentQuestion struct {
	Number   int    `json:"number" validate:"gt=0"`
	Text     string `json:"text" validate:"required"`
	MaxScore int    `json:"maxScore" validate:"gt=0"`
}

// StudentResponse is a student's free-text answer to one question.
type StudentResponse struct {
	QuestionNumber int    `json:"questionNumber" validate:"gt=0"`
	Response       string `json:"response"`
}

// Assessment is a teacher-defined, named collection of ordered questions.
type Assessment struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title" validate:"required"`
	Questions []AssessmentQuestion `json:"questions" validate:"required,min=1,unique=Number,dive"`
	CreatedAt time.Time            `json:"createdAt"`
}

// TotalMaxScore returns the sum of all question maximum scores.
func TotalMaxScore(questions []AssessmentQuestion) int {
	total := 0
	for _, q := range questions {
		total += q.MaxScore
	}
	return total
}

// QuestionEvaluation is the graded result of one question.
type QuestionEvaluation struct {
	QuestionNumber  int    `json:"questionNumber"`
	QuestionText    string `json:"questionText"`
	StudentResponse string `json:"studentResponse"`
	Score           string `json:"score"` // e.g. "7/10"
	Feedback        string `json:"feedback"`
}

// AssessmentEvaluation is the full graded result of one student's responses to one assessment.
// It is never mutated after creation.
type AssessmentEvaluation struct {
	StudentName         string               `json:"studentName"`
	StudentID           string               `json:"studentId"`
	AssessmentTitle     string               `json:"assessmentTitle"`
	AssessmentID        string               `json:"assessmentId"`
	Date                time.Time            `json:"date"`
	QuestionEvaluations []QuestionEvaluation `json:"questionEvaluations"`
	OverallScore        string               `json:"overallScore"`      // e.g. "43/60"
	OverallPercentage   string               `json:"overallPercentage"` // e.g. "72"
	GeneralFeedback     string               `json:"generalFeedback"`
}

// FileMetadata describes an object in the storage bucket.
type FileMetadata struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// User is an account allowed to call the API when authentication is enabled.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	LLMProvider    string
	LLMModel       string
	StorageBackend string
	Bucket         string
	Lang           string
	AuthEnabled    bool
	MaxUploadBytes int64
	PersistTimeout time.Duration
}
