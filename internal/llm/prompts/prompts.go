// Package prompts renders the prompts sent to the generation service.
//
// The evaluation prompt is a contract with the parser in package evaluation:
// the model is asked to reproduce a literal skeleton bounded by StartMarker and
// EndMarker, and the parser depends on it. Change both sides together.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pavelanni/teachassist/internal/model"
)

const (
	StartMarker = "***EVALUATION_START***"
	EndMarker   = "***EVALUATION_END***"

	// NoResponse replaces a missing or empty student response in the prompt.
	NoResponse = "No response provided"

	// GradingPersona is the system message for grading and analysis requests.
	GradingPersona = "You are an AI teaching assistant specialized in evaluating student assignments fairly and constructively."
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// EvalData holds template data for the evaluation prompt.
type EvalData struct {
	StudentName    string
	StartMarker    string
	EndMarker      string
	Skeleton       string
	AssessmentData string
}

// AnalysisData holds template data for the assignment analysis prompt.
type AnalysisData struct {
	AssignmentText string
	Criteria       string
}

// ResponseFor returns the student's response to a question, or NoResponse.
func ResponseFor(number int, responses []model.StudentResponse) string {
	for _, r := range responses {
		if r.QuestionNumber == number {
			if r.Response == "" {
				break
			}
			return r.Response
		}
	}
	return NoResponse
}

// QuestionBlock renders one question with its response for the assessment data section.
func QuestionBlock(q model.AssessmentQuestion, response string) string {
	return fmt.Sprintf("Question %d: %s\n\nStudent Response: %s\n\nMaximum score: %d", q.Number, q.Text, response, q.MaxScore)
}

// SkeletonBlock renders the response skeleton the model must reproduce for one question.
func SkeletonBlock(q model.AssessmentQuestion) string {
	return fmt.Sprintf("%d. %s:\nScore: [SCORE]\n\nFeedback: [DETAILED_FEEDBACK]\n", q.Number, q.Text)
}

// BuildEvalPrompt builds the grading prompt. Questions are rendered in input order.
func BuildEvalPrompt(studentName string, questions []model.AssessmentQuestion, responses []model.StudentResponse) (string, error) {
	data := make([]string, 0, len(questions))
	skeleton := make([]string, 0, len(questions))
	for _, q := range questions {
		data = append(data, QuestionBlock(q, ResponseFor(q.Number, responses)))
		skeleton = append(skeleton, SkeletonBlock(q))
	}

	return execute("evaluation.tmpl", EvalData{
		StudentName:    studentName,
		StartMarker:    StartMarker,
		EndMarker:      EndMarker,
		Skeleton:       strings.Join(skeleton, "\n"),
		AssessmentData: strings.Join(data, "\n\n"),
	})
}

// BuildAnalysisPrompt builds the free-text assignment analysis prompt.
func BuildAnalysisPrompt(assignmentText, criteria string) (string, error) {
	return execute("analysis.tmpl", AnalysisData{
		AssignmentText: assignmentText,
		Criteria:       criteria,
	})
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
