package prompts

import (
	"strings"
	"testing"

	"github.com/pavelanni/teachassist/internal/model"
)

func TestResponseFor(t *testing.T) {
	responses := []model.StudentResponse{
		{QuestionNumber: 1, Response: "Manages hardware and software"},
		{QuestionNumber: 2, Response: ""},
	}

	tests := []struct {
		name   string
		number int
		want   string
	}{
		{"present", 1, "Manages hardware and software"},
		{"empty", 2, NoResponse},
		{"missing", 3, NoResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResponseFor(tt.number, responses); got != tt.want {
				t.Errorf("ResponseFor(%d) = %q, want %q", tt.number, got, tt.want)
			}
		})
	}
}

func TestQuestionBlock(t *testing.T) {
	q := model.AssessmentQuestion{Number: 1, Text: "What is an OS?", MaxScore: 10}
	got := QuestionBlock(q, "Manages hardware")
	want := "Question 1: What is an OS?\n\nStudent Response: Manages hardware\n\nMaximum score: 10"
	if got != want {
		t.Errorf("QuestionBlock() = %q, want %q", got, want)
	}
}

func TestBuildEvalPrompt(t *testing.T) {
	questions := []model.AssessmentQuestion{
		{Number: 2, Text: "Generations of computers", MaxScore: 10},
		{Number: 1, Text: "What is an OS?", MaxScore: 5},
	}
	responses := []model.StudentResponse{{QuestionNumber: 1, Response: "Manages hardware"}}

	prompt, err := BuildEvalPrompt("Jane Doe", questions, responses)
	if err != nil {
		t.Fatalf("BuildEvalPrompt: %v", err)
	}

	for _, want := range []string{
		"You are an expert teacher grading a student assessment.",
		StartMarker,
		EndMarker,
		"Evaluation and Grading of Student Assessment for Jane Doe",
		"2. Generations of computers:\nScore: [SCORE]\n\nFeedback: [DETAILED_FEEDBACK]\n",
		"1. What is an OS?:\nScore: [SCORE]\n\nFeedback: [DETAILED_FEEDBACK]\n",
		"Overall Score: [TOTAL_SCORE]/[MAXIMUM_POSSIBLE] (Approx. [PERCENTAGE]%)",
		"General Feedback:\n[GENERAL_FEEDBACK]",
		"Question 2: Generations of computers\n\nStudent Response: " + NoResponse + "\n\nMaximum score: 10",
		"Question 1: What is an OS?\n\nStudent Response: Manages hardware\n\nMaximum score: 5",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Input order is preserved in both the skeleton and the data section.
	if strings.Index(prompt, "2. Generations") > strings.Index(prompt, "1. What is an OS?") {
		t.Error("skeleton should follow input question order")
	}
	if strings.Index(prompt, "Question 2:") > strings.Index(prompt, "Question 1:") {
		t.Error("assessment data should follow input question order")
	}
	// Question blocks are separated by a blank line.
	if !strings.Contains(prompt, "Maximum score: 10\n\nQuestion 1:") {
		t.Error("question blocks should be joined by a blank line")
	}
	if strings.Index(prompt, StartMarker) > strings.Index(prompt, EndMarker) {
		t.Error("start marker must precede end marker")
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt, err := BuildAnalysisPrompt("My essay about <tags> & things", "clarity, grammar")
	if err != nil {
		t.Fatalf("BuildAnalysisPrompt: %v", err)
	}
	if !strings.Contains(prompt, "based on these criteria: clarity, grammar") {
		t.Error("prompt should contain criteria")
	}
	if !strings.Contains(prompt, "Assignment: My essay about <tags> & things") {
		t.Error("assignment text should be rendered verbatim")
	}
}
