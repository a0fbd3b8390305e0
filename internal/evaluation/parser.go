package evaluation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/teachassist/internal/llm/prompts"
	"github.com/pavelanni/teachassist/internal/model"
)

var (
	envelopeRegex = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(prompts.StartMarker) + `(.*)` + regexp.QuoteMeta(prompts.EndMarker))
	// Ends a feedback section: the next numbered question or the overall score line.
	feedbackEndRegex = regexp.MustCompile(`(?i)\n\d+\.|\n\s*Overall Score:`)
	overallRegex     = regexp.MustCompile(`Overall Score: ([^(]*).*?(\d+)%\)`)
	generalRegex     = regexp.MustCompile(`(?s)General Feedback:\s*(.*)`)
	scoreRegex       = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)\s*$`)
)

// ParsedQuestion is one question block extracted from the model reply.
type ParsedQuestion struct {
	Number   int
	Score    string
	Feedback string
}

// ParsedEvaluation is the structured content of a model reply.
type ParsedEvaluation struct {
	Questions         []ParsedQuestion // in expected order, unmatched numbers omitted
	Missing           []int            // expected numbers with no matching block
	OverallScore      string
	OverallPercentage string
	GeneralFeedback   string
}

// ParseEvaluationText extracts the evaluation skeleton from raw model output.
// It fails only when the sentinel markers are absent; question blocks that do
// not match are reported in Missing instead.
func ParseEvaluationText(raw string, expected []int) (ParsedEvaluation, error) {
	m := envelopeRegex.FindStringSubmatch(raw)
	if m == nil {
		return ParsedEvaluation{}, &model.ParseError{Reason: "evaluation markers not found in model reply"}
	}
	text := strings.TrimSpace(m[1])

	var out ParsedEvaluation
	for _, n := range expected {
		score, feedback, ok := findQuestionBlock(text, n)
		if !ok {
			out.Missing = append(out.Missing, n)
			continue
		}
		out.Questions = append(out.Questions, ParsedQuestion{Number: n, Score: score, Feedback: feedback})
	}

	if om := overallRegex.FindStringSubmatch(text); om != nil {
		out.OverallScore = strings.TrimSpace(om[1])
		out.OverallPercentage = strings.TrimSpace(om[2])
	}
	if gm := generalRegex.FindStringSubmatch(text); gm != nil {
		out.GeneralFeedback = strings.TrimSpace(gm[1])
	}
	return out, nil
}

// findQuestionBlock finds "N. <text>:\nScore: <score>\n\nFeedback: <feedback>" where the
// feedback runs up to the next numbered line or "Overall Score:". A header with no such
// terminator after it is skipped and the search resumes after it.
func findQuestionBlock(text string, number int) (score, feedback string, ok bool) {
	head := regexp.MustCompile(`(?i)` + strconv.Itoa(number) + `\. [^:]*:\s*\nScore: ([^\n]*)\s*\n\s*Feedback: `)

	offset := 0
	for offset < len(text) {
		loc := head.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			return "", "", false
		}
		bodyStart := offset + loc[1]
		end := feedbackEndRegex.FindStringIndex(text[bodyStart:])
		if end != nil {
			score = strings.TrimSpace(text[offset+loc[2] : offset+loc[3]])
			feedback = strings.TrimSpace(text[bodyStart : bodyStart+end[0]])
			return score, feedback, true
		}
		offset += loc[0] + 1
	}
	return "", "", false
}

// ParseScore splits an "earned/total" score.
func ParseScore(s string) (earned, total float64, err error) {
	m := scoreRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid score %q", s)
	}
	earned, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	total, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	return earned, total, nil
}

// FormatScore renders an "earned/total" score.
func FormatScore(earned, total float64) string {
	return strconv.FormatFloat(earned, 'f', -1, 64) + "/" + strconv.FormatFloat(total, 'f', -1, 64)
}
