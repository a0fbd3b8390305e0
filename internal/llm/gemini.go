package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/teachassist/internal/model"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel = "gemini-pro"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback json.RawMessage `json:"promptFeedback,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	keys       KeySource
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini creates a Gemini client. Empty baseURL and model select the public defaults.
func NewGemini(keys KeySource, baseURL, modelName string, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Gemini{
		keys:       keys,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      modelName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends the messages and returns the text of the first part of the first candidate.
func (g *Gemini) Complete(ctx context.Context, messages []model.ChatMessage, opts model.CompletionOptions) (string, error) {
	key := g.keys.GenKey()
	if key == "" {
		return "", &model.ConfigurationError{Key: model.KeyGeneration}
	}

	s := resolveOptions(opts)
	body := generateRequest{
		Contents: toGeminiContents(messages),
		GenerationConfig: generationConfig{
			Temperature:     s.temperature,
			TopP:            s.topP,
			TopK:            s.topK,
			MaxOutputTokens: s.maxTokens,
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := g.baseURL + "/" + g.model + ":generateContent?key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// url.Error carries the request URL, which includes the key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return "", &model.ServiceError{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", &model.ServiceError{StatusCode: http.StatusBadGateway, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		var eb geminiErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return "", &model.ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &model.ServiceError{StatusCode: http.StatusBadGateway, Message: "decode response: " + err.Error()}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		if len(out.PromptFeedback) > 0 {
			slog.Warn("generation returned no candidates", "prompt_feedback", string(out.PromptFeedback))
		}
		return "", model.ErrEmptyResponse
	}

	text := out.Candidates[0].Content.Parts[0].Text
	slog.Debug("generation response", "model", g.model, "chars", len(text))
	return text, nil
}

func toGeminiContents(messages []model.ChatMessage) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return contents
}
