package evaluation

import (
	"context"

	"github.com/pavelanni/teachassist/internal/llm"
	"github.com/pavelanni/teachassist/internal/llm/prompts"
	"github.com/pavelanni/teachassist/internal/model"
)

// ChatRequest is a free-form exchange with the teaching assistant.
type ChatRequest struct {
	SystemPrompt string                  `json:"systemPrompt"`
	History      []model.ChatMessage     `json:"history" validate:"dive"`
	Prompt       string                  `json:"prompt" validate:"required"`
	Options      model.CompletionOptions `json:"options"`
}

// Analyze asks for strengths, areas for improvement and a suggested grade for an assignment.
func (s *Service) Analyze(ctx context.Context, assignmentText, criteria string) (string, error) {
	if s.keys.GenKey() == "" {
		return "", &model.ConfigurationError{Key: model.KeyGeneration}
	}
	prompt, err := prompts.BuildAnalysisPrompt(assignmentText, criteria)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "analyze", []model.ChatMessage{
		{Role: model.RoleSystem, Content: prompts.GradingPersona},
		{Role: model.RoleUser, Content: prompt},
	}, llm.Temperature(GradingTemperature))
}

// Chat sends an optional system prompt, the prior history and the new prompt.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if s.keys.GenKey() == "" {
		return "", &model.ConfigurationError{Key: model.KeyGeneration}
	}
	if err := s.validate.Struct(req); err != nil {
		return "", err
	}

	msgs := make([]model.ChatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, model.ChatMessage{Role: model.RoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, model.ChatMessage{Role: model.RoleUser, Content: req.Prompt})
	return s.complete(ctx, "chat", msgs, req.Options)
}
