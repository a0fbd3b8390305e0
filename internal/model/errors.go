package model

import (
	"errors"
	"fmt"
)

// Credential names used in ConfigurationError.
const (
	KeyGeneration = "generation"
	KeyStorage    = "storage"
)

// ConfigurationError reports a missing credential.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s API key is not configured", e.Key)
}

// ServiceError reports a non-success response from the generation service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service error (%d): %s", e.StatusCode, e.Message)
}

// ParseError reports model output that could not be turned into an evaluation.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse evaluation: " + e.Reason
}

var (
	// ErrEmptyResponse is returned when the generation service answers with zero candidates.
	ErrEmptyResponse = errors.New("no response generated from the AI model")
	// ErrNotFound is returned when a stored object or record does not exist.
	ErrNotFound = errors.New("not found")
)

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
