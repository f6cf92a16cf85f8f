// Package prompts provides centralized prompt management for SmartSpec.
// Every model-facing prompt is stored as a text/template file and embedded
// at compile time, so the binary carries its full prompt surface and
// template errors fail at startup instead of mid-workflow.
package prompts

import "errors"

// Package errors for prompt management.
var (
	// ErrTemplateNotFound indicates the requested template doesn't exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateExecution indicates a failure during template execution.
	ErrTemplateExecution = errors.New("template execution failed")

	// ErrInvalidData indicates the provided data doesn't match expected type.
	ErrInvalidData = errors.New("invalid data type for template")
)
