package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the client cannot be built from config.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyPrompt is returned when a generation request has no prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidResponse is returned when the API answers without usable content.
	ErrInvalidResponse = errors.New("invalid response from gemini")

	// ErrContentBlocked is returned when safety filters stopped generation.
	ErrContentBlocked = errors.New("content blocked by safety filters")
)
