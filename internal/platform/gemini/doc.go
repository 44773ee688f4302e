// Package gemini adapts Google's Gemini API to the llm_generate job kind.
//
// The package wraps google.golang.org/genai behind a small Client that turns a
// prompt and sampling options into generated text plus token usage. Errors are
// categorised with the sentinels in errors.go so callers can tell a
// configuration problem from a blocked or empty response.
package gemini
