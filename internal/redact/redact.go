// Package redact removes credentials from strings before they are logged,
// recorded as a task's command line, or returned in error responses. Job
// parameters such as registry URLs and build arguments routinely carry
// secrets, and task logs are readable by any API client.
package redact

import (
	"regexp"
	"strconv"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Precompiled rules, applied in order
var rules = []rule{
	// user:password@ in any URL (registry, database, proxy)
	{
		regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s:]+:[^/@\s]+@`),
		"${1}" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]+`),
		"Bearer " + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	// Google API keys, as used for Gemini
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)([=:]\s*|\s+)['"]?[^'"&\s]{3,}`),
		RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		RedactedStackPlaceholder,
	},
}

// sensitiveNameRegex matches the name half of NAME=value arguments whose value
// must not be recorded.
var sensitiveNameRegex = regexp.MustCompile(`(?i)(pass|secret|token|key|auth|credential)`)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// Command renders an argument vector as a single shell-like line with the
// values of sensitive NAME=value arguments replaced. Arguments containing
// whitespace are quoted.
func Command(args []string) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if name, _, ok := strings.Cut(arg, "="); ok && name != "" &&
			!strings.HasPrefix(name, "-") && sensitiveNameRegex.MatchString(name) {
			arg = name + "=" + RedactionPlaceholder
		}
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return String(strings.Join(parts, " "))
}
