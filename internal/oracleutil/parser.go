// internal/oracleutil/parser.go
package oracleutil

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// Regex definitions use \x60 for backticks because Go raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object wrapped in a markdown fence.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array wrapped in a markdown fence.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
	// codeBlockRegex extracts content wrapped in markdown with any language tag.
	codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// Result is the tagged outcome of extracting structure from untrusted oracle
// text. A failed extraction is a normal rejection path, never an exception
// used for control flow.
type Result[T any] struct {
	OK     bool
	Value  T
	Reason string
}

func failure[T any](reason string) Result[T] {
	return Result[T]{OK: false, Reason: reason}
}

// ExtractJSON attempts to locate and decode a JSON object or array embedded
// in free-form oracle output. It tolerates markdown fences and surrounding
// conversational text.
func ExtractJSON[T any](response string) Result[T] {
	response = strings.TrimSpace(response)
	if response == "" {
		return failure[T]("empty response")
	}

	candidate := response
	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if !isObject && !isArray {
		return failure[T]("no JSON structure present")
	}

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			candidate = matches[1]
		}
	} else if !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		// Find the structure embedded in conversational text.
		if s, ok := sliceBrackets(response, "{", "}"); ok {
			candidate = s
		} else if s, ok := sliceBrackets(response, "[", "]"); ok {
			candidate = s
		}
	}

	var value T
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return failure[T]("unmarshal failed: " + err.Error() + "; extracted: " + Truncate(candidate, 200))
	}
	return Result[T]{OK: true, Value: value}
}

func sliceBrackets(s, open, close string) (string, bool) {
	first := strings.Index(s, open)
	last := strings.LastIndex(s, close)
	if first == -1 || last == -1 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}

// CleanCodeOutput removes markdown artifacts (```go, ```diff and the like)
// from a code or patch string.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	matches := codeBlockRegex.FindStringSubmatch(content)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return content
}

// Truncate shortens s for error messages and log fields.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
