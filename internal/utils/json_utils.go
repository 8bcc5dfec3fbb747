package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a model reply contains no JSON object
var ErrNoJSONObject = errors.New("no JSON object in response")

// StripCodeFences removes a surrounding markdown code fence such as
// ```json ... ``` from a model reply. Text without a fence is only trimmed.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line, including any language tag
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}

	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the span from the first '{' to the last '}'
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

// DecodeModelJSON unwraps a model reply and decodes it into v. The reply is
// tried as-is after fence stripping, then narrowed to its outermost object.
func DecodeModelJSON(reply string, v any) error {
	s := StripCodeFences(reply)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	obj, err := ExtractJSONObject(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}
