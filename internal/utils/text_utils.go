package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// truncationMarker is appended to text cut down to the prompt budget
const truncationMarker = "\n[... Content truncated due to size limits ...]"

// TextProcessor prepares email text before it is embedded in a prompt
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText cuts text to at most maxSize bytes without splitting a rune.
// A non-positive maxSize disables truncation.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + truncationMarker
}

// SanitizeUTF8 drops invalid byte sequences and NFC-normalises the result
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if !utf8.ValidString(text) {
		cleaned := strings.ToValidUTF8(text, "")
		tp.logger.Debug("Text sanitized",
			zap.Int("original_size", len(text)),
			zap.Int("sanitized_size", len(cleaned)))
		text = cleaned
	}
	return norm.NFC.String(text)
}

// ProcessText sanitizes then truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(tp.SanitizeUTF8(text), maxSize)
}
