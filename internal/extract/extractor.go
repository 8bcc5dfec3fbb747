// Package extract pulls sender, subject and body out of raw email text.
// It never fails: missing pieces fall back to sentinel values.
package extract

import (
	"mime"
	"regexp"
	"strings"
)

const (
	// UnknownSender is used when no From header carries an address
	UnknownSender = "unknown@example.com"
	// NoSubject is used when the message has no Subject header
	NoSubject = "No subject"
)

var (
	fromLine    = regexp.MustCompile(`(?im)^[ \t]*From:[ \t]*(.*)$`)
	subjectLine = regexp.MustCompile(`(?im)^[ \t]*Subject:[ \t]*(.*)$`)

	bracketAddress = regexp.MustCompile(`<\s*([^<>\s@]+@[^<>\s@]+)\s*>`)
	bareAddress    = regexp.MustCompile(`[^<>\s@"',;:()]+@[^<>\s@"',;:()]+`)

	wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}
)

// Email holds the fields pulled out of a raw message
type Email struct {
	Sender  string
	Subject string
	Body    string
}

// Parse splits a raw email into its sender, subject and body
func Parse(raw string) Email {
	header, body := splitHeaderBody(raw)
	return Email{
		Sender:  Sender(raw),
		Subject: Subject(raw),
		Body:    textBody(header, body),
	}
}

// Sender returns the first address on the first From line, preferring the
// angle-bracketed form
func Sender(raw string) string {
	m := fromLine.FindStringSubmatch(raw)
	if m == nil {
		return UnknownSender
	}
	value := m[1]

	if b := bracketAddress.FindStringSubmatch(value); b != nil {
		return strings.TrimRight(b[1], ".")
	}
	if addr := bareAddress.FindString(value); addr != "" {
		return strings.TrimRight(addr, ".")
	}
	return UnknownSender
}

// Subject returns the trimmed, RFC 2047 decoded remainder of the Subject line
func Subject(raw string) string {
	m := subjectLine.FindStringSubmatch(raw)
	if m == nil {
		return NoSubject
	}
	subject := strings.TrimSpace(m[1])
	if subject == "" {
		return NoSubject
	}
	if decoded, err := wordDecoder.DecodeHeader(subject); err == nil {
		subject = strings.TrimSpace(decoded)
	}
	return subject
}

// Body returns everything after the first blank line, or the whole input
// when there is none
func Body(raw string) string {
	_, body := splitHeaderBody(raw)
	return body
}

// splitHeaderBody splits on the first blank line. Without one, the header
// is empty and the whole input is the body.
func splitHeaderBody(raw string) (string, string) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.HasPrefix(normalized, "\n") {
		return "", normalized[1:]
	}
	idx := strings.Index(normalized, "\n\n")
	if idx < 0 {
		return "", normalized
	}
	return normalized[:idx], normalized[idx+2:]
}
