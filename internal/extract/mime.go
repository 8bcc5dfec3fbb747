package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// textBody reduces a multipart body to its text/plain parts. Anything that
// cannot be parsed as multipart is returned unchanged.
func textBody(header, body string) string {
	if header == "" {
		return body
	}

	msg, err := mail.ReadMessage(strings.NewReader(header + "\n\n" + body))
	if err != nil {
		return body
	}

	contentType := msg.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		return body
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return body
	}

	boundary, ok := params["boundary"]
	if !ok {
		return body
	}

	text, err := plainParts(multipart.NewReader(msg.Body, boundary))
	if err != nil || text == "" {
		return body
	}
	return text
}

// plainParts concatenates the text/plain parts of a multipart reader,
// descending into nested multipart/alternative or multipart/mixed parts
func plainParts(mr *multipart.Reader) (string, error) {
	var textContent bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if textContent.Len() > 0 {
				return textContent.String(), nil
			}
			return "", err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			// parts without a Content-Type default to text/plain
			mediaType = "text/plain"
		}

		switch {
		case mediaType == "text/plain":
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			textContent.Write(partBytes)
			textContent.WriteString("\n")
		case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
			nested, err := plainParts(multipart.NewReader(part, params["boundary"]))
			if err == nil {
				textContent.WriteString(nested)
			}
		}
	}

	return strings.TrimRight(textContent.String(), "\n"), nil
}

// charsetReader resolves charsets that mime.WordDecoder does not know natively
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
