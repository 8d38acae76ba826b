package mailapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MailID is the opaque identifier the mail service assigns to a message.
// The service may encode it as a JSON number or a JSON string; both decode
// to the same textual form.
type MailID string

func (id *MailID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("mail ID is empty")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MailID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("mail ID %s is neither a string nor a number", data)
	}
	*id = MailID(n.String())
	return nil
}

func (id MailID) String() string { return string(id) }

// Recipients is the To field of a summary. The reference service stores a
// list of addresses, other services send a single string.
type Recipients string

func (r *Recipients) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ""
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*r = Recipients(strings.Join(list, ", "))
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Recipients(s)
		return nil
	}
}

// Summary is one row of the mail index. Field names match the service's
// JSON keys exactly.
type Summary struct {
	ID      MailID     `json:"ID"`
	Subject string     `json:"Subject"`
	From    string     `json:"From"`
	To      Recipients `json:"To"`
	Date    string     `json:"Date"`
}

// Content is an open response from the content endpoint. The headers are
// available as soon as it is returned; the body is read by ReadText.
type Content struct {
	ContentType string

	body io.ReadCloser
}

// NewContent wraps an already open body.
func NewContent(contentType string, body io.ReadCloser) *Content {
	return &Content{ContentType: contentType, body: body}
}

// ReadText reads the whole body as raw text and closes it.
func (c *Content) ReadText() (string, error) {
	defer c.body.Close()
	data, err := io.ReadAll(c.body)
	if err != nil {
		return "", fmt.Errorf("%w: reading mail content: %v", ErrNetwork, err)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// Close releases the body without reading it.
func (c *Content) Close() error {
	return c.body.Close()
}

// IsHTML reports whether the declared content type marks the body as markup.
func (c *Content) IsHTML() bool {
	return IsHTMLContentType(c.ContentType)
}

// IsHTMLContentType classifies a Content-Type header value. Only a
// case-sensitive "text/html" prefix counts; an absent header is plain text.
func IsHTMLContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html")
}
