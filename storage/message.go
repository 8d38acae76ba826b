package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	htmlContentType  = "text/html; charset=utf-8"
	plainContentType = "text/plain; charset=utf-8"
)

// ParseMessage reads a raw RFC 5322 message. Transfer encodings and
// charsets are decoded, so the stored body is always UTF-8. When a message
// carries both an HTML and a plain-text part, the HTML part is kept.
func ParseMessage(r io.Reader) (*Mail, *Body, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	m := headerToMail(mr.Header)

	var htmlBody, plainBody *Body
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			return nil, nil, fmt.Errorf("reading part of %q: %w", m.Subject, err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments are not displayable content.
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		switch contentType {
		case "text/html":
			if htmlBody != nil {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, nil, fmt.Errorf("reading html part of %q: %w", m.Subject, err)
			}
			htmlBody = &Body{ContentType: htmlContentType, Data: data}
		case "text/plain":
			if plainBody != nil {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, nil, fmt.Errorf("reading text part of %q: %w", m.Subject, err)
			}
			plainBody = &Body{ContentType: plainContentType, Data: data}
		}
	}

	switch {
	case htmlBody != nil:
		return m, htmlBody, nil
	case plainBody != nil:
		return m, plainBody, nil
	default:
		return m, &Body{ContentType: plainContentType, Data: []byte{}}, nil
	}
}

func headerToMail(h mail.Header) *Mail {
	m := &Mail{
		Date:    h.Get("Date"),
		From:    addressHeader(h, "From"),
		ReplyTo: addressHeader(h, "Reply-To"),
		To:      addressList(h, "To"),
	}
	if subject, err := h.Subject(); err == nil {
		m.Subject = subject
	} else {
		m.Subject = h.Get("Subject")
	}
	if id, err := h.MessageID(); err == nil && id != "" {
		m.MessageID = "<" + id + ">"
	} else {
		m.MessageID = h.Get("Message-Id")
	}
	return m
}

func addressHeader(h mail.Header, key string) string {
	return strings.Join(addressList(h, key), ", ")
}

// addressList formats each address as `Name <addr>`, falling back to the
// raw header value when it does not parse.
func addressList(h mail.Header, key string) Recipients {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		if raw := strings.TrimSpace(h.Get(key)); raw != "" {
			return Recipients{raw}
		}
		return nil
	}
	out := make(Recipients, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			out = append(out, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			out = append(out, a.Address)
		}
	}
	return out
}
