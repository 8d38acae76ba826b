package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportMbox stores every message of an mbox stream. Messages that fail to
// parse are skipped; their errors are joined into the returned error while
// the rest of the mailbox is still imported.
func (s *Store) ImportMbox(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	var skipped []error

	mr := mbox.NewReader(r)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		msg, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading mbox message %d: %w", n, err)
		}

		mail, body, err := ParseMessage(msg)
		if err != nil {
			res.Skipped++
			skipped = append(skipped, fmt.Errorf("message %d: %w", n, err))
			continue
		}
		if _, err := s.Save(ctx, mail, body); err != nil {
			return res, err
		}
		res.Imported++
	}
	return res, errors.Join(skipped...)
}

// ImportMessage stores a single RFC 5322 message.
func (s *Store) ImportMessage(ctx context.Context, r io.Reader) (int64, error) {
	mail, body, err := ParseMessage(r)
	if err != nil {
		return 0, err
	}
	return s.Save(ctx, mail, body)
}

// ImportFile imports path as an mbox when it starts with an mbox "From "
// separator line and as a single message otherwise.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(5)
	if err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if bytes.Equal(head, []byte("From ")) {
		res, err := s.ImportMbox(ctx, br)
		if err != nil {
			return res, fmt.Errorf("importing %s: %w", path, err)
		}
		return res, nil
	}

	if _, err := s.ImportMessage(ctx, br); err != nil {
		return ImportResult{Skipped: 1}, fmt.Errorf("importing %s: %w", path, err)
	}
	return ImportResult{Imported: 1}, nil
}
