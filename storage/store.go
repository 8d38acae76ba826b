// Package storage keeps received mail in a local SQLite database and
// parses raw RFC 5322 messages into stored mail.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no mail has the requested ID.
var ErrNotFound = errors.New("mail not found")

// Recipients is stored as a JSON array in a TEXT column.
type Recipients []string

func (r Recipients) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(r))
	return string(data), err
}

func (r *Recipients) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), r)
	case []byte:
		return json.Unmarshal(v, r)
	case nil:
		*r = nil
		return nil
	default:
		return fmt.Errorf("unsupported recipients type %T", src)
	}
}

// Mail is the header record of a stored message. JSON names are the ones
// the /mail endpoint has always served.
type Mail struct {
	ID        int64      `db:"id" json:"ID"`
	Date      string     `db:"date" json:"Date"`
	From      string     `db:"from_addr" json:"From"`
	ReplyTo   string     `db:"reply_to" json:"ReplyTo"`
	Subject   string     `db:"subject" json:"Subject"`
	MessageID string     `db:"message_id" json:"MessageID"`
	To        Recipients `db:"to_addrs" json:"To"`
}

// Body is the displayable content of a stored message.
type Body struct {
	MailID      int64  `db:"mail_id"`
	ContentType string `db:"content_type"`
	Data        []byte `db:"data"`
}

// Store is a SQLite-backed mail store.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Save stores a mail with its body and returns the assigned ID.
func (s *Store) Save(ctx context.Context, mail *Mail, body *Body) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO mails (date, from_addr, reply_to, subject, message_id, to_addrs)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mail.Date, mail.From, mail.ReplyTo, mail.Subject, mail.MessageID, mail.To,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting mail %q: %w", mail.Subject, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted mail id: %w", err)
	}

	data := body.Data
	if data == nil {
		data = []byte{}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO bodies (mail_id, content_type, data) VALUES (?, ?, ?)",
		id, body.ContentType, data,
	); err != nil {
		return 0, fmt.Errorf("inserting body of mail %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing mail %d: %w", id, err)
	}
	mail.ID = id
	body.MailID = id
	return id, nil
}

// List returns every stored mail in insertion order.
func (s *Store) List(ctx context.Context) ([]Mail, error) {
	mails := []Mail{}
	err := s.db.SelectContext(ctx, &mails, `
		SELECT id, date, from_addr, reply_to, subject, message_id, to_addrs
		FROM mails ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing mails: %w", err)
	}
	return mails, nil
}

// Get returns the header record of one mail.
func (s *Store) Get(ctx context.Context, id int64) (*Mail, error) {
	var mail Mail
	err := s.db.GetContext(ctx, &mail, `
		SELECT id, date, from_addr, reply_to, subject, message_id, to_addrs
		FROM mails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting mail %d: %w", id, err)
	}
	return &mail, nil
}

// Body returns the content of one mail.
func (s *Store) Body(ctx context.Context, id int64) (*Body, error) {
	var body Body
	err := s.db.GetContext(ctx, &body,
		"SELECT mail_id, content_type, data FROM bodies WHERE mail_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("body of mail %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting body of mail %d: %w", id, err)
	}
	return &body, nil
}

// ParseID parses a mail ID as it appears in a URL.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid mail id %q", s)
	}
	return id, nil
}
