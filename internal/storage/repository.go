// Package storage keeps raw payloads in a local SQLite inbox until they can
// be decrypted. Payloads are stored exactly as received, still encrypted;
// decrypted output is never written here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cifra/internal/log"
)

// MaxAttempts is the number of failed processing attempts after which a
// payload is no longer listed as pending.
const MaxAttempts = 5

var ErrNotFound = errors.New("payload not found")

// Payload is one raw, still encrypted input for a transform.
type Payload struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	Currency    string     `json:"currency"`
	Body        []byte     `json:"-"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"lastError,omitempty"`
}

// Pending reports whether the payload still waits for processing.
func (p Payload) Pending() bool { return p.ProcessedAt == nil && p.Attempts < MaxAttempts }

// Inbox is the SQLite-backed raw payload store.
type Inbox struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

// NewInbox opens (and migrates) the inbox database at dbPath.
func NewInbox(dbPath string, logger *log.Logger) (*Inbox, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Inbox{
		db:     db,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (s *Inbox) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores p and returns its ID, generating one when p.ID is empty.
// Saving an ID that is already stored is a no-op, so redelivered messages
// are kept once.
func (s *Inbox) Save(ctx context.Context, p Payload) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_payloads (id, kind, year, month, currency, body, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Kind, p.Year, p.Month, p.Currency, p.Body, p.ReceivedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save payload: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.DebugContext(ctx, "Payload already stored", log.FieldPayloadID, p.ID)
	} else {
		s.logger.InfoContext(ctx, "Payload stored",
			log.FieldOperation, log.OpStore,
			log.FieldPayloadID, p.ID,
			log.FieldKind, p.Kind,
			log.FieldYear, p.Year,
			log.FieldMonth, p.Month,
			log.FieldCurrency, p.Currency)
	}
	return p.ID, nil
}

const selectPayload = `
	SELECT id, kind, year, month, currency, body, received_at, processed_at, attempts, last_error
	FROM raw_payloads`

// Get returns the payload with id or ErrNotFound.
func (s *Inbox) Get(ctx context.Context, id string) (*Payload, error) {
	row := s.db.QueryRowContext(ctx, selectPayload+` WHERE id = ?`, id)
	p, err := scanPayload(row)
	if err != nil {
		return nil, fmt.Errorf("get payload %s: %w", id, err)
	}
	return p, nil
}

// Latest returns the most recently received payload for a slot.
func (s *Inbox) Latest(ctx context.Context, kind string, year, month int, currency string) (*Payload, error) {
	row := s.db.QueryRowContext(ctx, selectPayload+`
		WHERE kind = ? AND year = ? AND month = ? AND currency = ?
		ORDER BY received_at DESC, id DESC
		LIMIT 1`, kind, year, month, currency)
	p, err := scanPayload(row)
	if err != nil {
		return nil, fmt.Errorf("latest %s payload: %w", kind, err)
	}
	return p, nil
}

// ListPending returns up to limit unprocessed payloads, oldest first.
// Payloads that failed MaxAttempts times are left out.
func (s *Inbox) ListPending(ctx context.Context, limit int) ([]Payload, error) {
	rows, err := s.db.QueryContext(ctx, selectPayload+`
		WHERE processed_at IS NULL AND attempts < ?
		ORDER BY received_at, id
		LIMIT ?`, MaxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payloads: %w", err)
	}
	return collect(rows)
}

// List returns up to limit payloads, newest first.
func (s *Inbox) List(ctx context.Context, limit int) ([]Payload, error) {
	rows, err := s.db.QueryContext(ctx, selectPayload+`
		ORDER BY received_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list payloads: %w", err)
	}
	return collect(rows)
}

// MarkProcessed marks a payload as successfully transformed.
func (s *Inbox) MarkProcessed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE raw_payloads SET processed_at = ?, last_error = '' WHERE id = ?`,
		s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark payload processed: %w", err)
	}
	if err := affected(res); err != nil {
		return fmt.Errorf("mark payload %s processed: %w", id, err)
	}
	s.logger.DebugContext(ctx, "Payload marked as processed", log.FieldPayloadID, id)
	return nil
}

// MarkFailed records a failed processing attempt. Only the error kind is
// expected in cause; it must never carry plaintext.
func (s *Inbox) MarkFailed(ctx context.Context, id string, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE raw_payloads SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause, id)
	if err != nil {
		return fmt.Errorf("mark payload failed: %w", err)
	}
	if err := affected(res); err != nil {
		return fmt.Errorf("mark payload %s failed: %w", id, err)
	}
	s.logger.WarnContext(ctx, "Payload processing failed",
		log.FieldPayloadID, id,
		log.FieldErrorKind, cause)
	return nil
}

// PurgeProcessed deletes processed payloads older than before.
func (s *Inbox) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM raw_payloads WHERE processed_at IS NOT NULL AND processed_at < ?`,
		before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge processed payloads: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.InfoContext(ctx, "Purged processed payloads", log.FieldCount, n)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayload(row scanner) (*Payload, error) {
	var (
		p         Payload
		received  int64
		processed sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Kind, &p.Year, &p.Month, &p.Currency, &p.Body,
		&received, &processed, &p.Attempts, &p.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ReceivedAt = time.UnixMilli(received).UTC()
	if processed.Valid {
		t := time.UnixMilli(processed.Int64).UTC()
		p.ProcessedAt = &t
	}
	return &p, nil
}

func collect(rows *sql.Rows) ([]Payload, error) {
	defer rows.Close()
	var out []Payload
	for rows.Next() {
		p, err := scanPayload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payloads: %w", err)
	}
	return out, nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
