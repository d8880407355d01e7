package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/recklessbear/rbsite/internal/models"
	"github.com/recklessbear/rbsite/internal/services"
)

// SQLiteStore persists participant records in a single SQLite table, one
// row per registrant.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ services.ParticipantStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB, log *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if log == nil {
		log = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, log: log}, nil
}

const participantColumns = `record_id, full_name, email, phone, device_id, logos_found, entry_status, created_at, updated_at`

func scanParticipant(row interface{ Scan(...any) error }) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.RecordID, &p.FullName, &p.Email, &p.Phone, &p.DeviceID,
		&p.LogosFound, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE email = ? COLLATE NOCASE LIMIT 1`
	return scanParticipant(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) getParticipant(ctx context.Context, recordID string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE record_id = ?`
	return scanParticipant(s.db.QueryRowContext(ctx, query, recordID))
}

// UpsertParticipant inserts the row unless the email already exists, then
// reads back whichever row owns the email. A retried registration gets
// the original record id instead of a duplicate row.
func (s *SQLiteStore) UpsertParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	query := `
		INSERT INTO participants (` + participantColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		p.RecordID, p.FullName, p.Email, p.Phone, p.DeviceID,
		p.LogosFound, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	saved, err := s.GetParticipantByEmail(ctx, p.Email)
	if err != nil {
		return nil, fmt.Errorf("read back participant: %w", err)
	}
	if saved == nil {
		return nil, errors.New("participant vanished after upsert")
	}
	if saved.RecordID != p.RecordID {
		s.log.Info("registration matched existing participant",
			zap.String("record_id", saved.RecordID), zap.String("email", saved.Email))
	}
	return saved, nil
}

// IncrementProgress performs the conditioned increment in SQL so two tabs
// crediting the same find cannot overshoot the cap. The returned row is
// authoritative.
func (s *SQLiteStore) IncrementProgress(ctx context.Context, recordID string) (*models.Participant, bool, error) {
	query := `
		UPDATE participants
		SET logos_found = logos_found + 1,
		    entry_status = CASE WHEN logos_found + 1 >= ? THEN ? ELSE entry_status END,
		    updated_at = ?
		WHERE record_id = ? AND logos_found < ?`
	res, err := s.db.ExecContext(ctx, query,
		models.TotalLogosRequired, models.StatusCompleted, time.Now().UTC(),
		recordID, models.TotalLogosRequired,
	)
	if err != nil {
		return nil, false, fmt.Errorf("increment progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	p, err := s.getParticipant(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, nil
	}
	return p, affected == 0, nil
}

func (s *SQLiteStore) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants ORDER BY created_at DESC, record_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
