package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/recklessbear/rbsite/internal/models"
)

// emailPattern matches the local@domain.tld shape the registration form
// accepts. Anything stricter belongs to the mail provider.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ParticipantStore is the persistence surface the competition service
// needs. Absence is reported as a nil participant, not an error.
type ParticipantStore interface {
	GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error)
	// UpsertParticipant creates the row for a new email or returns the
	// existing row unchanged. Duplicate submissions must not create a
	// second row for the same email.
	UpsertParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error)
	// IncrementProgress adds one to the logo count, capped at
	// models.TotalLogosRequired, flipping status to Completed at the cap.
	// Returns the authoritative post-write row. capped is true when the
	// row was already at the cap and nothing changed.
	IncrementProgress(ctx context.Context, recordID string) (p *models.Participant, capped bool, err error)
	ListParticipants(ctx context.Context) ([]*models.Participant, error)
}

// CheckResult is the answer to a check-user lookup.
type CheckResult struct {
	Exists     bool               `json:"exists"`
	RecordID   string             `json:"recordId,omitempty"`
	Status     models.EntryStatus `json:"status,omitempty"`
	LogosFound int                `json:"logosFound,omitempty"`
}

// Registration is a submitted registration form.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	DeviceID string `json:"deviceId"`
}

// ProgressResult is the authoritative state after an update-progress call.
type ProgressResult struct {
	Success    bool               `json:"success"`
	LogosFound int                `json:"logosFound"`
	Status     models.EntryStatus `json:"status"`
}

// CompetitionService implements the three record-store operations the
// golden-logo hunt needs: check-user, register-user, update-progress.
type CompetitionService struct {
	store ParticipantStore
	now   func() time.Time
}

func NewCompetitionService(store ParticipantStore) *CompetitionService {
	return &CompetitionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ValidateRegistration checks the form fields without touching the store.
// The client runs the same checks before submitting; the server never
// trusts that it did.
func ValidateRegistration(reg Registration) error {
	if strings.TrimSpace(reg.FullName) == "" {
		return NewInvalidError("full name is required")
	}
	email := strings.TrimSpace(reg.Email)
	if email == "" {
		return NewInvalidError("email address is required")
	}
	if !emailPattern.MatchString(email) {
		return NewInvalidError("please enter a valid email address")
	}
	if strings.TrimSpace(reg.Phone) == "" {
		return NewInvalidError("phone number is required")
	}
	return nil
}

// CheckUser looks up at most one participant by exact email match.
// A missing record is Exists=false, not an error.
func (s *CompetitionService) CheckUser(ctx context.Context, email string) (*CheckResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, NewInvalidError("email is required")
	}
	p, err := s.store.GetParticipantByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &CheckResult{Exists: false}, nil
	}
	return &CheckResult{
		Exists:     true,
		RecordID:   p.RecordID,
		Status:     p.Status,
		LogosFound: p.LogosFound,
	}, nil
}

// RegisterUser records a new entrant. Registration is an upsert keyed on
// the email: a re-submitted form (double click, retry after a timeout that
// actually landed) gets the existing record id back instead of a
// duplicate row.
func (s *CompetitionService) RegisterUser(ctx context.Context, reg Registration) (*models.Participant, error) {
	if err := ValidateRegistration(reg); err != nil {
		return nil, err
	}
	now := s.now()
	p := &models.Participant{
		RecordID:   shortID(12),
		FullName:   strings.TrimSpace(reg.FullName),
		Email:      strings.ToLower(strings.TrimSpace(reg.Email)),
		Phone:      strings.TrimSpace(reg.Phone),
		DeviceID:   reg.DeviceID,
		LogosFound: 0,
		Status:     models.StatusIncomplete,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.store.UpsertParticipant(ctx, p)
}

// UpdateProgress credits one logo find. The client sends the count it
// expects, but the server performs its own conditioned increment and the
// returned row is authoritative; the expected count is only useful for
// log correlation when tabs race.
func (s *CompetitionService) UpdateProgress(ctx context.Context, recordID string) (*ProgressResult, error) {
	if strings.TrimSpace(recordID) == "" {
		return nil, NewInvalidError("recordId is required")
	}
	p, capped, err := s.store.IncrementProgress(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("participant not found")
	}
	if capped {
		return &ProgressResult{Success: false, LogosFound: p.LogosFound, Status: p.Status},
			NewAlreadyCompleteError("all logos already found")
	}
	return &ProgressResult{Success: true, LogosFound: p.LogosFound, Status: p.Status}, nil
}

// ListParticipants returns every entrant, newest first. Admin use only.
func (s *CompetitionService) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	return s.store.ListParticipants(ctx)
}
