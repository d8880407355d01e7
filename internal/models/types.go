package models

import "time"

// TotalLogosRequired is the number of hidden golden logos a participant
// must find to complete the competition.
const TotalLogosRequired = 5

// EntryStatus tracks a participant's competition progress. Monotonic:
// once Completed it never reverts to Incomplete.
type EntryStatus string

const (
	StatusIncomplete EntryStatus = "Incomplete"
	StatusCompleted  EntryStatus = "Completed"
)

// Participant is the single persisted row representing one registered
// competition entrant. Email is the natural key used to re-identify a
// returning participant from any device; DeviceID is recorded at
// registration time for support and fraud review only, never for
// authentication.
type Participant struct {
	RecordID   string      `json:"record_id"`
	FullName   string      `json:"full_name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	DeviceID   string      `json:"device_id"`
	LogosFound int         `json:"logos_found"`
	Status     EntryStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Completed reports whether the participant has found every logo.
func (p *Participant) Completed() bool { return p.Status == StatusCompleted }
