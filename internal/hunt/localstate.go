package hunt

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// deviceState is the unauthenticated client-persisted state: device
// identity, the last registered email, the set of logo ids already
// redeemed on this device, and the "don't keep asking" nudge flag.
type deviceState struct {
	DeviceID        string   `json:"device_id"`
	RegisteredEmail string   `json:"registered_email"`
	FoundLogos      []string `json:"found_logos"`
	NudgeDismissed  bool     `json:"nudge_dismissed"`
}

// LocalState persists deviceState as a JSON file. Reads are defensive: a
// missing or corrupt file is treated as empty state, never an error the
// caller has to handle.
type LocalState struct {
	filePath string
	mu       sync.Mutex
	state    deviceState
}

func NewLocalState(filePath string) (*LocalState, error) {
	if filePath == "" {
		return nil, errors.New("local state path is required")
	}
	s := &LocalState{filePath: filePath}
	s.load()
	return s, nil
}

func (s *LocalState) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	var st deviceState
	if err := json.Unmarshal(data, &st); err != nil {
		return
	}
	s.state = st
}

func (s *LocalState) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0o644)
}

// DeviceID returns the stable opaque device identifier, generating and
// persisting one on first use.
func (s *LocalState) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.DeviceID == "" {
		s.state.DeviceID = uuid.NewString()
		_ = s.persistLocked()
	}
	return s.state.DeviceID
}

func (s *LocalState) RegisteredEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RegisteredEmail
}

func (s *LocalState) SetRegisteredEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RegisteredEmail = email
	return s.persistLocked()
}

// AlreadyFound reports whether this device already redeemed the logo id.
func (s *LocalState) AlreadyFound(logoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.state.FoundLogos {
		if id == logoID {
			return true
		}
	}
	return false
}

// MarkFound records a redeemed logo id. Returns false without persisting
// when the id was already present.
func (s *LocalState) MarkFound(logoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.state.FoundLogos {
		if id == logoID {
			return false, nil
		}
	}
	s.state.FoundLogos = append(s.state.FoundLogos, logoID)
	return true, s.persistLocked()
}

func (s *LocalState) FoundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.FoundLogos)
}

func (s *LocalState) NudgeDismissed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.NudgeDismissed
}

func (s *LocalState) DismissNudge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NudgeDismissed = true
	return s.persistLocked()
}

// Reset wipes everything except the device id. Debug affordance only;
// the remote record is untouched.
func (s *LocalState) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = deviceState{DeviceID: s.state.DeviceID}
	return s.persistLocked()
}
