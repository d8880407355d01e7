// Package hunt implements the golden-logo competition state machine: the
// client-side half of the hunt that mediates between local device state,
// the remote record store, and the UI surfaces that render prompts,
// toasts and the completion celebration.
package hunt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recklessbear/rbsite/internal/models"
	"github.com/recklessbear/rbsite/internal/services"
)

// State is the participant's position in the hunt as observed on this
// device.
type State string

const (
	StateUnregistered         State = "Unregistered"
	StateRegisteredIncomplete State = "RegisteredIncomplete"
	StateRegisteredCompleted  State = "RegisteredCompleted"
)

// DefaultNudgeDelay is how long after load an unregistered visitor is
// left alone before the registration prompt opens on its own.
const DefaultNudgeDelay = 5 * time.Second

// Notifier receives the machine's UI side effects. Toasts are transient
// and the implementation is expected to auto-dismiss them after a fixed
// delay.
type Notifier interface {
	Toast(msg string)
	OpenRegistration()
	ShowCongrats()
}

// Config wires a Machine. Service, Local and Notifier are required;
// Completion may be nil when no webhook is configured.
type Config struct {
	Service    Service
	Local      *LocalState
	Notifier   Notifier
	Completion CompletionNotifier
	Log        *zap.Logger
	NudgeDelay time.Duration
}

// Machine owns per-device progress through the hunt. Trigger surfaces
// call FindLogo and AlreadyFound; the embedding app calls Load on start,
// Register on form submission, and StartNudge after first paint.
// Methods are safe for concurrent use.
type Machine struct {
	svc        Service
	local      *LocalState
	notifier   Notifier
	completion CompletionNotifier
	log        *zap.Logger
	nudgeDelay time.Duration

	mu          sync.Mutex
	state       State
	recordID    string
	logosFound  int
	pendingSync bool
	nudgeTimer  *time.Timer
}

func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("hunt: service is required")
	}
	if cfg.Local == nil {
		return nil, fmt.Errorf("hunt: local state is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("hunt: notifier is required")
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	delay := cfg.NudgeDelay
	if delay == 0 {
		delay = DefaultNudgeDelay
	}
	return &Machine{
		svc:        cfg.Service,
		local:      cfg.Local,
		notifier:   cfg.Notifier,
		completion: cfg.Completion,
		log:        log,
		nudgeDelay: delay,
		state:      StateUnregistered,
	}, nil
}

// State returns the current observed state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LogosFound returns the locally known count, which may run ahead of the
// remote record while a write is pending.
func (m *Machine) LogosFound() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logosFound
}

// AlreadyFound reports whether this exact trigger was redeemed on this
// device. Trigger surfaces use it to render the plain asset instead of
// the hidden one.
func (m *Machine) AlreadyFound(logoID string) bool {
	return m.local.AlreadyFound(logoID)
}

// Load rehydrates from the locally cached email and the remote record.
// The remote count and status win over anything cached locally, so
// progress made on another device is adopted. With no cached email the
// machine starts Unregistered.
func (m *Machine) Load(ctx context.Context) error {
	email := m.local.RegisteredEmail()
	if email == "" {
		return nil
	}
	res, err := m.svc.CheckUser(ctx, email)
	if err != nil {
		m.log.Warn("failed to check user status", zap.Error(err))
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !res.Exists {
		// Cached email with no remote record: treat as unregistered.
		return nil
	}
	m.recordID = res.RecordID
	m.logosFound = res.LogosFound
	if res.Status == models.StatusCompleted {
		m.state = StateRegisteredCompleted
		m.notifier.ShowCongrats()
	} else {
		m.state = StateRegisteredIncomplete
	}
	return nil
}

// Register submits the registration form. Validation failures never
// reach the network; remote failures leave the machine unchanged so the
// form can be retried.
func (m *Machine) Register(ctx context.Context, fullName, email, phone string) error {
	m.mu.Lock()
	if m.state != StateUnregistered {
		m.mu.Unlock()
		return services.NewConflictError("already registered on this device")
	}
	m.mu.Unlock()

	reg := Registration{FullName: fullName, Email: email, Phone: phone, DeviceID: m.local.DeviceID()}
	if err := services.ValidateRegistration(services.Registration(reg)); err != nil {
		return err
	}
	if _, err := m.svc.RegisterUser(ctx, reg); err != nil {
		return err
	}
	if err := m.local.SetRegisteredEmail(email); err != nil {
		m.log.Warn("failed to persist registered email", zap.Error(err))
	}
	// Refresh from the record store; registration is an upsert so the
	// fetched record may carry progress from another device.
	if err := m.Load(ctx); err != nil {
		// Registration succeeded; adopt a fresh record shape locally
		// rather than failing the whole flow.
		m.mu.Lock()
		m.state = StateRegisteredIncomplete
		m.logosFound = 0
		m.mu.Unlock()
	}
	return nil
}

// FindLogo credits a trigger actuation. It is idempotent per logo id: a
// repeat of an already-redeemed trigger is a silent no-op. While
// Unregistered it opens the registration prompt instead, and the find is
// not credited.
func (m *Machine) FindLogo(ctx context.Context, logoID string) error {
	m.flushPending(ctx)

	m.mu.Lock()
	switch m.state {
	case StateUnregistered:
		m.mu.Unlock()
		m.notifier.Toast("Please register to start finding logos!")
		m.notifier.OpenRegistration()
		return nil
	case StateRegisteredCompleted:
		m.mu.Unlock()
		m.notifier.Toast("You've already found all the logos!")
		return services.NewAlreadyCompleteError("all logos already found")
	}

	if m.local.AlreadyFound(logoID) {
		m.mu.Unlock()
		return nil
	}
	if _, err := m.local.MarkFound(logoID); err != nil {
		m.log.Warn("failed to persist found logo", zap.Error(err))
	}

	// Optimistic update for instant feedback; the remote write result
	// reconciles it below.
	m.logosFound++
	count := m.logosFound
	recordID := m.recordID
	m.mu.Unlock()

	m.notifier.Toast(fmt.Sprintf("Golden Logo Found! (%d/%d found)", count, models.TotalLogosRequired))

	progress, err := m.svc.UpdateProgress(ctx, recordID, count)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil || services.IsCode(err, services.ErrorAlreadyComplete):
		m.logosFound = progress.LogosFound
		if progress.Status == models.StatusCompleted {
			m.completeLocked()
		}
	default:
		// Keep the optimistic count; queue the write for the next
		// machine operation. The UI already showed the toast.
		m.log.Warn("progress update failed, will retry", zap.Error(err))
		m.pendingSync = true
		if m.logosFound >= models.TotalLogosRequired {
			m.completeLocked()
		}
	}
	return nil
}

// completeLocked flips to the terminal state, firing the one-shot
// celebration and webhook on the first entry only.
func (m *Machine) completeLocked() {
	if m.state == StateRegisteredCompleted {
		return
	}
	m.state = StateRegisteredCompleted
	m.logosFound = models.TotalLogosRequired
	m.notifier.ShowCongrats()
	if m.completion == nil {
		return
	}
	deviceID := m.local.DeviceID()
	email := m.local.RegisteredEmail()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.completion.NotifyCompletion(ctx, deviceID, email); err != nil {
			m.log.Warn("completion webhook failed", zap.Error(err))
			return
		}
		m.log.Info("completion webhook delivered", zap.String("device_id", deviceID))
	}()
}

// flushPending retries a queued progress write. Best effort; a repeat
// failure just leaves the flag set.
func (m *Machine) flushPending(ctx context.Context) {
	m.mu.Lock()
	if !m.pendingSync || m.recordID == "" {
		m.mu.Unlock()
		return
	}
	recordID := m.recordID
	count := m.logosFound
	m.mu.Unlock()

	progress, err := m.svc.UpdateProgress(ctx, recordID, count)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil && !services.IsCode(err, services.ErrorAlreadyComplete) {
		return
	}
	m.pendingSync = false
	m.logosFound = progress.LogosFound
	if progress.Status == models.StatusCompleted && m.state != StateRegisteredCompleted {
		// Remote reached the cap while we were offline; adopt the
		// terminal state without re-firing the webhook: the credit that
		// completed it was ours and already celebrated, or another
		// device's entirely.
		m.state = StateRegisteredCompleted
	}
}

// StartNudge schedules the delayed registration prompt for visitors who
// are still Unregistered, unless previously dismissed.
func (m *Machine) StartNudge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nudgeTimer != nil {
		return
	}
	m.nudgeTimer = time.AfterFunc(m.nudgeDelay, func() {
		m.mu.Lock()
		unregistered := m.state == StateUnregistered
		m.mu.Unlock()
		if unregistered && !m.local.NudgeDismissed() {
			m.notifier.OpenRegistration()
		}
	})
}

// StopNudge cancels a scheduled prompt without setting the dismissal
// flag.
func (m *Machine) StopNudge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nudgeTimer != nil {
		m.nudgeTimer.Stop()
		m.nudgeTimer = nil
	}
}

// DismissNudge records the "don't keep asking" choice on this device.
func (m *Machine) DismissNudge() {
	if err := m.local.DismissNudge(); err != nil {
		m.log.Warn("failed to persist nudge dismissal", zap.Error(err))
	}
}

// Reset wipes local device state only. Debug affordance; the remote
// record is never deleted or decremented.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnregistered
	m.recordID = ""
	m.logosFound = 0
	m.pendingSync = false
	return m.local.Reset()
}
