package hunt

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recklessbear/rbsite/internal/models"
	"github.com/recklessbear/rbsite/internal/services"
)

// fakeService mirrors the record-store semantics in memory: upsert on
// email, conditioned increment capped at the target count.
type fakeService struct {
	mu            sync.Mutex
	records       map[string]*fakeRecord // by record id
	byEmail       map[string]string
	nextID        int
	checkCalls    int
	registerCalls int
	updateCalls   int
	failUpdates   bool
}

type fakeRecord struct {
	count int
}

func newFakeService() *fakeService {
	return &fakeService{records: map[string]*fakeRecord{}, byEmail: map[string]string{}}
}

func (f *fakeService) CheckUser(_ context.Context, email string) (*CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	id, ok := f.byEmail[email]
	if !ok {
		return &CheckResult{Exists: false}, nil
	}
	rec := f.records[id]
	status := models.StatusIncomplete
	if rec.count >= models.TotalLogosRequired {
		status = models.StatusCompleted
	}
	return &CheckResult{Exists: true, RecordID: id, Status: status, LogosFound: rec.count}, nil
}

func (f *fakeService) RegisterUser(_ context.Context, reg Registration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if id, ok := f.byEmail[reg.Email]; ok {
		return id, nil
	}
	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	f.byEmail[reg.Email] = id
	f.records[id] = &fakeRecord{}
	return id, nil
}

func (f *fakeService) UpdateProgress(_ context.Context, recordID string, _ int) (*Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.failUpdates {
		return nil, services.NewBadGatewayError("record store unreachable")
	}
	rec, ok := f.records[recordID]
	if !ok {
		return nil, services.NewNotFoundError("record not found")
	}
	if rec.count >= models.TotalLogosRequired {
		return &Progress{LogosFound: rec.count, Status: models.StatusCompleted},
			services.NewAlreadyCompleteError("all logos already found")
	}
	rec.count++
	status := models.StatusIncomplete
	if rec.count >= models.TotalLogosRequired {
		status = models.StatusCompleted
	}
	return &Progress{LogosFound: rec.count, Status: status}, nil
}

func (f *fakeService) setFailUpdates(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdates = v
}

func (f *fakeService) calls() (check, register, update int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls, f.registerCalls, f.updateCalls
}

type fakeNotifier struct {
	mu       sync.Mutex
	toasts   []string
	openRegs int
	congrats int
}

func (n *fakeNotifier) Toast(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, msg)
}

func (n *fakeNotifier) OpenRegistration() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.openRegs++
}

func (n *fakeNotifier) ShowCongrats() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.congrats++
}

func (n *fakeNotifier) snapshot() ([]string, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.toasts...), n.openRegs, n.congrats
}

type fakeCompletion struct {
	ch chan string
}

func (c *fakeCompletion) NotifyCompletion(_ context.Context, deviceID, email string) error {
	c.ch <- deviceID + "|" + email
	return nil
}

func newTestMachine(t *testing.T, svc Service) (*Machine, *fakeNotifier, *fakeCompletion) {
	t.Helper()
	local, err := NewLocalState(filepath.Join(t.TempDir(), "hunt.json"))
	require.NoError(t, err)
	notifier := &fakeNotifier{}
	completion := &fakeCompletion{ch: make(chan string, 4)}
	m, err := NewMachine(Config{Service: svc, Local: local, Notifier: notifier, Completion: completion})
	require.NoError(t, err)
	return m, notifier, completion
}

func registerTestUser(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.Register(context.Background(), "Jane Doe", "jane@x.com", "0821234567"))
	require.Equal(t, StateRegisteredIncomplete, m.State())
}

func TestFindLogoUnregisteredOpensPrompt(t *testing.T) {
	svc := newFakeService()
	m, notifier, _ := newTestMachine(t, svc)

	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-1"))

	toasts, openRegs, congrats := notifier.snapshot()
	assert.Equal(t, []string{"Please register to start finding logos!"}, toasts)
	assert.Equal(t, 1, openRegs)
	assert.Equal(t, 0, congrats)
	assert.Equal(t, 0, m.LogosFound())

	// An unregistered actuation never reaches the record store.
	check, register, update := svc.calls()
	assert.Equal(t, 0, check)
	assert.Equal(t, 0, register)
	assert.Equal(t, 0, update)
}

func TestHuntToCompletion(t *testing.T) {
	svc := newFakeService()
	m, notifier, completion := newTestMachine(t, svc)
	registerTestUser(t, m)

	for i := 1; i <= models.TotalLogosRequired; i++ {
		require.NoError(t, m.FindLogo(context.Background(), fmt.Sprintf("golden-logo-%d", i)))
		assert.Equal(t, i, m.LogosFound())
	}
	assert.Equal(t, StateRegisteredCompleted, m.State())

	toasts, _, congrats := notifier.snapshot()
	assert.Equal(t, 1, congrats)
	assert.Contains(t, toasts, "Golden Logo Found! (1/5 found)")
	assert.Contains(t, toasts, "Golden Logo Found! (5/5 found)")

	select {
	case msg := <-completion.ch:
		assert.Contains(t, msg, "jane@x.com")
	case <-time.After(2 * time.Second):
		t.Fatal("completion webhook never fired")
	}

	// A sixth actuation stays terminal and fires nothing new.
	err := m.FindLogo(context.Background(), "golden-logo-extra")
	require.True(t, services.IsCode(err, services.ErrorAlreadyComplete))
	toasts, _, congrats = notifier.snapshot()
	assert.Equal(t, 1, congrats)
	assert.Contains(t, toasts, "You've already found all the logos!")
	select {
	case <-completion.ch:
		t.Fatal("webhook fired a second time")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFindLogoDuplicateIDIsSilent(t *testing.T) {
	svc := newFakeService()
	m, notifier, _ := newTestMachine(t, svc)
	registerTestUser(t, m)

	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-1"))
	_, _, updatesBefore := svc.calls()
	toastsBefore, _, _ := notifier.snapshot()

	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-1"))

	assert.Equal(t, 1, m.LogosFound())
	_, _, updatesAfter := svc.calls()
	assert.Equal(t, updatesBefore, updatesAfter)
	toastsAfter, _, _ := notifier.snapshot()
	assert.Equal(t, toastsBefore, toastsAfter)
}

func TestLoadAdoptsRemoteProgress(t *testing.T) {
	svc := newFakeService()

	// Seed remote state as another device would have left it.
	id, err := svc.RegisterUser(context.Background(), Registration{Email: "jane@x.com"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.UpdateProgress(context.Background(), id, i+1)
		require.NoError(t, err)
	}

	local, err := NewLocalState(filepath.Join(t.TempDir(), "hunt.json"))
	require.NoError(t, err)
	require.NoError(t, local.SetRegisteredEmail("jane@x.com"))
	notifier := &fakeNotifier{}
	m, err := NewMachine(Config{Service: svc, Local: local, Notifier: notifier})
	require.NoError(t, err)

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, StateRegisteredIncomplete, m.State())
	assert.Equal(t, 3, m.LogosFound())
	_, _, congrats := notifier.snapshot()
	assert.Equal(t, 0, congrats)
}

func TestLoadCompletedShowsCongratsWithoutWebhook(t *testing.T) {
	svc := newFakeService()
	id, err := svc.RegisterUser(context.Background(), Registration{Email: "jane@x.com"})
	require.NoError(t, err)
	for i := 0; i < models.TotalLogosRequired; i++ {
		_, err = svc.UpdateProgress(context.Background(), id, i+1)
		require.NoError(t, err)
	}

	local, err := NewLocalState(filepath.Join(t.TempDir(), "hunt.json"))
	require.NoError(t, err)
	require.NoError(t, local.SetRegisteredEmail("jane@x.com"))
	notifier := &fakeNotifier{}
	completion := &fakeCompletion{ch: make(chan string, 1)}
	m, err := NewMachine(Config{Service: svc, Local: local, Notifier: notifier, Completion: completion})
	require.NoError(t, err)

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, StateRegisteredCompleted, m.State())
	_, _, congrats := notifier.snapshot()
	assert.Equal(t, 1, congrats)
	select {
	case <-completion.ch:
		t.Fatal("rehydration must not re-fire the completion webhook")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterInvalidEmailNeverReachesNetwork(t *testing.T) {
	svc := newFakeService()
	m, _, _ := newTestMachine(t, svc)

	err := m.Register(context.Background(), "Jane Doe", "not an email", "0821234567")
	require.True(t, services.IsCode(err, services.ErrorInvalid))
	assert.Equal(t, StateUnregistered, m.State())

	check, register, update := svc.calls()
	assert.Zero(t, check+register+update)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	svc := newFakeService()
	m, _, _ := newTestMachine(t, svc)
	registerTestUser(t, m)

	err := m.Register(context.Background(), "Jane Doe", "jane@x.com", "0821234567")
	require.True(t, services.IsCode(err, services.ErrorConflict))
}

func TestFindLogoQueuesFailedWriteAndRetries(t *testing.T) {
	svc := newFakeService()
	m, notifier, _ := newTestMachine(t, svc)
	registerTestUser(t, m)

	svc.setFailUpdates(true)
	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-1"))

	// Optimistic count survives the failed write and the toast was shown.
	assert.Equal(t, 1, m.LogosFound())
	toasts, _, _ := notifier.snapshot()
	assert.Contains(t, toasts, "Golden Logo Found! (1/5 found)")

	svc.setFailUpdates(false)
	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-2"))

	// The queued credit flushed before the new one: both are remote now.
	assert.Equal(t, 2, m.LogosFound())
	res, err := svc.CheckUser(context.Background(), "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, res.LogosFound)
}

func TestNudgeFiresForUnregistered(t *testing.T) {
	svc := newFakeService()
	local, err := NewLocalState(filepath.Join(t.TempDir(), "hunt.json"))
	require.NoError(t, err)
	notifier := &fakeNotifier{}
	m, err := NewMachine(Config{Service: svc, Local: local, Notifier: notifier, NudgeDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	m.StartNudge()
	assert.Eventually(t, func() bool {
		_, openRegs, _ := notifier.snapshot()
		return openRegs == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNudgeRespectsDismissal(t *testing.T) {
	svc := newFakeService()
	local, err := NewLocalState(filepath.Join(t.TempDir(), "hunt.json"))
	require.NoError(t, err)
	notifier := &fakeNotifier{}
	m, err := NewMachine(Config{Service: svc, Local: local, Notifier: notifier, NudgeDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	m.DismissNudge()
	m.StartNudge()
	time.Sleep(50 * time.Millisecond)
	_, openRegs, _ := notifier.snapshot()
	assert.Equal(t, 0, openRegs)
}

func TestResetKeepsDeviceID(t *testing.T) {
	svc := newFakeService()
	m, _, _ := newTestMachine(t, svc)
	registerTestUser(t, m)
	require.NoError(t, m.FindLogo(context.Background(), "golden-logo-1"))

	deviceID := m.local.DeviceID()
	require.NoError(t, m.Reset())

	assert.Equal(t, StateUnregistered, m.State())
	assert.Equal(t, 0, m.LogosFound())
	assert.False(t, m.AlreadyFound("golden-logo-1"))
	assert.Equal(t, deviceID, m.local.DeviceID())
}
