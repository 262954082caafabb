package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/liveness"
	"github.com/openfab-labs/acs-core/internal/reader"
)

// mockRepo is a minimal in-memory reader.Repository for controller tests.
type mockRepo struct {
	mu      sync.Mutex
	readers map[string]*reader.Reader
}

func newMockRepo(recs ...*reader.Reader) *mockRepo {
	m := &mockRepo{readers: make(map[string]*reader.Reader)}
	for _, r := range recs {
		m.readers[r.ID] = r
	}
	return m
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*reader.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.readers[id]; ok {
		return r.Clone(), nil
	}
	return nil, reader.ErrNotFound
}

func (m *mockRepo) GetBySerial(context.Context, string) (*reader.Reader, error) {
	return nil, reader.ErrNotFound
}

func (m *mockRepo) GetByName(context.Context, string) (*reader.Reader, error) {
	return nil, reader.ErrNotFound
}

func (m *mockRepo) List(context.Context) ([]reader.Reader, error) { return nil, nil }

func (m *mockRepo) ListUnbound(context.Context) ([]reader.Reader, error) { return nil, nil }

func (m *mockRepo) ListByEquipment(_ context.Context, equipmentID string) ([]reader.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reader.Reader
	for _, r := range m.readers {
		if r.EquipmentID != nil && *r.EquipmentID == equipmentID {
			out = append(out, *r.Clone())
		}
	}
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, r *reader.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers[r.ID] = r.Clone()
	return nil
}

func (m *mockRepo) Rename(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[id]
	if !ok {
		return reader.ErrNotFound
	}
	for _, other := range m.readers {
		if other.ID != id && other.Name == name {
			return reader.ErrExists
		}
	}
	r.Name = name
	return nil
}

func (m *mockRepo) SetBinding(_ context.Context, id, equipmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[id]
	if !ok {
		return reader.ErrNotFound
	}
	r.EquipmentID = &equipmentID
	return nil
}

func (m *mockRepo) ClearBinding(_ context.Context, equipmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.readers {
		if r.EquipmentID != nil && *r.EquipmentID == equipmentID {
			r.EquipmentID = nil
		}
	}
	return nil
}

func (m *mockRepo) AdvanceKeyCycle(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("not implemented")
}

func (m *mockRepo) ApplyReport(context.Context, string, reader.ReportUpdate, time.Time) error {
	return nil
}

func (m *mockRepo) SetCommandedState(_ context.Context, id string, state reader.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[id]
	if !ok {
		return reader.ErrNotFound
	}
	r.CommandedState = state
	return nil
}

func (m *mockRepo) SetHelpRequested(_ context.Context, id string, help bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readers[id]
	if !ok {
		return reader.ErrNotFound
	}
	r.HelpRequested = help
	return nil
}

// mockSender records commands sent to the transport.
type mockSender struct {
	mu         sync.Mutex
	stateCalls []string
	identifies []string
	fail       bool
}

func (m *mockSender) SendStateCommand(_ context.Context, serial string, state reader.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker unreachable")
	}
	m.stateCalls = append(m.stateCalls, serial+":"+string(state))
	return nil
}

func (m *mockSender) SendIdentify(_ context.Context, serial string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker unreachable")
	}
	m.identifies = append(m.identifies, serial)
	return nil
}

type noopAudit struct{}

func (noopAudit) Create(context.Context, *audit.AuditLog) error { return nil }

func (noopAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return nil, errors.New("not implemented")
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestController(repo *mockRepo, sender *mockSender) *Controller {
	monitor := liveness.New(30*time.Second, 5*time.Minute)
	monitor.SetClock(func() time.Time { return testNow })
	return NewController(repo, monitor, sender, noopAudit{}, logging.Default())
}

func pairedReader(id, serial string, state reader.State, lastReport *time.Time) *reader.Reader {
	pairedAt := testNow.Add(-24 * time.Hour)
	equipment := "eq-" + id
	return &reader.Reader{
		ID:            id,
		Name:          "test-" + id,
		SerialNumber:  serial,
		EquipmentID:   &equipment,
		KeyCycle:      1,
		PairedAt:      &pairedAt,
		ReportedState: state,
		LastReportAt:  lastReport,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

func TestSetState(t *testing.T) {
	fresh := timePtr(testNow.Add(-5 * time.Second))

	tests := []struct {
		name    string
		state   reader.State
		target  reader.State
		force   bool
		wantErr error
	}{
		{"idle to lockout", reader.StateIdle, reader.StateLockout, false, nil},
		{"idle to always-on", reader.StateIdle, reader.StateAlwaysOn, false, nil},
		{"idle to restart", reader.StateIdle, reader.StateRestart, false, nil},
		{"unlocked without force", reader.StateUnlocked, reader.StateIdle, false, ErrInUse},
		{"unlocked with force", reader.StateUnlocked, reader.StateIdle, true, nil},
		{"fault accepts restart", reader.StateFault, reader.StateRestart, false, nil},
		{"fault accepts forced restart", reader.StateFault, reader.StateRestart, true, nil},
		{"fault accepts lockout", reader.StateFault, reader.StateLockout, false, nil},
		{"unlocked is not a target", reader.StateIdle, reader.StateUnlocked, false, ErrStateNotCommandable},
		{"fault is not a target", reader.StateIdle, reader.StateFault, false, ErrStateNotCommandable},
		{"startup is not a target", reader.StateIdle, reader.StateStartup, false, ErrStateNotCommandable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(pairedReader("rdr-1", "SN-1", tt.state, fresh))
			sender := &mockSender{}
			ctrl := newTestController(repo, sender)

			err := ctrl.SetState(context.Background(), "rdr-1", tt.target, tt.force, "op")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetState() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == nil {
				rec, _ := repo.GetByID(context.Background(), "rdr-1")
				if rec.CommandedState != tt.target {
					t.Errorf("commanded state = %q, want %q", rec.CommandedState, tt.target)
				}
				if len(sender.stateCalls) != 1 {
					t.Errorf("state commands sent = %d, want 1", len(sender.stateCalls))
				}
			} else if len(sender.stateCalls) != 0 {
				t.Error("rejected command must not reach the transport")
			}
		})
	}
}

func TestSetStateConflictNamesBlockingState(t *testing.T) {
	repo := newMockRepo(pairedReader("rdr-1", "SN-1", reader.StateUnlocked, timePtr(testNow)))
	ctrl := newTestController(repo, &mockSender{})

	err := ctrl.SetState(context.Background(), "rdr-1", reader.StateLockout, false, "op")
	if !errors.Is(err, ErrInUse) {
		t.Fatalf("SetState() error = %v, want ErrInUse", err)
	}
	if !strings.Contains(err.Error(), string(reader.StateUnlocked)) {
		t.Errorf("conflict error %q should name the blocking state", err)
	}
}

func TestSetStateUnpaired(t *testing.T) {
	unpaired := &reader.Reader{ID: "rdr-shell", Name: "shell", ReportedState: reader.StateStartup}
	repo := newMockRepo(unpaired)
	ctrl := newTestController(repo, &mockSender{})

	err := ctrl.SetState(context.Background(), "rdr-shell", reader.StateIdle, false, "op")
	if !errors.Is(err, reader.ErrNotPaired) {
		t.Fatalf("SetState() error = %v, want ErrNotPaired", err)
	}
}

func TestSetStateUnbound(t *testing.T) {
	unbound := pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow))
	unbound.EquipmentID = nil
	repo := newMockRepo(unbound)
	ctrl := newTestController(repo, &mockSender{})

	err := ctrl.SetState(context.Background(), "rdr-1", reader.StateIdle, false, "op")
	if !errors.Is(err, reader.ErrNotBound) {
		t.Fatalf("SetState() error = %v, want ErrNotBound", err)
	}
}

func TestSetStateUnknownReader(t *testing.T) {
	ctrl := newTestController(newMockRepo(), &mockSender{})

	err := ctrl.SetState(context.Background(), "rdr-missing", reader.StateIdle, false, "op")
	if !errors.Is(err, reader.ErrNotFound) {
		t.Fatalf("SetState() error = %v, want ErrNotFound", err)
	}
}

func TestSetStateTransportFailure(t *testing.T) {
	repo := newMockRepo(pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow)))
	ctrl := newTestController(repo, &mockSender{fail: true})

	if err := ctrl.SetState(context.Background(), "rdr-1", reader.StateLockout, false, "op"); err == nil {
		t.Fatal("SetState() should fail when the transport fails")
	}

	// Commanded state must not be recorded for an undelivered command.
	rec, _ := repo.GetByID(context.Background(), "rdr-1")
	if rec.CommandedState == reader.StateLockout {
		t.Error("commanded state recorded despite transport failure")
	}
}

func TestIdentify(t *testing.T) {
	online := pairedReader("rdr-on", "SN-ON", reader.StateIdle, timePtr(testNow.Add(-5*time.Second)))
	offline := pairedReader("rdr-off", "SN-OFF", reader.StateIdle, timePtr(testNow.Add(-2*time.Minute)))
	repo := newMockRepo(online, offline)
	sender := &mockSender{}
	ctrl := newTestController(repo, sender)

	got, err := ctrl.Identify(context.Background(), "rdr-on", true, "op")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if !got {
		t.Error("fresh reader should report online")
	}

	got, err = ctrl.Identify(context.Background(), "rdr-off", true, "op")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got {
		t.Error("quiet reader should report offline")
	}

	if len(sender.identifies) != 2 {
		t.Errorf("identify messages sent = %d, want 2", len(sender.identifies))
	}
}

func TestClearHelp(t *testing.T) {
	rec := pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow))
	rec.HelpRequested = true
	repo := newMockRepo(rec)
	ctrl := newTestController(repo, &mockSender{})

	if err := ctrl.ClearHelp(context.Background(), "rdr-1", "op"); err != nil {
		t.Fatalf("ClearHelp() error = %v", err)
	}

	got, _ := repo.GetByID(context.Background(), "rdr-1")
	if got.HelpRequested {
		t.Error("help flag should be cleared")
	}
}

func TestRename(t *testing.T) {
	repo := newMockRepo(
		pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow)),
		pairedReader("rdr-2", "SN-2", reader.StateIdle, timePtr(testNow)),
	)
	ctrl := newTestController(repo, &mockSender{})

	if err := ctrl.Rename(context.Background(), "rdr-1", "laser-front", "op"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), "rdr-1")
	if got.Name != "laser-front" {
		t.Errorf("name = %q, want %q", got.Name, "laser-front")
	}

	if err := ctrl.Rename(context.Background(), "rdr-2", "laser-front", "op"); !errors.Is(err, reader.ErrExists) {
		t.Errorf("Rename() to taken name error = %v, want ErrExists", err)
	}
	if err := ctrl.Rename(context.Background(), "rdr-2", "", "op"); !errors.Is(err, reader.ErrInvalidName) {
		t.Errorf("Rename() to empty name error = %v, want ErrInvalidName", err)
	}
}

func TestBind(t *testing.T) {
	rec := pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow))
	rec.EquipmentID = nil
	repo := newMockRepo(rec)
	ctrl := newTestController(repo, &mockSender{})

	if err := ctrl.Bind(context.Background(), "rdr-1", "eq-mill", "op"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), "rdr-1")
	if got.EquipmentID == nil || *got.EquipmentID != "eq-mill" {
		t.Errorf("equipment binding = %v, want eq-mill", got.EquipmentID)
	}

	if err := ctrl.Bind(context.Background(), "rdr-1", "", "op"); !errors.Is(err, reader.ErrInvalid) {
		t.Errorf("Bind() with empty equipment error = %v, want ErrInvalid", err)
	}
	if err := ctrl.Bind(context.Background(), "rdr-missing", "eq-mill", "op"); !errors.Is(err, reader.ErrNotFound) {
		t.Errorf("Bind() unknown reader error = %v, want ErrNotFound", err)
	}
}

func TestUnbindEquipment(t *testing.T) {
	equip := "eq-laser"
	first := pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow))
	first.EquipmentID = strPtr(equip)
	second := pairedReader("rdr-2", "SN-2", reader.StateIdle, timePtr(testNow))
	second.EquipmentID = strPtr(equip)
	other := pairedReader("rdr-3", "SN-3", reader.StateIdle, timePtr(testNow))

	repo := newMockRepo(first, second, other)
	ctrl := newTestController(repo, &mockSender{})

	if err := ctrl.UnbindEquipment(context.Background(), equip, "op"); err != nil {
		t.Fatalf("UnbindEquipment() error = %v", err)
	}

	for _, id := range []string{"rdr-1", "rdr-2"} {
		got, _ := repo.GetByID(context.Background(), id)
		if got.EquipmentID != nil {
			t.Errorf("%s still bound after unbind", id)
		}
	}
	// Readers on other equipment keep their binding, and the unbound
	// reader rows themselves survive.
	got, _ := repo.GetByID(context.Background(), "rdr-3")
	if got.EquipmentID == nil {
		t.Error("unrelated reader lost its binding")
	}
}

func TestAvailability(t *testing.T) {
	equip := "eq-laser"

	idle := pairedReader("rdr-1", "SN-1", reader.StateIdle, timePtr(testNow.Add(-10*time.Second)))
	idle.EquipmentID = strPtr(equip)

	unlocked := pairedReader("rdr-2", "SN-2", reader.StateUnlocked, timePtr(testNow.Add(-10*time.Second)))
	unlocked.EquipmentID = strPtr(equip)

	// Reports Idle but has been silent past the staleness window, so it
	// must not count as available.
	stale := pairedReader("rdr-3", "SN-3", reader.StateIdle, timePtr(testNow.Add(-10*time.Minute)))
	stale.EquipmentID = strPtr(equip)

	repo := newMockRepo(idle, unlocked, stale)
	ctrl := newTestController(repo, &mockSender{})

	agg, err := ctrl.Availability(context.Background(), equip)
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}

	if agg.Total != 3 {
		t.Errorf("total = %d, want 3", agg.Total)
	}
	if agg.Available != 1 {
		t.Errorf("available = %d, want 1", agg.Available)
	}
	if agg.InUse != 2 {
		t.Errorf("in use = %d, want 2", agg.InUse)
	}
}

func TestAvailabilityNoReaders(t *testing.T) {
	ctrl := newTestController(newMockRepo(), &mockSender{})

	agg, err := ctrl.Availability(context.Background(), "eq-nothing")
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if agg.Total != 0 || agg.Available != 0 || agg.InUse != 0 {
		t.Errorf("rollup = %+v, want all zero", agg)
	}
	if len(agg.Readers) != 0 {
		t.Errorf("readers = %d, want none", len(agg.Readers))
	}
}
