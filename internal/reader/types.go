package reader

import "time"

// Reader represents one physical access-control device gating an equipment
// instance. This matches the database schema in
// migrations/20260301_000000_initial_schema.up.sql.
type Reader struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// SerialNumber is the immutable hardware identity. Empty for shell
	// records created by an operator before the device's first pairing.
	SerialNumber string `json:"serial_number,omitempty"`

	// EquipmentID references the equipment instance this reader gates.
	// A reader may be unbound.
	EquipmentID *string `json:"equipment_id,omitempty"`

	// Pairing epoch. KeyCycle starts at 0 and is incremented exactly once
	// per successful pairing; a derived key is only valid for the
	// (SerialNumber, KeyCycle) pair that produced it.
	KeyCycle int        `json:"key_cycle"`
	PairedAt *time.Time `json:"paired_at,omitempty"`

	// Live telemetry. ReportedState is device-authoritative;
	// CommandedState is the last operator request, advisory until the
	// device complies.
	ReportedState  State      `json:"reported_state"`
	CommandedState State      `json:"commanded_state,omitempty"`
	LastReportAt   *time.Time `json:"last_report_at,omitempty"`
	HelpRequested  bool       `json:"help_requested"`
	Temperature    *float64   `json:"temperature,omitempty"`

	// Session details from the most recent report.
	CurrentCardID    string `json:"current_card_id,omitempty"`
	LastReportReason string `json:"last_report_reason,omitempty"`
	FirmwareVersion  string `json:"firmware_version,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Paired reports whether the reader has completed at least one pairing.
func (r *Reader) Paired() bool {
	return r.SerialNumber != "" && r.KeyCycle > 0
}

// Bound reports whether the reader gates an equipment instance.
func (r *Reader) Bound() bool {
	return r.EquipmentID != nil && *r.EquipmentID != ""
}

// Clone returns an independent copy of the Reader. Pointer fields to
// immutable values (time.Time, string, float64) are re-pointed so the copy
// shares no mutable storage with the original.
func (r *Reader) Clone() *Reader {
	if r == nil {
		return nil
	}

	cpy := *r

	if r.EquipmentID != nil {
		v := *r.EquipmentID
		cpy.EquipmentID = &v
	}
	if r.PairedAt != nil {
		v := *r.PairedAt
		cpy.PairedAt = &v
	}
	if r.LastReportAt != nil {
		v := *r.LastReportAt
		cpy.LastReportAt = &v
	}
	if r.Temperature != nil {
		v := *r.Temperature
		cpy.Temperature = &v
	}

	return &cpy
}

// State represents a reader's operational status.
type State string

// Reader states. Startup is the initial state for a newly paired device
// until its first report; there is no terminal state.
const (
	StateStartup  State = "Startup"
	StateIdle     State = "Idle"
	StateUnlocked State = "Unlocked"
	StateLockout  State = "Lockout"
	StateRestart  State = "Restart"
	StateFault    State = "Fault"
	StateAlwaysOn State = "AlwaysOn"
)

// AllStates returns all valid reader states.
func AllStates() []State {
	return []State{
		StateStartup, StateIdle, StateUnlocked, StateLockout,
		StateRestart, StateFault, StateAlwaysOn,
	}
}

// CommandableStates returns the states an operator may command. Fault,
// Startup and Unlocked are device-originated only.
func CommandableStates() []State {
	return []State{StateIdle, StateLockout, StateAlwaysOn, StateRestart}
}
