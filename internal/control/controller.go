// Package control implements operator-initiated reader operations: state
// commands, identify requests, help flag management, and equipment
// availability aggregation.
//
// The device is authoritative for its own state. A command here records
// intent and forwards it; the reader's reported state only changes when
// the device itself confirms via its next report.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/liveness"
	"github.com/openfab-labs/acs-core/internal/reader"
)

// CommandSender delivers commands to readers over the device transport.
type CommandSender interface {
	// SendStateCommand asks the reader to move to the given state.
	SendStateCommand(ctx context.Context, serial string, state reader.State) error

	// SendIdentify asks the reader to start or stop flashing its locator
	// indicator.
	SendIdentify(ctx context.Context, serial string, on bool) error
}

// ReaderStatus is one reader's contribution to an availability rollup.
type ReaderStatus struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	State     reader.State `json:"state"`
	Online    bool         `json:"online"`
	Available bool         `json:"available"`
}

// Availability is the aggregated view of an equipment instance's readers.
type Availability struct {
	EquipmentID string         `json:"equipment_id"`
	Total       int            `json:"total"`
	Available   int            `json:"available"`
	InUse       int            `json:"in_use"`
	Readers     []ReaderStatus `json:"readers"`
}

// Controller coordinates reader commands and availability queries.
type Controller struct {
	readers  reader.Repository
	monitor  *liveness.Monitor
	commands CommandSender
	audit    audit.Repository
	logger   *logging.Logger
}

// NewController creates a reader controller.
func NewController(
	readers reader.Repository,
	monitor *liveness.Monitor,
	commands CommandSender,
	auditRepo audit.Repository,
	logger *logging.Logger,
) *Controller {
	return &Controller{
		readers:  readers,
		monitor:  monitor,
		commands: commands,
		audit:    auditRepo,
		logger:   logger.With("component", "control"),
	}
}

// SetState commands the reader to the target state. Only Idle, Lockout,
// AlwaysOn and Restart may be requested. A reader mid-session (Unlocked)
// rejects the command unless force is set. A faulted reader still takes
// commands; Restart is the remote recovery path.
func (c *Controller) SetState(ctx context.Context, id string, target reader.State, force bool, actor string) error {
	if !isCommandable(target) {
		return fmt.Errorf("%w: %q", ErrStateNotCommandable, target)
	}

	rec, err := c.readers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Paired() {
		return reader.ErrNotPaired
	}
	if !rec.Bound() {
		return reader.ErrNotBound
	}

	if rec.ReportedState == reader.StateUnlocked && !force {
		return fmt.Errorf("%w: reader %s is %s", ErrInUse, rec.Name, reader.StateUnlocked)
	}

	if err := c.commands.SendStateCommand(ctx, rec.SerialNumber, target); err != nil {
		return fmt.Errorf("sending state command: %w", err)
	}

	if err := c.readers.SetCommandedState(ctx, id, target); err != nil {
		return fmt.Errorf("recording commanded state: %w", err)
	}

	c.recordAudit(ctx, audit.ActionCommand, id, actor, map[string]any{
		"target": string(target),
		"force":  force,
	})

	c.logger.Info("state commanded",
		"reader_id", id,
		"target", string(target),
		"force", force,
	)
	return nil
}

// Identify asks the reader to flash its locator indicator so an operator
// can find the physical device. Returns whether the reader is currently
// online; an offline reader still gets the message queued at the broker,
// but the caller should not expect a blink.
func (c *Controller) Identify(ctx context.Context, id string, on bool, actor string) (bool, error) {
	rec, err := c.readers.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !rec.Paired() {
		return false, reader.ErrNotPaired
	}

	if err := c.commands.SendIdentify(ctx, rec.SerialNumber, on); err != nil {
		return false, fmt.Errorf("sending identify: %w", err)
	}

	c.recordAudit(ctx, audit.ActionIdentify, id, actor, map[string]any{"on": on})

	return !c.monitor.IsOffline(rec.LastReportAt), nil
}

// ClearHelp clears the reader's help flag after an operator has responded.
func (c *Controller) ClearHelp(ctx context.Context, id, actor string) error {
	if err := c.readers.SetHelpRequested(ctx, id, false); err != nil {
		return err
	}
	c.recordAudit(ctx, audit.ActionClearHelp, id, actor, nil)
	return nil
}

// Bind attaches the reader to the equipment instance it gates.
func (c *Controller) Bind(ctx context.Context, id, equipmentID, actor string) error {
	if equipmentID == "" {
		return fmt.Errorf("%w: equipment id required", reader.ErrInvalid)
	}
	if err := c.readers.SetBinding(ctx, id, equipmentID); err != nil {
		return err
	}
	c.recordAudit(ctx, audit.ActionBind, id, actor, map[string]any{"equipment_id": equipmentID})
	c.logger.Info("reader bound", "reader_id", id, "equipment_id", equipmentID)
	return nil
}

// UnbindEquipment clears every reader binding referencing the equipment
// instance, for when the instance itself is removed. The reader rows and
// their audit history survive; the readers just become unbound.
func (c *Controller) UnbindEquipment(ctx context.Context, equipmentID, actor string) error {
	if err := c.readers.ClearBinding(ctx, equipmentID); err != nil {
		return err
	}
	c.recordAudit(ctx, audit.ActionUnbind, "", actor, map[string]any{"equipment_id": equipmentID})
	c.logger.Info("equipment bindings cleared", "equipment_id", equipmentID)
	return nil
}

// Rename changes a reader's display name.
func (c *Controller) Rename(ctx context.Context, id, name, actor string) error {
	if err := reader.ValidateName(name); err != nil {
		return err
	}
	if err := c.readers.Rename(ctx, id, name); err != nil {
		return err
	}
	c.recordAudit(ctx, audit.ActionRename, id, actor, map[string]any{"name": name})
	return nil
}

// Availability aggregates the equipment instance's readers into an
// available / in-use rollup. A reader counts as available only when it
// reports Idle and its last report is recent enough to trust; anything
// else, including silence, counts as in use. Stale data fails closed.
// Equipment with no bound readers gets an empty rollup, so poll-driven
// UIs can render zero counts without an error path.
func (c *Controller) Availability(ctx context.Context, equipmentID string) (*Availability, error) {
	recs, err := c.readers.ListByEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}

	agg := &Availability{
		EquipmentID: equipmentID,
		Total:       len(recs),
		Readers:     make([]ReaderStatus, 0, len(recs)),
	}

	for _, rec := range recs {
		fresh := !c.monitor.IsStale(rec.LastReportAt)
		available := fresh && rec.ReportedState == reader.StateIdle

		if available {
			agg.Available++
		} else {
			agg.InUse++
		}

		agg.Readers = append(agg.Readers, ReaderStatus{
			ID:        rec.ID,
			Name:      rec.Name,
			State:     rec.ReportedState,
			Online:    !c.monitor.IsOffline(rec.LastReportAt),
			Available: available,
		})
	}

	return agg, nil
}

// recordAudit writes an audit entry, logging and swallowing failures.
func (c *Controller) recordAudit(ctx context.Context, action, readerID, actor string, details map[string]any) {
	err := c.audit.Create(ctx, &audit.AuditLog{
		Action:    action,
		ReaderID:  readerID,
		Actor:     actor,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("audit write failed", "action", action, "reader_id", readerID, "error", err)
	}
}

// isCommandable reports whether operators may request the state.
func isCommandable(s reader.State) bool {
	for _, allowed := range reader.CommandableStates() {
		if s == allowed {
			return true
		}
	}
	return false
}
