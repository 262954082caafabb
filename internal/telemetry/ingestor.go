// Package telemetry ingests reader status reports from the device
// transport and fans them out to persistence, metrics, and live
// subscribers.
//
// Reports are device-authoritative: whatever state a reader claims is
// recorded as-is. The service never second-guesses firmware about the
// device's own condition; it only judges freshness (see liveness).
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openfab-labs/acs-core/internal/access"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/reader"
)

// handleTimeout bounds the database work for one report. Handlers run on
// transport goroutines and must not block the message pump.
const handleTimeout = 5 * time.Second

// Report is the JSON payload a reader publishes to acs/report/<serial>.
type Report struct {
	State           string   `json:"state"`
	Temperature     *float64 `json:"temp,omitempty"`
	HelpRequested   bool     `json:"help_requested"`
	CardID          string   `json:"card_id,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	FirmwareVersion string   `json:"firmware_version,omitempty"`
}

// MetricsRecorder receives telemetry samples for time-series storage.
// Satisfied by influxdb.Client.
type MetricsRecorder interface {
	WriteReaderTemperature(readerID, serial string, celsius float64)
	WriteReaderState(readerID, serial, state string)
}

// Broadcaster pushes reader updates to live UI subscribers.
// Satisfied by the API websocket hub.
type Broadcaster interface {
	BroadcastReaderUpdate(r *reader.Reader)
}

// GrantSender delivers access decisions back to readers after a swipe.
// Satisfied by transport.Client.
type GrantSender interface {
	SendAccessDecision(ctx context.Context, serial, cardID string, allowed bool, reason string) error
}

// Ingestor applies incoming reports to the reader store and forwards
// samples to metrics and live subscribers. Metrics and broadcast sinks
// are optional; a nil sink is skipped.
type Ingestor struct {
	readers   reader.Repository
	metrics   MetricsRecorder
	broadcast Broadcaster
	checker   access.Checker
	grants    GrantSender
	logger    *logging.Logger
	now       func() time.Time
}

// NewIngestor creates a report ingestor. metrics and broadcast may be nil.
func NewIngestor(readers reader.Repository, metrics MetricsRecorder, broadcast Broadcaster, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		readers:   readers,
		metrics:   metrics,
		broadcast: broadcast,
		logger:    logger.With("component", "telemetry"),
		now:       time.Now,
	}
}

// SetClock overrides the ingestor's clock. For tests.
func (i *Ingestor) SetClock(now func() time.Time) {
	i.now = now
}

// SetAccessControl attaches the authorization checker and the grant
// channel used to answer card swipes. Without a grants sender swipes are
// only recorded; without a checker every swipe is denied.
func (i *Ingestor) SetAccessControl(checker access.Checker, grants GrantSender) {
	i.checker = checker
	i.grants = grants
}

// HandleReport processes one raw report from the transport. The signature
// matches transport.ReportHandler so it can be passed to SubscribeReports
// directly.
//
// Reports from serials with no reader record are dropped with a warning:
// either the device was unpaired out from under itself or something is
// publishing on the fleet prefix that shouldn't be.
func (i *Ingestor) HandleReport(serial string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding report from %s: %w", serial, err)
	}

	state := reader.State(report.State)
	if err := reader.ValidateState(state); err != nil {
		return fmt.Errorf("report from %s: %w", serial, err)
	}

	rec, err := i.readers.GetBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, reader.ErrNotFound) {
			i.logger.Warn("report from unknown serial", "serial", serial)
			return nil
		}
		return fmt.Errorf("looking up reader %s: %w", serial, err)
	}

	at := i.now().UTC()
	update := reader.ReportUpdate{
		State:           state,
		Temperature:     report.Temperature,
		CardID:          report.CardID,
		Reason:          report.Reason,
		FirmwareVersion: report.FirmwareVersion,
		HelpRequested:   report.HelpRequested,
	}
	if err := i.readers.ApplyReport(ctx, rec.ID, update, at); err != nil {
		return fmt.Errorf("applying report for %s: %w", rec.ID, err)
	}

	i.recordMetrics(rec, &report)

	if report.CardID != "" && report.CardID != rec.CurrentCardID {
		i.handleSwipe(ctx, rec, report.CardID)
	}

	if i.broadcast != nil {
		updated := rec.Clone()
		updated.ReportedState = state
		updated.Temperature = report.Temperature
		updated.CurrentCardID = report.CardID
		updated.LastReportReason = report.Reason
		updated.FirmwareVersion = report.FirmwareVersion
		updated.HelpRequested = report.HelpRequested
		updated.LastReportAt = &at
		i.broadcast.BroadcastReaderUpdate(updated)
	}

	if report.HelpRequested && !rec.HelpRequested {
		i.logger.Info("help requested", "reader_id", rec.ID, "name", rec.Name)
	}

	return nil
}

// handleSwipe answers a newly presented card with an access decision.
// The reader stays locked until a grant arrives, so every outcome here
// fails closed: unbound reader, missing rules engine, and check errors
// all come back as denials with a reason the device can display.
func (i *Ingestor) handleSwipe(ctx context.Context, rec *reader.Reader, cardID string) {
	if i.grants == nil {
		i.logger.Debug("swipe seen, no grant channel", "reader_id", rec.ID, "card_id", cardID)
		return
	}

	allowed := false
	reason := ""
	switch {
	case rec.EquipmentID == nil:
		reason = "reader not bound to equipment"
	case i.checker == nil:
		reason = "access rules unavailable"
	default:
		decision, err := i.checker.CheckAccess(ctx, cardID, *rec.EquipmentID)
		if err != nil {
			i.logger.Error("access check failed", "reader_id", rec.ID, "card_id", cardID, "error", err)
			reason = "access check failed"
		} else {
			allowed = decision.Allowed
			reason = decision.Reason
		}
	}

	if err := i.grants.SendAccessDecision(ctx, rec.SerialNumber, cardID, allowed, reason); err != nil {
		// The device treats a missing decision as a denial.
		i.logger.Warn("grant delivery failed", "reader_id", rec.ID, "error", err)
		return
	}

	i.logger.Info("card swipe decided",
		"reader_id", rec.ID, "card_id", cardID, "allowed", allowed, "reason", reason)
}

// recordMetrics forwards samples to the time-series sink. State writes
// only happen on transitions to keep the series sparse.
func (i *Ingestor) recordMetrics(rec *reader.Reader, report *Report) {
	if i.metrics == nil {
		return
	}

	if report.Temperature != nil {
		i.metrics.WriteReaderTemperature(rec.ID, rec.SerialNumber, *report.Temperature)
	}
	if reader.State(report.State) != rec.ReportedState {
		i.metrics.WriteReaderState(rec.ID, rec.SerialNumber, report.State)
	}
}
