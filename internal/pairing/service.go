// Package pairing implements the reader enrolment handshake: a factory or
// operator presents a hardware serial, and the service answers with the
// credential bundle the device needs to join the fleet.
//
// Pairing reuses the per-serial record but never the key material, and is
// deliberately not idempotent: every call advances the reader's key cycle,
// so a re-paired device gets a fresh key and any credential issued for an
// earlier cycle stops matching what the service derives. Revocation is
// therefore just pairing again.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/keys"
	"github.com/openfab-labs/acs-core/internal/reader"
	"github.com/openfab-labs/acs-core/internal/settings"
)

// Certificate is the credential bundle returned to a pairing device.
type Certificate struct {
	Key             string `json:"key"`
	DeviceName      string `json:"device_name"`
	ServiceEndpoint string `json:"service_endpoint"`
	TrustAnchor     string `json:"trust_anchor"`
}

// Service orchestrates reader pairing.
type Service struct {
	readers         reader.Repository
	deriver         *keys.Deriver
	settings        settings.Repository
	audit           audit.Repository
	logger          *logging.Logger
	serviceEndpoint string
}

// NewService creates a pairing service.
func NewService(
	readers reader.Repository,
	deriver *keys.Deriver,
	settingsRepo settings.Repository,
	auditRepo audit.Repository,
	logger *logging.Logger,
	serviceEndpoint string,
) *Service {
	return &Service{
		readers:         readers,
		deriver:         deriver,
		settings:        settingsRepo,
		audit:           auditRepo,
		logger:          logger.With("component", "pairing"),
		serviceEndpoint: serviceEndpoint,
	}
}

// Pair enrols the reader with the given serial and returns its credential
// bundle. An unknown serial gets a fresh reader record with a generated
// name; a known serial keeps its record and bindings. Either way the key
// cycle advances, invalidating any previously issued key for this serial.
func (s *Service) Pair(ctx context.Context, serial, actor string) (*Certificate, error) {
	if err := reader.ValidateSerial(serial); err != nil {
		return nil, err
	}

	// Refuse before touching the store. Advancing the cycle and then
	// failing would burn key material for nothing.
	anchor, err := s.settings.Get(ctx, settings.KeyTrustAnchor)
	if err != nil {
		if errors.Is(err, settings.ErrNotSet) {
			return nil, ErrTrustAnchorMissing
		}
		return nil, fmt.Errorf("loading trust anchor: %w", err)
	}

	rec, err := s.readers.GetBySerial(ctx, serial)
	if errors.Is(err, reader.ErrNotFound) {
		rec, err = s.createReader(ctx, serial)
		if errors.Is(err, reader.ErrExists) {
			// Lost the create race to a concurrent pairing of the same
			// serial. No cycle was advanced yet, so adopting the
			// winner's record is safe; this call then pairs at the
			// next cycle.
			rec, err = s.readers.GetBySerial(ctx, serial)
		}
	}
	if err != nil {
		return nil, err
	}

	pairedAt := time.Now().UTC()
	cycle, err := s.readers.AdvanceKeyCycle(ctx, rec.ID, pairedAt)
	if err != nil {
		return nil, fmt.Errorf("advancing key cycle: %w", err)
	}

	key, err := s.deriver.DeriveKey(serial, cycle, pairedAt)
	if err != nil {
		return nil, fmt.Errorf("deriving reader key: %w", err)
	}

	s.recordAudit(ctx, rec.ID, actor, serial, cycle)

	s.logger.Info("reader paired",
		"reader_id", rec.ID,
		"serial", serial,
		"key_cycle", cycle,
	)

	return &Certificate{
		Key:             key,
		DeviceName:      rec.Name,
		ServiceEndpoint: s.serviceEndpoint,
		TrustAnchor:     anchor,
	}, nil
}

// createReader inserts a fresh record for a never-seen serial. A
// concurrent pairing of the same serial surfaces as ErrExists from
// Create; Pair then re-reads the winner's record.
func (s *Service) createReader(ctx context.Context, serial string) (*reader.Reader, error) {
	name, err := reader.UniqueName(ctx, s.readers)
	if err != nil {
		return nil, fmt.Errorf("generating reader name: %w", err)
	}

	rec := &reader.Reader{
		ID:             reader.GenerateID(),
		Name:           name,
		SerialNumber:   serial,
		ReportedState:  reader.StateStartup,
		CommandedState: reader.StateIdle,
	}
	if err := s.readers.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating reader: %w", err)
	}

	s.logger.Info("reader registered", "reader_id", rec.ID, "name", name, "serial", serial)
	return rec, nil
}

// recordAudit writes the pairing audit entry. Failures are logged and
// swallowed; the device already holds its credentials at this point.
func (s *Service) recordAudit(ctx context.Context, readerID, actor, serial string, cycle int) {
	err := s.audit.Create(ctx, &audit.AuditLog{
		Action:   audit.ActionPair,
		ReaderID: readerID,
		Actor:    actor,
		Details: map[string]any{
			"serial":    serial,
			"key_cycle": cycle,
		},
	})
	if err != nil {
		s.logger.Warn("audit write failed", "action", audit.ActionPair, "reader_id", readerID, "error", err)
	}
}
