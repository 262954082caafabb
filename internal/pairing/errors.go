package pairing

import "errors"

// Package-level errors for pairing operations.
var (
	// ErrTrustAnchorMissing indicates the deployment has no trust anchor
	// configured. Pairing is refused outright; a reader provisioned
	// without anchor material could never verify the service.
	ErrTrustAnchorMissing = errors.New("pairing: trust anchor not configured")
)
