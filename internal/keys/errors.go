package keys

import "errors"

// Domain errors for the keys package.
var (
	// ErrNoSecret is returned when the deployment shared secret is absent.
	ErrNoSecret = errors.New("keys: shared secret is required")

	// ErrEmptySerial is returned when deriving a key for an empty serial.
	ErrEmptySerial = errors.New("keys: serial number is required")

	// ErrNegativeCycle is returned when deriving a key for a negative cycle.
	ErrNegativeCycle = errors.New("keys: key cycle must not be negative")
)
