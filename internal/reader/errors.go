package reader

import "errors"

// Domain errors for the reader package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, reader.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a reader id, serial or name does not exist.
	ErrNotFound = errors.New("reader: not found")

	// ErrExists is returned when creating a reader whose serial or name
	// is already taken.
	ErrExists = errors.New("reader: already exists")

	// ErrInvalid is returned when reader validation fails.
	ErrInvalid = errors.New("reader: invalid")

	// ErrInvalidName is returned when a reader name is empty, too long,
	// or malformed.
	ErrInvalidName = errors.New("reader: invalid name")

	// ErrInvalidState is returned when a state value is not recognised.
	ErrInvalidState = errors.New("reader: invalid state")

	// ErrInvalidSerial is returned when a serial number is empty or malformed.
	ErrInvalidSerial = errors.New("reader: invalid serial number")

	// ErrNotPaired is returned when an operation requires a paired reader.
	ErrNotPaired = errors.New("reader: not paired")

	// ErrNotBound is returned when an operation requires an equipment binding.
	ErrNotBound = errors.New("reader: not bound to equipment")
)
