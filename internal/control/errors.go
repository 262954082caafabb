package control

import "errors"

// Package-level errors for reader control operations.
var (
	// ErrStateNotCommandable indicates the target state is not one an
	// operator may request. Startup, Unlocked and Fault are
	// device-originated only.
	ErrStateNotCommandable = errors.New("control: state not commandable")

	// ErrInUse indicates the reader is mid-session and the command did
	// not carry the force flag.
	ErrInUse = errors.New("control: reader in use")
)
