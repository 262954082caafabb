package reader

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength   = 100
	maxSerialLength = 64
	serialPattern   = `^[A-Za-z0-9][A-Za-z0-9:_-]*$`
)

var serialRegex = regexp.MustCompile(serialPattern)

// validStates is a pre-computed lookup set built once at startup.
var validStates map[State]struct{}

func init() {
	validStates = make(map[State]struct{}, len(AllStates()))
	for _, s := range AllStates() {
		validStates[s] = struct{}{}
	}
}

// ValidateName checks a reader name is non-empty and within length limits.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSerial checks a hardware serial number is well formed.
func ValidateSerial(serial string) error {
	if serial == "" {
		return fmt.Errorf("%w: serial number is required", ErrInvalidSerial)
	}
	if len(serial) > maxSerialLength {
		return fmt.Errorf("%w: serial number exceeds %d characters", ErrInvalidSerial, maxSerialLength)
	}
	if !serialRegex.MatchString(serial) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, serial)
	}
	return nil
}

// ValidateState checks a state value is one of the known reader states.
func ValidateState(s State) error {
	if _, ok := validStates[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return nil
}

// ValidateReader performs validation on a reader record prior to persistence.
// Returns an error describing the first validation failure found.
func ValidateReader(r *Reader) error {
	if r == nil {
		return ErrInvalid
	}

	if err := ValidateName(r.Name); err != nil {
		return err
	}

	// Serial is optional for operator-created shell records.
	if r.SerialNumber != "" {
		if err := ValidateSerial(r.SerialNumber); err != nil {
			return err
		}
	}

	if r.KeyCycle < 0 {
		return fmt.Errorf("%w: key cycle must not be negative", ErrInvalid)
	}

	if r.ReportedState != "" {
		if err := ValidateState(r.ReportedState); err != nil {
			return err
		}
	}
	if r.CommandedState != "" {
		if err := ValidateState(r.CommandedState); err != nil {
			return err
		}
	}

	return nil
}

// GenerateID creates a new unique reader identifier.
// Format: "rdr-" followed by the first 8 characters of a UUID.
func GenerateID() string {
	return "rdr-" + uuid.NewString()[:8]
}
