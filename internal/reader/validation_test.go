package reader

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "swift-sprocket", false},
		{"single character", "x", false},
		{"with spaces", "front door reader", false},
		{"empty", "", true},
		{"at limit", strings.Repeat("a", maxNameLength), false},
		{"over limit", strings.Repeat("a", maxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("error = %v, want ErrInvalidName", err)
			}
		})
	}
}

func TestValidateSerial(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple serial", "SHLUG0042", false},
		{"with separators", "SHLUG-00:42_A", false},
		{"lowercase", "shlug-0042", false},
		{"empty", "", true},
		{"leading colon", ":SHLUG-0042", true},
		{"leading dash", "-SHLUG", true},
		{"contains space", "SHLUG 0042", true},
		{"contains slash", "SHLUG/0042", true},
		{"at limit", strings.Repeat("A", maxSerialLength), false},
		{"over limit", strings.Repeat("A", maxSerialLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSerial(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSerial(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSerial) {
				t.Errorf("error = %v, want ErrInvalidSerial", err)
			}
		})
	}
}

func TestValidateState(t *testing.T) {
	for _, s := range AllStates() {
		if err := ValidateState(s); err != nil {
			t.Errorf("ValidateState(%q) error = %v", s, err)
		}
	}

	for _, s := range []State{"", "unlocked", "Offline", "IDLE"} {
		if err := ValidateState(s); !errors.Is(err, ErrInvalidState) {
			t.Errorf("ValidateState(%q) error = %v, want ErrInvalidState", s, err)
		}
	}
}

func TestValidateReader(t *testing.T) {
	valid := func() *Reader {
		return &Reader{
			ID:             "rdr-0001",
			Name:           "swift-sprocket",
			SerialNumber:   "SHLUG-0042",
			ReportedState:  StateIdle,
			CommandedState: StateIdle,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Reader)
		wantErr error
	}{
		{"valid reader", func(r *Reader) {}, nil},
		{"shell record without serial", func(r *Reader) { r.SerialNumber = "" }, nil},
		{"empty states allowed", func(r *Reader) { r.ReportedState = ""; r.CommandedState = "" }, nil},
		{"missing name", func(r *Reader) { r.Name = "" }, ErrInvalidName},
		{"bad serial", func(r *Reader) { r.SerialNumber = "has spaces" }, ErrInvalidSerial},
		{"negative key cycle", func(r *Reader) { r.KeyCycle = -1 }, ErrInvalid},
		{"unknown reported state", func(r *Reader) { r.ReportedState = "Sleeping" }, ErrInvalidState},
		{"unknown commanded state", func(r *Reader) { r.CommandedState = "Sleeping" }, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(rec)
			err := ValidateReader(rec)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateReader() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateReader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("nil reader", func(t *testing.T) {
		if err := ValidateReader(nil); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateReader(nil) error = %v, want ErrInvalid", err)
		}
	})
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for n := 0; n < 100; n++ {
		id := GenerateID()
		if !strings.HasPrefix(id, "rdr-") {
			t.Fatalf("GenerateID() = %q, want rdr- prefix", id)
		}
		if len(id) != len("rdr-")+8 {
			t.Fatalf("GenerateID() = %q, want 8-character suffix", id)
		}
		if seen[id] {
			t.Fatalf("GenerateID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}
