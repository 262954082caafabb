// Package access defines the contract with the authorization rules engine.
//
// Whether a user may run a piece of equipment is decided elsewhere (holds,
// training completion, reservations); this core consumes the verdict as an
// opaque gate when a card swipe arrives.
package access

import "context"

// Decision is the non-persisted result of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Checker is implemented by the external access-rules collaborator.
type Checker interface {
	// CheckAccess reports whether the user may operate the equipment.
	CheckAccess(ctx context.Context, userID, equipmentID string) (Decision, error)
}
