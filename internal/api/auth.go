package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Caller roles. Tokens are issued by the makerspace identity service using
// the shared JWT secret; this server only validates them.
const (
	RoleOperator = "operator"
	RoleManager  = "manager"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// Identity describes an authenticated API caller.
type Identity struct {
	Subject string
	Role    string
}

// parseToken validates a JWT and extracts the caller identity.
func (s *Server) parseToken(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.secCfg.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("unexpected claims type")
	}

	subject, _ := claims["sub"].(string) //nolint:errcheck // missing sub handled below
	if subject == "" {
		return Identity{}, fmt.Errorf("token missing subject")
	}

	role, _ := claims["role"].(string) //nolint:errcheck // missing role falls back to operator
	switch role {
	case RoleManager, "admin":
		role = RoleManager
	default:
		role = RoleOperator
	}

	return Identity{Subject: subject, Role: role}, nil
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	identity  Identity
	expiresAt time.Time
}

// newTicketStore creates an empty ticket store.
func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleWSTicket generates a single-use WebSocket authentication ticket
// carrying the caller's identity. The client presents the ticket when
// opening the WebSocket so the JWT never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := generateTicket()

	s.tickets.mu.Lock()
	s.tickets.tickets[ticket] = ticketEntry{
		identity:  identityFrom(r.Context()),
		expiresAt: time.Now().Add(ticketTTL),
	}
	s.tickets.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// consume checks a ticket, returning its identity and validity. Valid or
// not, the ticket is removed (single-use).
func (ts *ticketStore) consume(ticket string) (Identity, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return Identity{}, false
	}

	delete(ts.tickets, ticket)

	if time.Now().After(entry.expiresAt) {
		return Identity{}, false
	}
	return entry.identity, true
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// cleanLoop runs cleanExpired periodically until the context is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.cleanExpired()
		}
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
