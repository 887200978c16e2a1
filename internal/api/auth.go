package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-installer/internal/auth"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketCleanupInterval is how often expired tickets are purged.
	ticketCleanupInterval = time.Minute
)

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	now     func() time.Time
}

type ticketEntry struct {
	identity  auth.Identity
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry), now: time.Now}
}

// issue creates a ticket for id.
func (ts *ticketStore) issue(id auth.Identity) string {
	ticket := uuid.NewString()
	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{identity: id, expiresAt: ts.now().Add(ticketTTL)}
	ts.mu.Unlock()
	return ticket
}

// redeem validates and consumes a ticket.
func (ts *ticketStore) redeem(ticket string) (auth.Identity, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return auth.Identity{}, false
	}
	delete(ts.tickets, ticket)
	if ts.now().After(entry.expiresAt) {
		return auth.Identity{}, false
	}
	return entry.identity, true
}

// purge drops expired tickets.
func (ts *ticketStore) purge() {
	now := ts.now()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for t, e := range ts.tickets {
		if now.After(e.expiresAt) {
			delete(ts.tickets, t)
		}
	}
}

// cleanLoop purges expired tickets until ctx is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.purge()
		}
	}
}

// meResponse is the response body for GET /auth/me.
type meResponse struct {
	AuthEnabled bool              `json:"auth_enabled"`
	Subject     string            `json:"subject,omitempty"`
	Role        auth.Role         `json:"role,omitempty"`
	Permissions []auth.Permission `json:"permissions,omitempty"`
}

// handleMe describes the caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusOK, meResponse{AuthEnabled: s.authEnabled()})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		AuthEnabled: true,
		Subject:     claims.Subject,
		Role:        claims.Role,
		Permissions: auth.PermissionsForRole(claims.Role),
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	var id auth.Identity
	if claims := claimsFromContext(r.Context()); claims != nil {
		id = claims.Identity()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(id),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// issueTokenRequest is the request body for POST /auth/token.
type issueTokenRequest struct {
	Subject string    `json:"subject"`
	Role    auth.Role `json:"role"`
	// TTLMinutes overrides the configured token lifetime.
	TTLMinutes int `json:"ttl_minutes,omitempty"`
}

// tokenResponse is the response body for POST /auth/token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleIssueToken lets an admin mint a token for a technician.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		writeBadRequest(w, "authentication is disabled")
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	token, err := auth.GenerateAccessToken(auth.Identity{Subject: req.Subject, Role: req.Role}, []byte(s.secCfg.JWT.Secret), ttl)
	switch {
	case errors.Is(err, auth.ErrInvalidSubject), errors.Is(err, auth.ErrUnknownRole):
		writeBadRequest(w, err.Error())
		return
	case err != nil:
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	claims, err := auth.ParseToken(token, []byte(s.secCfg.JWT.Secret))
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}
	s.logger.Info("access token issued",
		"subject", req.Subject,
		"role", string(req.Role),
		"issued_by", claimsFromContext(r.Context()).Subject,
	)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(claims.ExpiresAt.Time).Round(time.Second).Seconds()),
	})
}
