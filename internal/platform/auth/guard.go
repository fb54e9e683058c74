package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/identity"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// RoleMetadataKey is the user metadata field holding the role.
const RoleMetadataKey = "role"

var knownRoles = map[Role]bool{RolePatient: true, RoleDoctor: true, RoleAdmin: true}

// ParseRole maps an opaque provider value to a Role. ok is false for missing
// or unrecognized values, in which case RolePatient is returned.
func ParseRole(v string) (r Role, ok bool) {
	r = Role(strings.ToLower(strings.TrimSpace(v)))
	if knownRoles[r] {
		return r, true
	}
	return RolePatient, false
}

var ErrForbidden = errors.New("forbidden")

// Decision is the outcome of an authorization check.
type Decision struct {
	OK     bool   `json:"ok"`
	Role   Role   `json:"role"`
	Reason string `json:"reason,omitempty"`
}

// Guard resolves the caller's role from the identity provider and answers
// role-gated questions.
type Guard struct {
	provider identity.Provider
	logger   zerolog.Logger
}

func NewGuard(provider identity.Provider, logger zerolog.Logger) *Guard {
	return &Guard{provider: provider, logger: logger.With().Str("component", "role_guard").Logger()}
}

// CurrentRole returns the role stored in the session user's metadata. It
// falls back to RolePatient when there is no session, the lookup fails (logged),
// or the stored value is not a known role.
func (g *Guard) CurrentRole(ctx context.Context) Role {
	s := SessionFromContext(ctx)
	if s == nil {
		return RolePatient
	}
	u, err := g.provider.GetUser(ctx, s.AccessToken)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("role lookup failed, using patient")
		return RolePatient
	}
	role, _ := ParseRole(u.MetadataString(RoleMetadataKey))
	return role
}

// Authorize checks the caller's role against allowed. It never errors.
func (g *Guard) Authorize(ctx context.Context, allowed ...Role) Decision {
	return decide(g.CurrentRole(ctx), allowed)
}

func decide(current Role, allowed []Role) Decision {
	for _, r := range allowed {
		if r == current {
			return Decision{OK: true, Role: current}
		}
	}
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return Decision{
		OK:     false,
		Role:   current,
		Reason: fmt.Sprintf("required role: %s (current role: %s)", strings.Join(names, " or "), current),
	}
}

// UpdateRole changes another user's role. Only admins may do this; provider
// failures are returned with the provider's message.
func (g *Guard) UpdateRole(ctx context.Context, targetUserID string, newRole Role) error {
	if targetUserID == "" {
		return fmt.Errorf("target user id is required")
	}
	if !knownRoles[newRole] {
		return fmt.Errorf("invalid role: %s", newRole)
	}
	if d := g.Authorize(ctx, RoleAdmin); !d.OK {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	_, err := g.provider.UpdateUserMetadata(ctx, targetUserID, map[string]interface{}{
		RoleMetadataKey: string(newRole),
	})
	if err != nil {
		g.logger.Error().Err(err).Str("target_user_id", targetUserID).Str("role", string(newRole)).Msg("role update failed")
		return fmt.Errorf("update role: %w", err)
	}
	g.logger.Info().
		Str("actor", UserIDFromContext(ctx)).
		Str("target_user_id", targetUserID).
		Str("role", string(newRole)).
		Msg("role updated")
	return nil
}
