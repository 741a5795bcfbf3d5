package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

// Authenticator turns an Authorization header into a caller identity.
type Authenticator struct {
	verifier domain.TokenVerifier
}

func NewAuthenticator(verifier domain.TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Required verifies the header and fails when there is no valid token.
// Errors wrap ErrMissingToken, ErrTokenExpired, ErrTokenInvalid or ErrAuthFailed.
func (a *Authenticator) Required(ctx context.Context, header string) (*domain.Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, domain.ErrMissingToken
	}

	id, err := a.verifier.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) ||
			errors.Is(err, domain.ErrTokenInvalid) ||
			errors.Is(err, domain.ErrAuthFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if id == nil || id.UID == "" {
		return nil, fmt.Errorf("%w: token carries no uid", domain.ErrTokenInvalid)
	}
	return id, nil
}

// Optional never fails: a missing or rejected token means an anonymous caller.
func (a *Authenticator) Optional(ctx context.Context, header string) *domain.Identity {
	if _, ok := BearerToken(header); !ok {
		return nil
	}
	id, err := a.Required(ctx, header)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug("optional auth fell back to anonymous", "error", err)
		return nil
	}
	return id
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return id
}

// UserID is "" for anonymous callers.
func UserID(ctx context.Context) domain.UserID {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UID
	}
	return ""
}
