package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/PabloGalante/docchat/internal/domain"
)

// idTokenVerifier is the part of *auth.Client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Verifier is a domain.TokenVerifier backed by Firebase Authentication.
type Verifier struct {
	client idTokenVerifier
}

// Credentials picks where the service account comes from. JSON wins over
// Path; with neither, application default credentials are used.
type Credentials struct {
	JSON string
	Path string
}

// ClientOptions turns the credential settings into Google API client
// options. Firestore and Firebase share them.
func (c Credentials) ClientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.Path != "":
		return []option.ClientOption{option.WithCredentialsFile(c.Path)}
	default:
		return nil
	}
}

func NewVerifier(ctx context.Context, projectID string, creds Credentials) (*Verifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, creds.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth: %w", err)
	}
	return &Verifier{client: client}, nil
}

func (v *Verifier) VerifyToken(ctx context.Context, token string) (*domain.Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	return identityFromToken(tok), nil
}

func classify(err error) error {
	switch {
	case auth.IsIDTokenExpired(err):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case auth.IsIDTokenInvalid(err):
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
}

func identityFromToken(tok *auth.Token) *domain.Identity {
	id := &domain.Identity{UID: domain.UserID(tok.UID)}
	if v, ok := tok.Claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := tok.Claims["name"].(string); ok {
		id.Name = v
	}
	if v, ok := tok.Claims["picture"].(string); ok {
		id.Picture = v
	}
	return id
}
