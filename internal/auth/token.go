package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"sharecrop/internal/models"
)

var (
	ErrMissingToken = errors.New("authorization header is missing")
	ErrMalformed    = errors.New("authorization header format must be 'Bearer {token}'")
	ErrNoSubject    = errors.New("subject claim not found in token")
)

// Verifier turns a raw bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (models.Identity, error)
}

// Claims carried by tokens this service issues. OIDC providers are read
// through the same names (name, role) plus preferred_username.
type Claims struct {
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Role              string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) identity() (models.Identity, error) {
	if c.Subject == "" {
		return models.Identity{}, ErrNoSubject
	}
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return models.Identity{ID: c.Subject, Name: name, Role: models.Role(c.Role)}, nil
}

// ExtractTokenFromRequest extracts the bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrMalformed
	}
	return parts[1], nil
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{Secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (models.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims.identity()
}

// IssueToken signs an HS256 token for id. Used by local tooling and tests;
// production deployments point OIDC_ISSUER at the identity provider.
func (v *HMACVerifier) IssueToken(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: id.Name,
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// OIDCVerifier checks tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	// Access tokens from the provider carry no fixed audience.
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (models.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return models.Identity{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	claims.Subject = idToken.Subject
	return claims.identity()
}
