package apiv1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
)

// Authenticator verifies HS256 bearer tokens issued by the identity service.
// The token only names the user; the role always comes from the role store.
type Authenticator struct {
	secret []byte
	issuer string
	roles  repository.RoleRepository
}

func NewAuthenticator(secret, issuer string, roles repository.RoleRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, roles: roles}
}

// Mint signs a token for userID. Used by tooling and tests.
func (a *Authenticator) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Identify resolves the caller of r. Missing, malformed or expired tokens
// yield domain.ErrUnauthenticated.
func (a *Authenticator) Identify(r *http.Request) (model.Identity, error) {
	if len(a.secret) == 0 {
		return model.Identity{}, domain.ErrUnauthenticated
	}
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return model.Identity{}, domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return model.Identity{}, domain.ErrUnauthenticated
	}

	role, err := a.roles.RoleOf(r.Context(), claims.Subject)
	if err != nil {
		return model.Identity{}, err
	}
	return model.Identity{UserID: claims.Subject, Role: role}, nil
}

type identityKey struct{}

func withIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey{}).(model.Identity)
	return id
}
