package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"braindump/internal/domain"
	"braindump/internal/domain/models"
)

// Only asymmetric algorithms are accepted, which rules out alg confusion
// with a public key used as an HMAC secret.
var allowedAlgorithms = []string{"RS256", "ES256"}

// AuthenticatedRole is the role Supabase puts in tokens of signed-in users.
const AuthenticatedRole = "authenticated"

// SupabaseJWTVerifier implements JWTVerifier using Supabase's JWKS.
type SupabaseJWTVerifier struct {
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from jwksURL.
// keyfunc caches the keys and refreshes them in the background until Close.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return &SupabaseJWTVerifier{jwks: jwks, cancel: cancel, logger: logger}, nil
}

// NewStaticJWTVerifier verifies against a fixed JWK Set, e.g. a local
// Supabase instance's keys checked into configuration.
func NewStaticJWTVerifier(jwksJSON json.RawMessage, logger *slog.Logger) (JWTVerifier, error) {
	jwks, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		return nil, fmt.Errorf("parse JWK set: %w", err)
	}
	return &SupabaseJWTVerifier{jwks: jwks, cancel: func() {}, logger: logger}, nil
}

// VerifyToken validates a token and extracts its Supabase claims.
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.SupabaseClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SupabaseClaims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*models.SupabaseClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}

	// Anonymous sessions carry role "anon"
	if claims.Role != AuthenticatedRole {
		v.logger.Debug("token has unexpected role", "role", claims.Role, "user_id", claims.Subject)
		return nil, fmt.Errorf("%w: role %q", domain.ErrUnauthorized, claims.Role)
	}

	return claims, nil
}

// Close stops the background JWKS refresh.
func (v *SupabaseJWTVerifier) Close() error {
	v.cancel()
	v.logger.Info("JWT verifier closed")
	return nil
}
