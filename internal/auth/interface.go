package auth

import "braindump/internal/domain/models"

// JWTVerifier validates access tokens issued by the auth provider.
type JWTVerifier interface {
	// VerifyToken validates a JWT and returns its claims. Any failure is
	// reported as domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases resources held by the verifier.
	Close() error
}
