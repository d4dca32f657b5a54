package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/cloo-solutions/coursechat/internal/domain"
)

// AdminPrincipal identifies requests authenticated with the admin token.
const AdminPrincipal = "admin"

// AuthService guards the document management endpoints with a shared admin token.
type AuthService struct {
	tokenHash [sha256.Size]byte
	enabled   bool
}

// NewAuthService creates an AuthService. An empty token disables admin access.
func NewAuthService(adminToken string) *AuthService {
	adminToken = strings.TrimSpace(adminToken)
	return &AuthService{
		tokenHash: sha256.Sum256([]byte(adminToken)),
		enabled:   adminToken != "",
	}
}

// Enabled reports whether an admin token is configured.
func (s *AuthService) Enabled() bool {
	return s.enabled
}

// ValidateAdminToken checks a bearer token and returns the authenticated principal.
func (s *AuthService) ValidateAdminToken(ctx context.Context, token string) (string, error) {
	if !s.enabled {
		return "", domain.ErrAdminDisabled
	}
	if token == "" {
		return "", domain.ErrInvalidAdminToken
	}

	hash := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(hash[:], s.tokenHash[:]) != 1 {
		return "", domain.ErrInvalidAdminToken
	}
	return AdminPrincipal, nil
}
