package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// ClientID scopes portal users to their own billing account; staff tokens
// (role admin) carry no client_id and are authorized via rbac checks.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id,omitempty"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
