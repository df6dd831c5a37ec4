package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/config"
	apperrors "github.com/yoozak/yoozak-backend/pkg/errors"
)

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
	OperatorID  string   `json:"operator_id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Actor converts the claims to the request actor
func (c *Claims) Actor() *actor.Actor {
	return &actor.Actor{
		ID:          c.OperatorID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: c.Permissions,
	}
}

// Manager handles JWT operations
type Manager struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewManager creates a new JWT manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg, now: time.Now}
}

// OperatorInfo contains operator information for token generation
type OperatorInfo struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Role        string
	Permissions []string
}

// Token is an issued access token
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// GenerateToken issues a signed access token for an operator
func (m *Manager) GenerateToken(op *OperatorInfo) (*Token, error) {
	now := m.now()
	expiry := now.Add(m.config.AccessExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   op.ID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		OperatorID:  op.ID,
		Email:       op.Email,
		FirstName:   op.FirstName,
		LastName:    op.LastName,
		Role:        op.Role,
		Permissions: op.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiry,
		TokenType:   "Bearer",
	}, nil
}

// ValidateAccessToken validates an access token and returns the claims
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.TokenInvalid()
	}

	return claims, nil
}

// ValidateToken implements the authentication middleware's validator
func (m *Manager) ValidateToken(tokenString string) (*actor.Actor, error) {
	claims, err := m.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Actor(), nil
}

// GetTokenExpiry returns the access token expiry duration
func (m *Manager) GetTokenExpiry() time.Duration {
	return m.config.AccessExpiry
}
