package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	TokenTypeAccess       TokenType = "access"
	TokenTypeVerification TokenType = "verification"
)

// PurposeEmailVerification marks tokens sent in verification emails
const PurposeEmailVerification = "email_verification"

// DefaultVerificationTTL is how long a verification link stays valid
const DefaultVerificationTTL = 24 * time.Hour

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrInvalidPurpose   = errors.New("invalid token purpose")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenType TokenType `json:"token_type"`
	Purpose   string    `json:"purpose,omitempty"`
}

// JWTService issues and validates storefront tokens
type JWTService struct {
	secret          []byte
	accessTTL       time.Duration
	verificationTTL time.Duration
	issuer          string
	now             func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig, verificationTTL time.Duration) *JWTService {
	if verificationTTL <= 0 {
		verificationTTL = DefaultVerificationTTL
	}
	return &JWTService{
		secret:          []byte(cfg.Secret),
		accessTTL:       cfg.AccessTokenTTL,
		verificationTTL: verificationTTL,
		issuer:          cfg.Issuer,
		now:             time.Now,
	}
}

func (s *JWTService) newClaims(userID uuid.UUID, email string, typ TokenType, ttl time.Duration) *Claims {
	now := s.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:    userID.String(),
		Email:     email,
		TokenType: typ,
	}
}

// GenerateAccessToken issues an access token for a signed-in user
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, email string) (string, time.Time, error) {
	claims := s.newClaims(userID, email, TokenTypeAccess, s.accessTTL)
	token, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// GenerateVerificationToken issues a single-purpose email verification token
func (s *JWTService) GenerateVerificationToken(userID uuid.UUID, email string) (string, error) {
	claims := s.newClaims(userID, email, TokenTypeVerification, s.verificationTTL)
	claims.Purpose = PurposeEmailVerification
	return s.sign(claims)
}

func (s *JWTService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, TokenTypeAccess)
}

// ValidateVerificationToken validates an email verification token
func (s *JWTService) ValidateVerificationToken(tokenString string) (*Claims, error) {
	claims, err := s.validateToken(tokenString, TokenTypeVerification)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeEmailVerification {
		return nil, ErrInvalidPurpose
	}
	return claims, nil
}

func (s *JWTService) validateToken(tokenString string, expectedType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// GetUserUUID extracts and parses the user ID from claims
func (c *Claims) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

// AccessTokenTTL returns the access token lifetime
func (s *JWTService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}
