package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures token validation
type JWTConfig struct {
	SigningMethod string
	SecretKey     string
	Issuer        string
	Audience      []string
}

// Claims are the validated token claims the rest of the service sees
type Claims struct {
	UserID string
	Email  string
	Expiry time.Time
}

// JWTValidator validates bearer tokens issued by the sign-in provider
type JWTValidator struct {
	config JWTConfig
	method jwt.SigningMethod
}

// NewJWTValidator creates a validator for the configured signing method
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("jwt secret key is required")
	}

	method := jwt.GetSigningMethod(config.SigningMethod)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	return &JWTValidator{config: config, method: method}, nil
}

// Validate parses and verifies a bearer token, returning its claims
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.config.SigningMethod}),
	}
	if v.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.config.Issuer))
	}
	if len(v.config.Audience) > 0 {
		options = append(options, jwt.WithAudience(v.config.Audience[0]))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.UserID = sub
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing subject claim")
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}

	return claims, nil
}
