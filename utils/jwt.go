package utils

import (
	"errors"
	"time"

	"homeserve/config"

	"github.com/golang-jwt/jwt"
)

// CapabilityAdmin is the capability claim that grants administrative access.
const CapabilityAdmin = "admin"

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	Subject      string
	Capabilities []string
}

func secretKey() []byte {
	return []byte(config.AppConfig.JWTSecret)
}

// GenerateToken creates a signed JWT for subject with the given capabilities.
// The token expires after the specified duration.
func GenerateToken(subject string, caps []string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"caps": caps,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	if len(secretKey()) == 0 {
		return nil, errors.New("JWT secret not configured")
	}
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
}

// ExtractClaims validates tokenString and returns its subject and capabilities.
func ExtractClaims(tokenString string) (Claims, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return Claims{}, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, errors.New("token does not contain a valid 'sub' claim")
	}

	out := Claims{Subject: sub}
	if raw, ok := mc["caps"].([]interface{}); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				out.Capabilities = append(out.Capabilities, s)
			}
		}
	}
	return out, nil
}
