// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	UserType string   `json:"user_type"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *JWTClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

const (
	ScopeExternalPayment = "order:make-external-payment"
	ScopeRedeemTicket    = "redeem:ticket"
)

var (
	jwtSecret      = []byte("your-secret-key-change-in-production")
	transferSecret = []byte("transfer-secret-change-in-production")
)

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func SetTransferSecret(secret string) {
	transferSecret = []byte(secret)
}

func GenerateJWT(userID uuid.UUID, email, userType string, scopes []string, ttlHours int) (string, error) {
	claims := JWTClaims{
		UserID:   userID.String(),
		Email:    email,
		UserType: userType,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "ticketing",
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, hmacKey(jwtSecret))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// TransferClaims is the payload of a transfer authorization handed to a
// receiver. Expiry is judged by the receiving side from IssuedAt and
// TTLSeconds, so the token itself carries no exp claim.
type TransferClaims struct {
	SenderUserID string `json:"sender_user_id"`
	TransferKey  string `json:"transfer_key"`
	NumTickets   int    `json:"num_tickets"`
	IssuedAt     int64  `json:"issued_at"`
	TTLSeconds   int64  `json:"ttl_seconds"`
	jwt.RegisteredClaims
}

func SignTransferToken(claims TransferClaims) (string, error) {
	claims.Issuer = "ticketing-transfer"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(transferSecret)
}

func ParseTransferToken(tokenString string) (*TransferClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TransferClaims{}, hmacKey(transferSecret))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TransferClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid transfer token")
}

func hmacKey(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}
}
