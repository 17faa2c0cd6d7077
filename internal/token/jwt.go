package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/srplogin/internal/model"
)

// ErrInvalidTicket is returned for tickets that fail verification.
var ErrInvalidTicket = errors.New("invalid ticket")

// Claims represents world-entry ticket claims.
type Claims struct {
	jwt.RegisteredClaims
	AccessLevel  model.AccessLevel `json:"lvl"`
	ConnectionID string            `json:"cid"`
	TokenType    string            `json:"typ"`
}

const typeTicket = "world_entry"

// JWT issues world-entry tickets signed with HMAC-SHA256.
type JWT struct {
	secretKey string
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TicketIssuer = (*JWT)(nil)

// NewJWT creates a ticket issuer. issuer is the login server name and is
// checked on Parse.
func NewJWT(secretKey, issuer string, ttl time.Duration) *JWT {
	return &JWT{
		secretKey: secretKey,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue signs a short-lived ticket for an authenticated connection.
func (j *JWT) Issue(accountName string, level model.AccessLevel, conn model.ConnectionHandle) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountName,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		AccessLevel:  level,
		ConnectionID: conn.String(),
		TokenType:    typeTicket,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}

	return tokenString, nil
}

// Parse validates a ticket and returns its contents.
func (j *JWT) Parse(tokenString string) (model.Ticket, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}
	if !token.Valid {
		return model.Ticket{}, ErrInvalidTicket
	}
	if claims.TokenType != typeTicket {
		return model.Ticket{}, fmt.Errorf("%w: token type mismatch: %s", ErrInvalidTicket, claims.TokenType)
	}

	connID, err := uuid.Parse(claims.ConnectionID)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: bad connection id: %w", ErrInvalidTicket, err)
	}

	return model.Ticket{
		ID:          claims.ID,
		AccountName: claims.Subject,
		AccessLevel: claims.AccessLevel,
		Connection:  model.ConnectionHandle(connID),
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
