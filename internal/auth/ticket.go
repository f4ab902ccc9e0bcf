// internal/auth/ticket.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Ticket is what a rejoin ticket proves: which seat of which session the
// bearer held.
type Ticket struct {
	Code     string
	PlayerID uuid.UUID
	Role     string
}

// Tickets signs and verifies rejoin tickets with an ed25519 key pair.
type Tickets struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => no exp claim
}

// NewTickets generates a fresh key pair. Tickets do not survive a restart,
// and neither do the sessions they refer to.
func NewTickets(ttl time.Duration) (*Tickets, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Tickets{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// ParseTTL reads a TOKEN_EXPIRE_TIME style value: a Go duration, or
// "never"/"0" for no expiry. Empty returns def.
func ParseTTL(raw string, def time.Duration) (time.Duration, error) {
	switch raw {
	case "":
		return def, nil
	case "never", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// TTLFromEnv reads TOKEN_EXPIRE_TIME.
func TTLFromEnv(def time.Duration) (time.Duration, error) {
	return ParseTTL(os.Getenv("TOKEN_EXPIRE_TIME"), def)
}

// IssueTicket creates a signed JWT with "sub" = playerID plus the session code and role.
func (t *Tickets) IssueTicket(code string, playerID uuid.UUID, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  playerID.String(),
		"code": code,
		"role": role,
		"iat":  time.Now().Unix(),
	}
	if t.ttl > 0 {
		claims["exp"] = time.Now().Add(t.ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(t.privateKey)
}

// ParseTicket verifies a ticket and returns its contents.
func (t *Tickets) ParseTicket(tokenString string) (Ticket, error) {
	tok, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.publicKey, nil
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !tok.Valid {
		return Ticket{}, fmt.Errorf("invalid ticket")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Ticket{}, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Ticket{}, fmt.Errorf("missing sub in ticket")
	}
	playerID, err := uuid.Parse(sub)
	if err != nil {
		return Ticket{}, fmt.Errorf("malformed sub in ticket: %w", err)
	}
	code, _ := claims["code"].(string)
	role, _ := claims["role"].(string)
	if code == "" {
		return Ticket{}, fmt.Errorf("missing code in ticket")
	}
	return Ticket{Code: code, PlayerID: playerID, Role: role}, nil
}
