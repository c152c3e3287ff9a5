// Package auth verifies signed call tokens. Tokens are minted by the
// platform's account service; this side only checks them.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Verifier validates HS256 JWTs against a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

type tokenClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
}

// Verify checks the signature and expiry of token and returns the
// identity carried in its claims.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.Identity{}, ErrInvalidToken
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	// Only HS256 is accepted; "none" and asymmetric algs are rejected
	// outright so an attacker cannot downgrade the check.
	if header.Alg != "HS256" {
		return domain.Identity{}, ErrInvalidToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(parts[0]))
	mac.Write([]byte{'.'})
	mac.Write([]byte(parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return domain.Identity{}, ErrInvalidToken
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	var c tokenClaims
	if err := json.Unmarshal(payloadJSON, &c); err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	if c.Sub == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	if c.Exp == 0 || v.now().Unix() >= c.Exp {
		return domain.Identity{}, ErrTokenExpired
	}

	name := c.Name
	if name == "" {
		name = c.Sub
	}
	return domain.Identity{
		UserID:      domain.UserID(c.Sub),
		Email:       c.Email,
		DisplayName: name,
	}, nil
}
