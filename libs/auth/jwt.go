package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Claims carries the booking user (Subject) and their role. Name and Email
// are optional contact details issued by the identity provider.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 public keys by key id.
type KeySource interface {
	Get(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier accepts HS256 tokens signed with a shared secret and, when a
// KeySource is configured, RS256 tokens whose kid it can resolve.
type Verifier struct {
	secret []byte
	keys   KeySource
	leeway time.Duration
}

func NewVerifier(secret string, keys KeySource) *Verifier {
	return &Verifier{secret: []byte(secret), keys: keys, leeway: 30 * time.Second}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			if len(v.secret) == 0 {
				return nil, ErrInvalidToken
			}
			return v.secret, nil
		case jwt.SigningMethodRS256.Alg():
			if v.keys == nil {
				return nil, ErrInvalidToken
			}
			kid, _ := t.Header["kid"].(string)
			if strings.TrimSpace(kid) == "" {
				return nil, ErrInvalidToken
			}
			return v.keys.Get(ctx, kid)
		default:
			return nil, ErrInvalidToken
		}
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}

// SignHS256 issues a token for local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
