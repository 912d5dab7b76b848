package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/praveenbiet/elephant/internal/auth/service TokenGenerator,Hasher

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	autherror "github.com/praveenbiet/elephant/internal/errors"
)

// TokenGenerator issues and verifies stateless access tokens.
type TokenGenerator interface {
	Generate(userID, email string) (string, time.Time, error)
	VerifyAccessToken(tokenString string) (*AccessClaims, error)
	GetAccessTokenExpiry() time.Duration
}

// Hasher is the credential hashing port.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenService signs access tokens with a symmetric key (HS256). Validity
// is determined purely by signature and expiry; there is no revocation list,
// so compromise mitigation relies on the short TTL.
type TokenService struct {
	secret            []byte
	AccessTokenExpiry time.Duration
}

func NewTokenService(secret string, accessExpiry time.Duration) *TokenService {
	return &TokenService{
		secret:            []byte(secret),
		AccessTokenExpiry: accessExpiry,
	}
}

func (ts *TokenService) Generate(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ts.AccessTokenExpiry)

	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

// VerifyAccessToken parses and validates an access token string. Malformed
// structure, bad signature and passed expiry all map to ErrInvalidAccessToken.
func (ts *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherror.ErrInvalidAccessToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, autherror.ErrInvalidAccessToken
	}

	return claims, nil
}
