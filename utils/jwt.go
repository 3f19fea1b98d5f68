package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

/*
 JWTCustomClaims

 Token diterbitkan oleh layanan auth (di luar repo ini). Backend ini hanya
 memvalidasi token dan membaca:
 - UserID (uuid)  : pemilik sertifikat / engagement
 - Role   (string): "learner" atau "admin"
*/
type JWTCustomClaims struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

// GenerateToken membuat access token HS256. Dipakai oleh tooling lokal dan test.
func GenerateToken(secret []byte, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT_SECRET is not configured")
	}
	now := time.Now()
	claims := JWTCustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken mem-validasi JWT (signing method HMAC, expiry) dan mengembalikan claims.
func ValidateToken(secret []byte, tokenString string) (*JWTCustomClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT_SECRET is not configured")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTCustomClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token tanpa userId")
	}
	return claims, nil
}
