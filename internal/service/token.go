package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

// JWTIssuer signs HS256 access tokens carrying the user id and role.
type JWTIssuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (j JWTIssuer) Issue(user domain.User) (string, time.Time, error) {
	now := clock(j.Now).now()
	exp := now.Add(j.TTL)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        fmt.Sprintf("%d", user.ID),
		"email":      user.Email,
		"role":       user.Role,
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
	}).SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

func (j JWTIssuer) Verify(tokenStr string) (*ports.TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(j.Now))
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, domain.Unauthenticatedf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "access" {
		return nil, domain.Unauthenticatedf("invalid token")
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, domain.Unauthenticatedf("invalid subject")
	}
	role, _ := claims["role"].(string)
	return &ports.TokenClaims{UserID: id, Role: domain.UserRole(role)}, nil
}
