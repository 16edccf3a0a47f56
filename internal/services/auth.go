package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

// AuthService verifies the session tokens the identity provider issues. It is
// stateless: the token's subject is the requester id.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(requesterID string, ttl time.Duration) (string, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	log    *logger.Logger
	secret []byte
	now    func() time.Time
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:    baseLog.With("service", "AuthService"),
		secret: []byte(jwtSecretKey),
		now:    time.Now,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apperrors.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("parse token: %v: %w", err, apperrors.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token: %w", apperrors.ErrUnauthorized)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return ctx, fmt.Errorf("token has no subject: %w", apperrors.ErrUnauthorized)
	}
	return ctxutil.WithRequester(ctx, sub, claims.ID), nil
}

// IssueToken mints a token the way the identity provider does. The API never
// calls it; it exists for tooling and tests.
func (as *authService) IssueToken(requesterID string, ttl time.Duration) (string, error) {
	now := as.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   requesterID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.secret)
}
