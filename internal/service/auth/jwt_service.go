package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	"github.com/seu-repo/energy-sentinel/pkg/config"
)

// ErrInvalidToken is returned for any token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the custom JWT claims used by the application.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTService issues and validates the bearer tokens callers present.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	cache    ports.Cache
	log      *zap.Logger
}

func NewJWTService(cfg config.JWTConfig, cache ports.Cache, log *zap.Logger) *JWTService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	log.Info("JWT service initialized",
		zap.String("issuer", cfg.Issuer),
		zap.Duration("token_ttl", ttl),
	)

	return &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		cache:    cache,
		log:      log,
	}
}

// GenerateToken signs an HS256 token for caller.
func (s *JWTService) GenerateToken(caller domain.Caller) (string, error) {
	if caller.UserID == "" {
		return "", errors.New("caller has no user id")
	}
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Role: string(caller.Role),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign token",
			zap.String("user_id", caller.UserID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a bearer token and returns the caller behind it.
// Tokens without a subject or with an unknown role are rejected.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*domain.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := domain.Role(claims.Role)
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	if claims.ID != "" && s.IsTokenRevoked(ctx, claims.ID) {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}

	return &domain.Caller{UserID: claims.Subject, Role: role}, nil
}

// RevokeToken blacklists a token ID until it would have expired anyway.
func (s *JWTService) RevokeToken(ctx context.Context, tokenID string) error {
	if err := s.cache.Set(ctx, revokedKey(tokenID), "revoked", s.ttl); err != nil {
		s.log.Error("failed to revoke token",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.log.Info("token revoked", zap.String("token_id", tokenID))
	return nil
}

// IsTokenRevoked treats cache errors as not revoked.
func (s *JWTService) IsTokenRevoked(ctx context.Context, tokenID string) bool {
	val, err := s.cache.Get(ctx, revokedKey(tokenID))
	if err != nil {
		return false
	}
	return val == "revoked"
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}
