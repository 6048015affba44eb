package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/mocks"
	"github.com/seu-repo/energy-sentinel/pkg/config"
)

const testSecret = "test-secret-key"

func newTestJWTService() *JWTService {
	cfg := config.JWTConfig{Secret: testSecret, Issuer: "energy-sentinel", Audience: "api", TokenTTL: time.Hour}
	return NewJWTService(cfg, mocks.NewMockCache(), zap.NewNop())
}

func signRaw(t *testing.T, claims Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestValidateToken_Success(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestJWTService()
	token, err := svc.GenerateToken(domain.Caller{UserID: "user-123", Role: domain.RoleOperator})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Act
	caller, err := svc.ValidateToken(ctx, token)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if caller.UserID != "user-123" {
		t.Errorf("expected user-123, got %s", caller.UserID)
	}
	if caller.Role != domain.RoleOperator {
		t.Errorf("expected operator, got %s", caller.Role)
	}
}

func TestValidateToken_MissingRoleDefaultsToUser(t *testing.T) {
	svc := newTestJWTService()
	token, _ := svc.GenerateToken(domain.Caller{UserID: "user-123"})

	caller, err := svc.ValidateToken(context.Background(), token)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if caller.Role != domain.RoleUser {
		t.Errorf("expected user role, got %s", caller.Role)
	}
}

func TestValidateToken_Rejected(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	base := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    "energy-sentinel",
				Audience:  jwt.ClaimStrings{"api"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			Role: "user",
		}
	}

	testCases := []struct {
		name  string
		token func() string
	}{
		{"Garbage", func() string { return "invalid.token.here" }},
		{"Expired", func() string {
			c := base()
			c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
		{"NoExpiry", func() string {
			c := base()
			c.ExpiresAt = nil
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
		{"WrongSecret", func() string {
			return signRaw(t, base(), jwt.SigningMethodHS256, []byte("other-secret"))
		}},
		{"WrongAlgorithm", func() string {
			return signRaw(t, base(), jwt.SigningMethodHS512, []byte(testSecret))
		}},
		{"WrongIssuer", func() string {
			c := base()
			c.Issuer = "someone-else"
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
		{"WrongAudience", func() string {
			c := base()
			c.Audience = jwt.ClaimStrings{"billing"}
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
		{"NoSubject", func() string {
			c := base()
			c.Subject = ""
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
		{"UnknownRole", func() string {
			c := base()
			c.Role = "root"
			return signRaw(t, c, jwt.SigningMethodHS256, []byte(testSecret))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			caller, err := svc.ValidateToken(context.Background(), tc.token())
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
			if caller != nil {
				t.Errorf("expected no caller, got %+v", caller)
			}
		})
	}
}

func TestRevokeToken(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestJWTService()
	token, _ := svc.GenerateToken(domain.Caller{UserID: "user-123", Role: domain.RoleUser})

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	jti := parsed.Claims.(*Claims).ID

	// Act
	if err := svc.RevokeToken(ctx, jti); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_, err = svc.ValidateToken(ctx, token)

	// Assert
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}
}

func TestCheckPermission(t *testing.T) {
	rbac := NewRBACService(zap.NewNop())

	testCases := []struct {
		role     domain.Role
		resource string
		action   string
		expected bool
	}{
		{domain.RoleUser, ResourceConsumption, ActionWrite, true},
		{domain.RoleUser, ResourceAnomalies, ActionWrite, true},
		{domain.RoleUser, ResourceModels, ActionWrite, false},
		{domain.RoleUser, ResourceSweep, ActionManage, false},
		{domain.RoleOperator, ResourceModels, ActionWrite, true},
		{domain.RoleOperator, ResourceSweep, ActionManage, false},
		{domain.RoleAdmin, ResourceSweep, ActionManage, true},
		{domain.RoleAdmin, ResourceConsumption, ActionRead, true},
		{domain.Role("guest"), ResourceConsumption, ActionRead, false},
	}

	for _, tc := range testCases {
		got := rbac.CheckPermission(tc.role, tc.resource, tc.action)
		if got != tc.expected {
			t.Errorf("%s %s:%s: expected %v, got %v", tc.role, tc.resource, tc.action, tc.expected, got)
		}
	}
}

func TestGetPermissions_ReturnsCopy(t *testing.T) {
	rbac := NewRBACService(zap.NewNop())

	perms := rbac.GetPermissions(domain.RoleUser)
	perms[0] = Permission{Resource: ResourceSweep, Action: ActionManage}

	if rbac.CheckPermission(domain.RoleUser, ResourceSweep, ActionManage) {
		t.Error("mutating the returned slice should not grant permissions")
	}
}
