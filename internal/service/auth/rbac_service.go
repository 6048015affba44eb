package auth

import (
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// Resources and actions checked at the route level. Per-device access is
// decided by the ownership gate, not here.
const (
	ResourceConsumption = "consumption"
	ResourceAnomalies   = "anomalies"
	ResourceDevices     = "devices"
	ResourceModels      = "models"
	ResourceSweep       = "sweep"

	ActionRead   = "read"
	ActionWrite  = "write"
	ActionManage = "manage"
)

// Permission represents a single resource-action pair.
type Permission struct {
	Resource string
	Action   string
}

// RBACService maps roles to the route-level permissions they hold.
type RBACService struct {
	permissions map[domain.Role][]Permission
	log         *zap.Logger
}

// NewRBACService creates a new RBACService with predefined role permissions.
//
// Roles:
//   - "admin"    : everything, including fleet-wide sweeps
//   - "operator" : readings, anomalies, device claims and model training
//   - "user"     : readings and anomalies on their own devices, predictions
func NewRBACService(log *zap.Logger) *RBACService {
	user := []Permission{
		{Resource: ResourceConsumption, Action: ActionRead},
		{Resource: ResourceConsumption, Action: ActionWrite},
		{Resource: ResourceAnomalies, Action: ActionRead},
		{Resource: ResourceAnomalies, Action: ActionWrite},
		{Resource: ResourceDevices, Action: ActionWrite},
		{Resource: ResourceModels, Action: ActionRead},
	}
	operator := append(append([]Permission{}, user...),
		Permission{Resource: ResourceModels, Action: ActionWrite},
	)
	admin := append(append([]Permission{}, operator...),
		Permission{Resource: ResourceDevices, Action: ActionManage},
		Permission{Resource: ResourceSweep, Action: ActionManage},
	)

	permissions := map[domain.Role][]Permission{
		domain.RoleAdmin:    admin,
		domain.RoleOperator: operator,
		domain.RoleUser:     user,
	}

	log.Info("RBAC service initialized",
		zap.Int("roles", len(permissions)),
	)

	return &RBACService{
		permissions: permissions,
		log:         log,
	}
}

// CheckPermission reports whether role may perform action on resource.
func (s *RBACService) CheckPermission(role domain.Role, resource, action string) bool {
	perms, exists := s.permissions[role]
	if !exists {
		s.log.Warn("unknown role attempted access",
			zap.String("role", string(role)),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return false
	}

	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}

	s.log.Warn("permission denied",
		zap.String("role", string(role)),
		zap.String("resource", resource),
		zap.String("action", action),
	)
	return false
}

// GetPermissions returns a copy of the permissions assigned to role.
func (s *RBACService) GetPermissions(role domain.Role) []Permission {
	perms, exists := s.permissions[role]
	if !exists {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
