package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// --- DTOs ---

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Display     string               `json:"display"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, actor auth.Principal, id string, req UpdateRolePermissionsRequest) (RoleResponse, error)
	// PermissionsForRole returns the permission codes granted to role. Results
	// are cached until the role's permissions change.
	PermissionsForRole(ctx context.Context, role string) ([]string, error)
}

type roleService struct {
	roleRepo repository.RoleRepository
	infra    *Infra

	mu    sync.RWMutex
	cache map[string][]string
}

func NewRoleService(roleRepo repository.RoleRepository, infra *Infra) RoleService {
	return &roleService{roleRepo: roleRepo, infra: infra, cache: make(map[string][]string)}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return RoleResponse{}, err
	}
	role, err := s.roleRepo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return RoleResponse{}, lookupErr(err, "role")
	}
	return toRoleResponse(role), nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.roleRepo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

// UpdateRolePermissions replaces the permission set of a role. The admin role
// always holds every permission and cannot be edited.
func (s *roleService) UpdateRolePermissions(ctx context.Context, actor auth.Principal, id string, req UpdateRolePermissionsRequest) (RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return RoleResponse{}, err
	}

	var name string
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByIDWithPermissions(txCtx, roleID)
		if err != nil {
			return lookupErr(err, "role")
		}
		if role.Name == string(billing.RoleAdmin) {
			return billing.Errorf(billing.ErrConflict, "the admin role permissions cannot be changed")
		}
		name = role.Name
		if err := s.roleRepo.ReplacePermissions(txCtx, role, req.Permissions); err != nil {
			return fmt.Errorf("failed to update role permissions: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionUpdateRolePermissions, role.ID.String(), role.Name, map[string][]string{
			"permissions": req.Permissions,
		})
	})
	if err != nil {
		return RoleResponse{}, err
	}

	s.invalidate(name)
	return s.GetRole(ctx, id)
}

func (s *roleService) PermissionsForRole(ctx context.Context, role string) ([]string, error) {
	s.mu.RLock()
	cached, ok := s.cache[role]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codes, err := s.roleRepo.GetPermissionsByRoleName(ctx, role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			codes = []string{}
		} else {
			return nil, fmt.Errorf("failed to load permissions of role %s: %w", role, err)
		}
	}
	sort.Strings(codes)

	s.mu.Lock()
	s.cache[role] = codes
	s.mu.Unlock()
	return codes, nil
}

func (s *roleService) invalidate(role string) {
	s.mu.Lock()
	delete(s.cache, role)
	s.mu.Unlock()
}

// --- Mapping ---

func toRoleResponse(r *model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Display:     billing.Role(r.Name).Label(),
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   formatTimestamp(r.CreatedAt),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
