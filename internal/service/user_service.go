package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords and
// inactive accounts alike.
var ErrInvalidCredentials = errors.New("no active account found with the given credentials")

const minPasswordLength = 8

// --- DTOs ---

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type TokenResponse struct {
	Access          string `json:"access"`
	Refresh         string `json:"refresh"`
	AccessExpiresAt string `json:"access_expires_at"`
}

type CreateUserRequest struct {
	Username  string `json:"username" binding:"required,max=150"`
	Email     string `json:"email" binding:"omitempty,email"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
	Phone     string `json:"phone" binding:"max=20"`
	Role      string `json:"role" binding:"required,oneof=admin agent"`
	Password  string `json:"password" binding:"required,min=8"`
	IsActive  *bool  `json:"is_active"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" binding:"omitempty,max=150"`
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
	Phone     *string `json:"phone" binding:"omitempty,max=20"`
	Role      *string `json:"role" binding:"omitempty,oneof=admin agent"`
	IsActive  *bool   `json:"is_active"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type ChangeMyPasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// UserListQuery carries the user list filters.
type UserListQuery struct {
	Search   string `form:"search"`
	Role     string `form:"role"`
	IsActive *bool  `form:"is_active"`
}

type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	RoleDisplay string `json:"role_display"`
	IsActive    bool   `json:"is_active"`
	DateJoined  string `json:"date_joined"`
}

// MeResponse is the current user with the permissions of their role.
type MeResponse struct {
	UserResponse
	Permissions []string `json:"permissions"`
}

// --- Interface ---

type UserService interface {
	Login(ctx context.Context, req LoginRequest) (TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (TokenResponse, error)
	Logout(ctx context.Context, refresh string) error
	Me(ctx context.Context, actor auth.Principal) (MeResponse, error)

	ListUsers(ctx context.Context, q UserListQuery, page, limit int) ([]UserResponse, int64, error)
	GetUser(ctx context.Context, id string) (UserResponse, error)
	CreateUser(ctx context.Context, actor auth.Principal, req CreateUserRequest) (UserResponse, error)
	UpdateUser(ctx context.Context, actor auth.Principal, id string, req UpdateUserRequest) (UserResponse, error)
	DeleteUser(ctx context.Context, actor auth.Principal, id string) error
	ChangePassword(ctx context.Context, actor auth.Principal, id string, req ChangePasswordRequest) error
	ChangeMyPassword(ctx context.Context, actor auth.Principal, req ChangeMyPasswordRequest) error

	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type userService struct {
	userRepo   repository.UserRepository
	roles      RoleService
	tokens     *auth.TokenManager
	refreshTTL time.Duration
	infra      *Infra
}

func NewUserService(
	userRepo repository.UserRepository,
	roles RoleService,
	tokens *auth.TokenManager,
	refreshTTL time.Duration,
	infra *Infra,
) UserService {
	return &userService{
		userRepo:   userRepo,
		roles:      roles,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		infra:      infra,
	}
}

// --- Authentication ---

func (s *userService) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenResponse{}, ErrInvalidCredentials
		}
		return TokenResponse{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}

	var res TokenResponse
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		res, err = s.issue(txCtx, user)
		if err != nil {
			return err
		}
		return s.infra.audit(txCtx, principalOf(user), model.ActionLogin, user.ID.String(), user.Username, nil)
	})
	if err != nil {
		return TokenResponse{}, err
	}
	return res, nil
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is issued.
func (s *userService) Refresh(ctx context.Context, req RefreshRequest) (TokenResponse, error) {
	var res TokenResponse
	err := s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		rt, err := s.userRepo.GetRefreshToken(txCtx, req.Refresh)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return auth.ErrInvalidToken
			}
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
		if err := s.userRepo.DeleteRefreshToken(txCtx, rt.Token); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		if rt.ExpiresAt.Before(s.infra.now()) || rt.User.ID == uuid.Nil || !rt.User.IsActive {
			return auth.ErrInvalidToken
		}
		res, err = s.issue(txCtx, &rt.User)
		return err
	})
	if err != nil {
		return TokenResponse{}, err
	}
	return res, nil
}

func (s *userService) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	if err := s.userRepo.DeleteRefreshToken(ctx, refresh); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) issue(ctx context.Context, user *model.User) (TokenResponse, error) {
	access, expires, err := s.tokens.Issue(principalOf(user))
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return TokenResponse{}, err
	}
	rt := &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.infra.now().Add(s.refreshTTL),
	}
	if err := s.userRepo.CreateRefreshToken(ctx, rt); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return TokenResponse{
		Access:          access,
		Refresh:         refresh,
		AccessExpiresAt: formatTimestamp(expires),
	}, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func principalOf(u *model.User) auth.Principal {
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (s *userService) Me(ctx context.Context, actor auth.Principal) (MeResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return MeResponse{}, lookupErr(err, "user")
	}
	perms, err := s.roles.PermissionsForRole(ctx, string(user.Role))
	if err != nil {
		return MeResponse{}, err
	}
	return MeResponse{UserResponse: toUserResponse(user), Permissions: perms}, nil
}

func (s *userService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.userRepo.DeleteExpiredRefreshTokens(ctx, s.infra.now())
}

// --- Administration ---

func (s *userService) ListUsers(ctx context.Context, q UserListQuery, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(q.Search),
		Role:     q.Role,
		IsActive: q.IsActive,
	}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	return res, total, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *userService) load(ctx context.Context, id string) (*model.User, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, actor auth.Principal, req CreateUserRequest) (UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	role := billing.Role(req.Role)
	if !role.Valid() {
		return UserResponse{}, billing.Errorf(billing.ErrValidation, "role must be admin or agent")
	}
	if len(req.Password) < minPasswordLength {
		return UserResponse{}, billing.Errorf(billing.ErrValidation, "password must be at least %d characters", minPasswordLength)
	}
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return UserResponse{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:  username,
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		Password:  string(hashed),
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return billing.Errorf(billing.ErrConflict, "username %s already exists", username)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionCreateUser, user.ID.String(), user.Username, map[string]string{
			"role": string(user.Role),
		})
	})
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *userService) ensureUsernameFree(ctx context.Context, username string) error {
	if username == "" {
		return billing.Errorf(billing.ErrValidation, "username is required")
	}
	_, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return billing.Errorf(billing.ErrConflict, "username %s already exists", username)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check username: %w", err)
	}
}

func (s *userService) UpdateUser(ctx context.Context, actor auth.Principal, id string, req UpdateUserRequest) (UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username); err != nil {
				return UserResponse{}, err
			}
			user.Username = username
		}
	}
	if req.Role != nil {
		role := billing.Role(*req.Role)
		if !role.Valid() {
			return UserResponse{}, billing.Errorf(billing.ErrValidation, "role must be admin or agent")
		}
		if user.ID == actor.UserID && role != user.Role {
			return UserResponse{}, billing.Errorf(billing.ErrConflict, "you cannot change your own role")
		}
		user.Role = role
	}
	if req.IsActive != nil {
		if user.ID == actor.UserID && !*req.IsActive {
			return UserResponse{}, billing.Errorf(billing.ErrConflict, "you cannot deactivate your own account")
		}
		user.IsActive = *req.IsActive
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}

	err = s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Update(txCtx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return billing.Errorf(billing.ErrConflict, "username %s already exists", user.Username)
			}
			return fmt.Errorf("failed to update user: %w", err)
		}
		if !user.IsActive {
			if err := s.userRepo.DeleteRefreshTokensByUser(txCtx, user.ID); err != nil {
				return fmt.Errorf("failed to revoke refresh tokens: %w", err)
			}
		}
		return s.infra.audit(txCtx, actor, model.ActionUpdateUser, user.ID.String(), user.Username, nil)
	})
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, actor auth.Principal, id string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID {
		return billing.Errorf(billing.ErrConflict, "you cannot delete your own account")
	}
	return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.DeleteRefreshTokensByUser(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		if err := s.userRepo.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionDeleteUser, user.ID.String(), user.Username, nil)
	})
}

// ChangePassword sets another user's password and signs them out everywhere.
func (s *userService) ChangePassword(ctx context.Context, actor auth.Principal, id string, req ChangePasswordRequest) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, actor, user, req.NewPassword)
}

func (s *userService) ChangeMyPassword(ctx context.Context, actor auth.Principal, req ChangeMyPasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return lookupErr(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return billing.Errorf(billing.ErrValidation, "old password is incorrect")
	}
	return s.setPassword(ctx, actor, user, req.NewPassword)
}

func (s *userService) setPassword(ctx context.Context, actor auth.Principal, user *model.User, password string) error {
	if len(password) < minPasswordLength {
		return billing.Errorf(billing.ErrValidation, "password must be at least %d characters", minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	return s.infra.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := s.userRepo.DeleteRefreshTokensByUser(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		return s.infra.audit(txCtx, actor, model.ActionChangePassword, user.ID.String(), user.Username, nil)
	})
}

// --- Mapping ---

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Phone:       u.Phone,
		Role:        string(u.Role),
		RoleDisplay: u.Role.Label(),
		IsActive:    u.IsActive,
		DateJoined:  formatTimestamp(u.CreatedAt),
	}
}
