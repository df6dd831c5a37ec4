package service

import (
	"context"
	"strings"

	"github.com/yoozak/yoozak-backend/internal/auth/jwt"
	"github.com/yoozak/yoozak-backend/internal/operator/domain"
	"github.com/yoozak/yoozak-backend/internal/operator/repository"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
	"golang.org/x/crypto/bcrypt"
)

// OperatorService handles operator accounts and sign-in
type OperatorService struct {
	repo       *repository.OperatorRepository
	jwtManager *jwt.Manager
	bcryptCost int
	logger     *logger.Logger
}

// NewOperatorService creates a new operator service
func NewOperatorService(repo *repository.OperatorRepository, jwtManager *jwt.Manager, log *logger.Logger) *OperatorService {
	return &OperatorService{
		repo:       repo,
		jwtManager: jwtManager,
		bcryptCost: bcrypt.DefaultCost,
		logger:     log,
	}
}

// SetBcryptCost overrides the hashing cost (tests use bcrypt.MinCost)
func (s *OperatorService) SetBcryptCost(cost int) {
	s.bcryptCost = cost
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and the operator profile
type LoginResponse struct {
	*jwt.Token
	Operator *Profile `json:"operator"`
}

// Profile is the operator as seen by the dashboards
type Profile struct {
	*domain.Operator
	Permissions          []string `json:"permissions"`
	EffectivePermissions []string `json:"effective_permissions"`
}

func profile(o *domain.Operator) *Profile {
	perms := o.Permissions()
	return &Profile{Operator: o, Permissions: perms, EffectivePermissions: permissions.Effective(perms)}
}

// Login checks the credentials and issues an access token
func (s *OperatorService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	o, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("operator_id", o.ID).Msg("failed login attempt")
		return nil, errors.InvalidCredentials()
	}
	if !o.IsActive {
		return nil, errors.Forbidden("account is disabled")
	}

	token, err := s.jwtManager.GenerateToken(&jwt.OperatorInfo{
		ID:          o.ID,
		Email:       o.Email,
		FirstName:   o.FirstName,
		LastName:    o.LastName,
		Role:        o.Role,
		Permissions: o.Permissions(),
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	s.logger.Info().Str("operator_id", o.ID).Str("role", o.Role).Msg("operator signed in")

	return &LoginResponse{Token: token, Operator: profile(o)}, nil
}

// Me returns the profile of the authenticated operator
func (s *OperatorService) Me(ctx context.Context) (*Profile, error) {
	a := actor.FromContext(ctx)
	if a == nil {
		return nil, errors.Unauthorized("not authenticated")
	}
	o, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if !o.IsActive {
		return nil, errors.Forbidden("account is disabled")
	}
	return profile(o), nil
}

// CurrentRole returns the operator's role and whether the account is active
func (s *OperatorService) CurrentRole(ctx context.Context, id string) (string, bool, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	return o.Role, o.IsActive, nil
}

// CreateRequest creates an operator
type CreateRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Role      string `json:"role" validate:"required,oneof=admin confirmation preparation logistics stock"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateRequest changes an operator; nil fields are left untouched
type UpdateRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=admin confirmation preparation logistics stock"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// Create creates an operator account
func (s *OperatorService) Create(ctx context.Context, req *CreateRequest) (*domain.Operator, error) {
	if !permissions.IsValidRole(req.Role) {
		return nil, errors.Validation(map[string]string{"role": "unknown role"})
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	o := &domain.Operator{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         req.Role,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("operator_id", o.ID).
		Str("role", o.Role).
		Str("by", actor.FromContextOrSystem(ctx).ID).
		Msg("operator created")

	return o, nil
}

// Get gets an operator
func (s *OperatorService) Get(ctx context.Context, id string) (*domain.Operator, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists operators
func (s *OperatorService) List(ctx context.Context, f domain.Filter) ([]domain.Operator, int64, error) {
	return s.repo.List(ctx, f)
}

// Update changes an operator. The last active admin cannot be demoted or
// disabled, and nobody can disable their own account.
func (s *OperatorService) Update(ctx context.Context, id string, req *UpdateRequest) (*domain.Operator, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActiveAdmin := o.Role == permissions.RoleAdmin && o.IsActive

	if req.Email != nil {
		o.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FirstName != nil {
		o.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		o.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		if !permissions.IsValidRole(*req.Role) {
			return nil, errors.Validation(map[string]string{"role": "unknown role"})
		}
		o.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		o.PasswordHash = hash
	}
	if req.IsActive != nil {
		if !*req.IsActive && actor.FromContextOrSystem(ctx).ID == o.ID {
			return nil, errors.BadRequest("you cannot disable your own account")
		}
		o.IsActive = *req.IsActive
	}

	err = s.repo.Transaction(ctx, func(tx database.Queryer) error {
		if wasActiveAdmin && (o.Role != permissions.RoleAdmin || !o.IsActive) {
			if err := s.ensureAnotherAdmin(ctx, tx, o.ID); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Deactivate disables an operator. Operators are never removed because
// orders and movements keep referring to them.
func (s *OperatorService) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := s.Update(ctx, id, &UpdateRequest{IsActive: &inactive})
	return err
}

func (s *OperatorService) ensureAnotherAdmin(ctx context.Context, tx database.Queryer, id string) error {
	admins, err := s.repo.LockActiveAdmins(ctx, tx)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if admin != id {
			return nil
		}
	}
	return errors.Conflict("at least one active admin is required")
}

func (s *OperatorService) hash(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

// HashPassword hashes a clear-text password with bcrypt
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Internal("failed to hash password")
	}
	return string(hash), nil
}
