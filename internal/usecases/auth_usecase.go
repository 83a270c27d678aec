package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/domain/repositories"
	"entropy-gate.backend/pkg/crypto"
	"entropy-gate.backend/pkg/jwt"
)

// AuthUsecase handles registration and session login for the key-management
// surface. API-key authentication lives in ApiKeyUsecase.
type AuthUsecase struct {
	userRepo   repositories.UserRepository
	jwtService *jwt.JWTService
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(userRepo repositories.UserRepository, jwtService *jwt.JWTService) *AuthUsecase {
	return &AuthUsecase{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Register creates a new user account
func (u *AuthUsecase) Register(ctx context.Context, input *entities.CreateUserInput) (*entities.AuthResponse, error) {
	existing, err := u.userRepo.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.InternalError(err)
	}
	if existing != nil {
		return nil, domainerrors.BadRequest("email already registered")
	}

	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	user := &entities.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: passwordHash,
		Role:         entities.UserRoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, domainerrors.InternalError(err)
	}

	return u.issueTokens(user)
}

// Login authenticates a user by email and password
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid email or password")
		}
		return nil, domainerrors.InternalError(err)
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		return nil, domainerrors.Unauthorized("invalid email or password")
	}

	return u.issueTokens(user)
}

// GetMe returns the authenticated user's profile
func (u *AuthUsecase) GetMe(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, domainerrors.InternalError(err)
	}
	return user, nil
}

func (u *AuthUsecase) issueTokens(user *entities.User) (*entities.AuthResponse, error) {
	tokens, err := u.jwtService.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	return &entities.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         user,
	}, nil
}
